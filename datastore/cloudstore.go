/*
DESCRIPTION
  Firestore-backed document store.

AUTHORS
  Maya Clarke <maya@dojopal.app>
  Tom Ashworth <tom@dojopal.app>

LICENSE
  Copyright (C) 2025-2026 the DojoPal project.

  This is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  It is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

package datastore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// CloudStore implements Store for Google Cloud Firestore.
type CloudStore struct {
	client *firestore.Client
}

// newCloudStore returns a new CloudStore, using the given URL to
// retrieve credentials and authenticate.
// The ID can be passed with an optional database name in the format
// <ID>/<Database_Name>; if there is no database name given, the
// default database is used.
// To obtain credentials from a Google storage bucket, URL takes the
// form gs://bucket_name/creds. A URL without a scheme is interpreted
// as a file. If the environment variable <ID>_CREDENTIALS is defined
// it overrides the supplied URL.
func newCloudStore(ctx context.Context, id, url string) (*CloudStore, error) {
	s := new(CloudStore)

	db := firestore.DefaultDatabaseID
	parts := strings.Split(id, "/")
	if len(parts) == 2 {
		db = parts[1]
	} else if len(parts) != 1 {
		return nil, ErrInvalidStoreID
	}

	id = parts[0]

	ev := strings.ToUpper(id) + "_CREDENTIALS"
	if os.Getenv(ev) != "" {
		url = os.Getenv(ev)
	}

	var err error
	if url == "" {
		// Attempt authentication using the default credentials.
		s.client, err = firestore.NewClientWithDatabase(ctx, id, db)
		if err != nil {
			log.Printf("firestore.NewClient failed: %v", err)
			return nil, err
		}
		return s, nil
	}

	var creds []byte
	if strings.HasPrefix(url, "gs://") {
		// Obtain credentials from a Google Storage bucket.
		url = url[5:]
		sep := strings.IndexByte(url, '/')
		if sep == -1 {
			log.Printf("invalid gs bucket URL: %s", url)
			return nil, errors.New("invalid gs bucket URL")
		}
		client, err := storage.NewClient(ctx)
		if err != nil {
			log.Printf("storage.NewClient failed: %v", err)
			return nil, err
		}
		bkt := client.Bucket(url[:sep])
		obj := bkt.Object(url[sep+1:])
		r, err := obj.NewReader(ctx)
		if err != nil {
			log.Printf("NewReader failed for gs bucket %s: %v", url, err)
			return nil, err
		}
		defer r.Close()
		creds, err = io.ReadAll(r)
		if err != nil {
			log.Printf("cannot read gs bucket %s: %v", url, err)
			return nil, err
		}

	} else {
		// Interpret url as a file name.
		creds, err = os.ReadFile(url)
		if err != nil {
			log.Printf("cannot read file %s: %v", url, err)
			return nil, err
		}
	}

	s.client, err = firestore.NewClientWithDatabase(ctx, id, db, option.WithCredentialsJSON(creds))
	return s, err
}

// NameKey returns a key given a kind (collection) and a name (document ID).
func (s *CloudStore) NameKey(kind, name string) *Key {
	return &Key{Kind: kind, Name: name}
}

func (s *CloudStore) doc(key *Key) *firestore.DocumentRef {
	return s.client.Collection(key.Kind).Doc(key.Name)
}

func (s *CloudStore) Get(ctx context.Context, key *Key, dst Entity) error {
	if cache := dst.GetCache(); cache != nil {
		err := cache.Get(key, dst)
		if err == nil {
			return nil
		}
	}
	snap, err := s.doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return ErrNoSuchEntity
	}
	if err != nil {
		return err
	}
	err = snap.DataTo(dst)
	if err != nil {
		log.Printf("could not decode %s/%s: %v", key.Kind, key.Name, err)
		return fmt.Errorf("%w: %v", ErrDecoding, err)
	}
	return nil
}

func (s *CloudStore) Create(ctx context.Context, key *Key, src Entity) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		_, err := tx.Get(s.doc(key))
		if err == nil {
			return ErrEntityExists
		}
		if status.Code(err) != codes.NotFound {
			return err
		}
		return tx.Set(s.doc(key), src)
	})
}

func (s *CloudStore) Put(ctx context.Context, key *Key, src Entity) (*Key, error) {
	_, err := s.doc(key).Set(ctx, src)
	if err != nil {
		return key, err
	}
	if cache := src.GetCache(); cache != nil {
		cache.Set(key, src)
	}
	return key, nil
}

func (s *CloudStore) Delete(ctx context.Context, key *Key) error {
	_, err := s.doc(key).Delete(ctx)
	if err != nil {
		return err
	}
	if cache := GetCache(key.Kind); cache != nil {
		cache.Delete(key)
	}
	return nil
}
