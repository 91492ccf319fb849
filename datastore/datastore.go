/*
DESCRIPTION
  Document store abstraction and common types.

AUTHORS
  Maya Clarke <maya@dojopal.app>

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

// Package datastore abstracts access to a document store holding
// whole-document records. Two stores are implemented: CloudStore,
// backed by Google Cloud Firestore, and FileStore, which keeps
// documents as files on disk for standalone use and testing.
//
// Documents are read and written in their entirety. There are no
// partial updates and no concurrency tokens; the store serializes
// writes per key and the last write wins.
package datastore

import (
	"context"
	"errors"
)

// Error types.
var (
	ErrNoSuchEntity   = errors.New("no such entity")
	ErrEntityExists   = errors.New("entity exists")
	ErrWrongType      = errors.New("wrong type")
	ErrDecoding       = errors.New("decoding error")
	ErrInvalidStoreID = errors.New("invalid store ID")
	ErrUnimplemented  = errors.New("unimplemented feature")
)

// Key represents the identity of one document: the kind is the
// collection name and the name is the document ID within it.
type Key struct {
	Kind string
	Name string
}

// Entity defines the common interface of datastore entities.
type Entity interface {
	Encode() []byte                  // Encode serializes the entity as JSON.
	Decode([]byte) error             // Decode deserializes the entity from JSON.
	Copy(dst Entity) (Entity, error) // Copy copies the entity to dst, or returns a copy when dst is nil.
	GetCache() Cache                 // GetCache returns the entity's cache, or nil for no caching.
}

// Store defines the datastore interface. It is deliberately narrow:
// documents are addressed by key and read or replaced whole.
type Store interface {
	// NameKey returns a key for the given kind and name.
	NameKey(kind, name string) *Key

	// Get retrieves a single document into dst, or returns
	// ErrNoSuchEntity if there is no document for the key.
	Get(ctx context.Context, key *Key, dst Entity) error

	// Create writes a brand-new document, or returns
	// ErrEntityExists if one already exists for the key.
	Create(ctx context.Context, key *Key, src Entity) error

	// Put writes a document unconditionally, replacing any
	// existing document for the key.
	Put(ctx context.Context, key *Key, src Entity) (*Key, error)

	// Delete removes a document. Deleting a nonexistent document
	// is not an error.
	Delete(ctx context.Context, key *Key) error
}

// NewStore returns a new Store. The kind is either "cloud" for
// CloudStore or "file" for FileStore. The id identifies the project
// (for CloudStore, the Google Cloud project ID, optionally suffixed
// with /<database>). The url locates credentials for CloudStore or
// the directory for FileStore.
func NewStore(ctx context.Context, kind, id, url string) (Store, error) {
	switch kind {
	case "cloud":
		return newCloudStore(ctx, id, url)
	case "file":
		return newFileStore(ctx, id, url)
	default:
		return nil, ErrInvalidStoreID
	}
}
