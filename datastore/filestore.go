/*
DESCRIPTION
  File-backed document store, used in standalone mode and by tests.

AUTHORS
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
	"os"
	"path/filepath"
	"sync"
)

// FileStore implements Store using files on the local filesystem.
// Each document is one file, <dir>/<id>/<kind>/<name>.json, holding
// the entity's encoding. Writes are serialized by a store-wide mutex,
// mirroring the per-key write serialization the cloud store provides
// server-side.
type FileStore struct {
	dir   string
	mutex sync.Mutex
}

// newFileStore returns a new FileStore rooted at dir/id. The
// directory is created if it does not exist.
func newFileStore(_ context.Context, id, dir string) (*FileStore, error) {
	if dir == "" {
		dir = "store"
	}
	fs := &FileStore{dir: filepath.Join(dir, id)}
	err := os.MkdirAll(fs.dir, 0766)
	if err != nil {
		return nil, err
	}
	return fs, nil
}

// NameKey returns a key given a kind (collection) and a name (document ID).
func (s *FileStore) NameKey(kind, name string) *Key {
	return &Key{Kind: kind, Name: name}
}

func (s *FileStore) filename(key *Key) string {
	return filepath.Join(s.dir, key.Kind, key.Name+".json")
}

func (s *FileStore) Get(ctx context.Context, key *Key, dst Entity) error {
	if cache := dst.GetCache(); cache != nil {
		err := cache.Get(key, dst)
		if err == nil {
			return nil
		}
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	b, err := os.ReadFile(s.filename(key))
	if os.IsNotExist(err) {
		return ErrNoSuchEntity
	}
	if err != nil {
		return err
	}
	return dst.Decode(b)
}

func (s *FileStore) Create(ctx context.Context, key *Key, src Entity) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, err := os.Stat(s.filename(key))
	if err == nil {
		return ErrEntityExists
	}
	if !os.IsNotExist(err) {
		return err
	}
	return s.write(key, src)
}

func (s *FileStore) Put(ctx context.Context, key *Key, src Entity) (*Key, error) {
	s.mutex.Lock()
	err := s.write(key, src)
	s.mutex.Unlock()
	if err != nil {
		return key, err
	}
	if cache := src.GetCache(); cache != nil {
		cache.Set(key, src)
	}
	return key, nil
}

func (s *FileStore) write(key *Key, src Entity) error {
	err := os.MkdirAll(filepath.Join(s.dir, key.Kind), 0766)
	if err != nil {
		return err
	}
	return os.WriteFile(s.filename(key), src.Encode(), 0644)
}

func (s *FileStore) Delete(ctx context.Context, key *Key) error {
	s.mutex.Lock()
	err := os.Remove(s.filename(key))
	s.mutex.Unlock()
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if cache := GetCache(key.Kind); cache != nil {
		cache.Delete(key)
	}
	return nil
}
