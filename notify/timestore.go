/*
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

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dojopal/cloud/datastore"
)

const typeNotice = "notices"

// TimeStore is an interface for notification persistence.
type TimeStore interface {
	Sendable(context.Context, time.Duration, string) (bool, error) // Returns true if a message is sendable.
	Sent(context.Context, string) error                            // Records the time a message was sent.
}

// notice records the last time a message with a given key was sent.
type notice struct {
	Sent time.Time `firestore:"sent" json:"sent"`
}

func (n *notice) Encode() []byte {
	b, _ := json.Marshal(n)
	return b
}

func (n *notice) Decode(b []byte) error {
	if json.Unmarshal(b, n) != nil {
		return datastore.ErrDecoding
	}
	return nil
}

func (n *notice) Copy(dst datastore.Entity) (datastore.Entity, error) {
	var n2 *notice
	if dst == nil {
		n2 = new(notice)
	} else {
		var ok bool
		n2, ok = dst.(*notice)
		if !ok {
			return nil, datastore.ErrWrongType
		}
	}
	*n2 = *n
	return n2, nil
}

func (n *notice) GetCache() datastore.Cache {
	return nil
}

// timeStore implements a TimeStore that uses a datastore for persistence.
type timeStore struct {
	store datastore.Store
}

// NewTimeStore returns a TimeStore that uses a datastore for
// notification persistence. The notification period is set by the
// WithPeriod option.
func NewTimeStore(store datastore.Store) TimeStore {
	return &timeStore{store: store}
}

// Sendable retrieves the notice stored for key and returns true
// either if (1) the specified period has elapsed since the last time
// a message for the key was sent or (2) a message is being sent for
// the first time.
func (ts *timeStore) Sendable(ctx context.Context, period time.Duration, key string) (bool, error) {
	var n notice
	err := ts.store.Get(ctx, ts.store.NameKey(typeNotice, key), &n)

	switch {
	case err == nil:
		return time.Since(n.Sent) >= period, nil
	case errors.Is(err, datastore.ErrNoSuchEntity):
		return true, nil // No record of sending this kind of message.
	default:
		return true, err // Unexpected datastore error.
	}
}

// Sent records the time that a message with the given key was sent.
func (ts *timeStore) Sent(ctx context.Context, key string) error {
	_, err := ts.store.Put(ctx, ts.store.NameKey(typeNotice, key), &notice{Sent: time.Now()})
	return err
}
