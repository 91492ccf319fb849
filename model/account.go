/*
DESCRIPTION
  Datastore account type and functions.

AUTHORS
  Maya Clarke <maya@dojopal.app>

LICENSE
  Copyright (C) 2025-2026 the DojoPal project.

  This is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  This is distributed in the hope that it will be useful, but WITHOUT
  ANY WARRANTY; without even the implied warranty of MERCHANTABILITY
  or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public
  License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

package model

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/dojopal/cloud/datastore"
)

// typeAccount is the name of the datastore account collection.
const typeAccount = "accounts"

// Model errors.
var (
	ErrStudentNotFound = errors.New("student not found")
	ErrTermsNotAgreed  = errors.New("membership terms not agreed")
)

// Account represents a club owner's profile. One account exists per
// authenticated identity and holds the full student roster. An
// account is pending until an administrator approves it out of band;
// only then does its owner gain access beyond the approval status.
type Account struct {
	ID           string    `firestore:"-" json:"-"`                       // Identity UID, equal to the document ID.
	FirstName    string    `firestore:"firstName" json:"firstName"`       // Owner's first name.
	LastName     string    `firestore:"lastName" json:"lastName"`         // Owner's last name.
	EmailAddress string    `firestore:"emailAddress" json:"emailAddress"` // Owner's email address.
	ClubName     string    `firestore:"clubName" json:"clubName"`         // Name of the club.
	Approved     bool      `firestore:"approved" json:"approved"`         // Set out of band by an administrator.
	Students     []Student `firestore:"students" json:"students"`         // Roster, in insertion order.
	CreatedAt    time.Time `firestore:"createdAt" json:"createdAt"`       // Date/time created.
	UpdatedAt    time.Time `firestore:"updatedAt" json:"updatedAt"`       // Date/time of the last write.
}

// FullName returns the owner's first and last name joined by a
// space, with leading and trailing whitespace removed.
func (acc *Account) FullName() string {
	return strings.TrimSpace(acc.FirstName + " " + acc.LastName)
}

// Encode serializes an Account into JSON.
func (acc *Account) Encode() []byte {
	bytes, _ := json.Marshal(acc)
	return bytes
}

// Decode deserializes an Account from JSON.
func (acc *Account) Decode(b []byte) error {
	err := json.Unmarshal(b, acc)
	if err != nil {
		return datastore.ErrDecoding
	}
	return nil
}

// Copy copies an account to dst, or returns a copy of the account
// when dst is nil. The roster and grading histories are copied, not
// shared.
func (acc *Account) Copy(dst datastore.Entity) (datastore.Entity, error) {
	var a *Account
	if dst == nil {
		a = new(Account)
	} else {
		var ok bool
		a, ok = dst.(*Account)
		if !ok {
			return nil, datastore.ErrWrongType
		}
	}
	*a = *acc
	a.Students = make([]Student, len(acc.Students))
	for i, s := range acc.Students {
		a.Students[i] = s
		a.Students[i].GradingHistory = append([]Grade(nil), s.GradingHistory...)
	}
	return a, nil
}

// GetCache returns nil, indicating no caching. Mutations are
// read-modify-write over the whole aggregate, so reads must always
// hit the store.
func (acc *Account) GetCache() datastore.Cache {
	return nil
}

// findStudent returns the index of the student with the given ID, or -1.
func (acc *Account) findStudent(id string) int {
	for i := range acc.Students {
		if acc.Students[i].ID == id {
			return i
		}
	}
	return -1
}

// GetAccount returns the account aggregate, students and grading
// history included, for the given identity UID. A record that cannot
// be decoded is logged and reported as missing.
func GetAccount(ctx context.Context, store datastore.Store, id string) (*Account, error) {
	key := store.NameKey(typeAccount, id)
	var acc Account
	err := store.Get(ctx, key, &acc)
	if errors.Is(err, datastore.ErrDecoding) {
		log.Printf("malformed account record %s treated as missing: %v", id, err)
		return nil, datastore.ErrNoSuchEntity
	}
	if err != nil {
		return nil, err
	}
	acc.ID = id
	acc.ensureIDs()
	return &acc, nil
}

// CreateAccount writes a brand-new account record keyed by the given
// identity UID, stamping the created and updated times. Any existing
// record at that key is overwritten unconditionally.
func CreateAccount(ctx context.Context, store datastore.Store, acc *Account, id string) error {
	now := time.Now()
	acc.ID = id
	acc.CreatedAt = now
	acc.UpdatedAt = now
	key := store.NameKey(typeAccount, id)
	_, err := store.Put(ctx, key, acc)
	return err
}

// PutAccount replaces the account record keyed by the given identity
// UID, stamping a fresh updated time. There is no concurrency check;
// the last write wins.
func PutAccount(ctx context.Context, store datastore.Store, acc *Account, id string) error {
	acc.ID = id
	acc.UpdatedAt = time.Now()
	key := store.NameKey(typeAccount, id)
	_, err := store.Put(ctx, key, acc)
	return err
}

// UpdateAccountEmail sets the account's email address. Used after an
// identity-provider email change, which is a separate write.
func UpdateAccountEmail(ctx context.Context, store datastore.Store, id, email string) error {
	acc, err := GetAccount(ctx, store, id)
	if err != nil {
		return err
	}
	acc.EmailAddress = email
	return PutAccount(ctx, store, acc, id)
}
