/*
DESCRIPTION
  Local authentication provider backed by the document store.

AUTHORS
  Tom Ashworth <tom@dojopal.app>
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

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dojopal/cloud/datastore"
)

const (
	typeCredential = "credentials"

	// localTokenDuration bounds the lifetime of tokens issued by
	// the local provider.
	localTokenDuration = 7 * 24 * time.Hour
)

// credential is a stored email+password credential. The entity is
// keyed by the lowercased email address so sign-in needs no query,
// and carries the UID that keys the user's account record.
type credential struct {
	UID     string    `firestore:"uid" json:"uid"`
	Email   string    `firestore:"email" json:"email"`
	Hash    []byte    `firestore:"hash" json:"hash"` // bcrypt hash of the password
	Created time.Time `firestore:"created" json:"created"`
}

// Encode serializes a credential.
func (c *credential) Encode() []byte {
	b, _ := json.Marshal(c)
	return b
}

// Decode deserializes a credential.
func (c *credential) Decode(b []byte) error {
	if json.Unmarshal(b, c) != nil {
		return datastore.ErrDecoding
	}
	return nil
}

// Copy copies a credential to dst, or returns a copy of the
// credential when dst is nil.
func (c *credential) Copy(dst datastore.Entity) (datastore.Entity, error) {
	var c2 *credential
	if dst == nil {
		c2 = new(credential)
	} else {
		var ok bool
		c2, ok = dst.(*credential)
		if !ok {
			return nil, datastore.ErrWrongType
		}
	}
	*c2 = *c
	c2.Hash = append([]byte(nil), c.Hash...)
	return c2, nil
}

// GetCache returns nil, since credentials are not cached.
func (c *credential) GetCache() datastore.Cache {
	return nil
}

// LocalService is an authentication provider that keeps credentials
// in the document store and issues HS256 JWT session tokens. It is
// used in standalone mode where no external identity provider is
// reachable, and is the reference implementation for testing code
// that consumes the Service interface.
type LocalService struct {
	store  datastore.Store
	secret []byte
}

// NewLocalService returns a LocalService storing credentials in
// store and signing session tokens with secret.
func NewLocalService(store datastore.Store, secret []byte) *LocalService {
	return &LocalService{store: store, secret: secret}
}

func credentialKey(store datastore.Store, email string) *datastore.Key {
	return store.NameKey(typeCredential, strings.ToLower(strings.TrimSpace(email)))
}

// token issues a session token binding the UID and email.
func (svc *LocalService) token(uid, email string) (string, error) {
	now := time.Now()
	return PutClaims(map[string]interface{}{
		"uid":   uid,
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(localTokenDuration).Unix(),
	}, svc.secret)
}

// SignUp creates a credential and returns a signed-in session, or
// ErrEmailInUse when the email already has one.
func (svc *LocalService) SignUp(ctx context.Context, email, password string) (*Session, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	c := &credential{
		UID:     uuid.NewString(),
		Email:   email,
		Hash:    hash,
		Created: time.Now(),
	}
	err = svc.store.Create(ctx, credentialKey(svc.store, email), c)
	switch {
	case errors.Is(err, datastore.ErrEntityExists):
		return nil, ErrEmailInUse
	case err != nil:
		return nil, err
	}
	tok, err := svc.token(c.UID, c.Email)
	if err != nil {
		return nil, err
	}
	return &Session{UID: c.UID, Email: c.Email, Token: tok}, nil
}

// SignIn authenticates a credential. An unknown email and a wrong
// password are indistinguishable to the caller.
func (svc *LocalService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var c credential
	err := svc.store.Get(ctx, credentialKey(svc.store, email), &c)
	switch {
	case errors.Is(err, datastore.ErrNoSuchEntity):
		return nil, ErrInvalidCredentials
	case err != nil:
		return nil, err
	}
	if bcrypt.CompareHashAndPassword(c.Hash, []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	tok, err := svc.token(c.UID, c.Email)
	if err != nil {
		return nil, err
	}
	return &Session{UID: c.UID, Email: c.Email, Token: tok}, nil
}

// SignOut clears the session. Tokens are stateless, so nothing is
// revoked server side; the token simply expires.
func (svc *LocalService) SignOut(ctx context.Context, s *Session) error {
	if s != nil {
		*s = Session{}
	}
	return nil
}

// Identity verifies the session token and returns the identity it
// binds.
func (svc *LocalService) Identity(ctx context.Context, s *Session) (*Identity, error) {
	if !s.SignedIn() {
		return nil, ErrNoSession
	}
	claims, err := GetClaims(s.Token, svc.secret)
	if err != nil {
		return nil, ErrNoSession
	}
	uid, _ := claims["uid"].(string)
	email, _ := claims["email"].(string)
	if uid == "" {
		return nil, ErrNoSession
	}
	return &Identity{UID: uid, Email: email}, nil
}

// UpdateEmail re-keys the credential under the new email address.
// The create-then-delete pair is not transactional; a crash between
// the two leaves both keys resolving to the same UID, which a
// repeat of the update cleans up.
func (svc *LocalService) UpdateEmail(ctx context.Context, s *Session, newEmail string) error {
	ident, err := svc.Identity(ctx, s)
	if err != nil {
		return err
	}
	var c credential
	err = svc.store.Get(ctx, credentialKey(svc.store, ident.Email), &c)
	if err != nil {
		return err
	}
	c.Email = newEmail
	err = svc.store.Create(ctx, credentialKey(svc.store, newEmail), &c)
	switch {
	case errors.Is(err, datastore.ErrEntityExists):
		return ErrEmailInUse
	case err != nil:
		return err
	}
	err = svc.store.Delete(ctx, credentialKey(svc.store, ident.Email))
	if err != nil {
		return err
	}
	tok, err := svc.token(c.UID, c.Email)
	if err != nil {
		return err
	}
	s.Email = newEmail
	s.Token = tok
	return nil
}

// UpdatePassword re-authenticates with the current password and
// stores a new hash.
func (svc *LocalService) UpdatePassword(ctx context.Context, s *Session, currentPassword, newPassword string) error {
	ident, err := svc.Identity(ctx, s)
	if err != nil {
		return err
	}
	var c credential
	err = svc.store.Get(ctx, credentialKey(svc.store, ident.Email), &c)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword(c.Hash, []byte(currentPassword)) != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	c.Hash = hash
	_, err = svc.store.Put(ctx, credentialKey(svc.store, ident.Email), &c)
	return err
}
