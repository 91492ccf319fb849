/*
DESCRIPTION
  Authentication gateway contract and session type.

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

// Package auth abstracts the external identity provider behind a
// narrow gateway: sign-in, sign-up, sign-out, session lookup and
// credential updates. Credential storage, hashing and token issue
// all belong to the provider; callers only thread the session value
// the provider hands out at sign-in and discard it at sign-out.
package auth

import (
	"context"
	"errors"
)

// Error types.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailInUse         = errors.New("email already in use")
	ErrNoSession          = errors.New("no session")
)

// Identity is the stable identity of an authenticated user. The UID
// keys the user's account record in the document store.
type Identity struct {
	UID   string
	Email string
}

// Session holds the provider session state for one signed-in user.
// It is created by SignIn or SignUp, passed explicitly to any
// operation needing to know who is signed in, and cleared by
// SignOut. A zero Session is signed out.
type Session struct {
	UID          string
	Email        string
	Token        string // Provider session token.
	RefreshToken string // Refresh token, where the provider issues one.
}

// SignedIn reports whether the session holds a provider token.
func (s *Session) SignedIn() bool {
	return s != nil && s.Token != ""
}

// Service is the authentication gateway.
type Service interface {
	// SignUp registers a new email+password credential and
	// returns a signed-in session. Materializing the account
	// profile is a separate, non-transactional follow-up write by
	// the caller.
	SignUp(ctx context.Context, email, password string) (*Session, error)

	// SignIn authenticates an email+password credential.
	SignIn(ctx context.Context, email, password string) (*Session, error)

	// SignOut clears the session. It is idempotent.
	SignOut(ctx context.Context, s *Session) error

	// Identity resolves the session to the authenticated
	// identity, or returns ErrNoSession.
	Identity(ctx context.Context, s *Session) (*Identity, error)

	// UpdateEmail changes the credential's email address. The
	// caller must separately propagate the change to the account
	// record; the two writes are independent.
	UpdateEmail(ctx context.Context, s *Session, newEmail string) error

	// UpdatePassword changes the credential's password after
	// re-authenticating with the current one.
	UpdatePassword(ctx context.Context, s *Session, currentPassword, newPassword string) error
}
