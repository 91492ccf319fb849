/*
DESCRIPTION
  Google Identity Toolkit authentication provider.

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

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// identityToolkitURL is the production endpoint for the Identity
// Toolkit REST API, which fronts Firebase Authentication projects.
const identityToolkitURL = "https://identitytoolkit.googleapis.com/v1/"

// ProviderError is an error reported by the identity provider. The
// Code is the provider's machine-readable message, e.g. EMAIL_EXISTS
// or INVALID_LOGIN_CREDENTIALS, surfaced verbatim.
type ProviderError struct {
	Code   string
	Status int
}

// Error returns the provider's message verbatim.
func (e *ProviderError) Error() string {
	return e.Code
}

// Unwrap maps well-known provider codes onto this package's
// sentinel errors so callers can match with errors.Is.
func (e *ProviderError) Unwrap() error {
	switch {
	case e.Code == "EMAIL_EXISTS":
		return ErrEmailInUse
	case e.Code == "EMAIL_NOT_FOUND", e.Code == "INVALID_PASSWORD",
		strings.HasPrefix(e.Code, "INVALID_LOGIN_CREDENTIALS"):
		return ErrInvalidCredentials
	case strings.HasPrefix(e.Code, "INVALID_ID_TOKEN"), strings.HasPrefix(e.Code, "TOKEN_EXPIRED"):
		return ErrNoSession
	}
	return nil
}

// IdentityToolkit authenticates against the Google Identity Toolkit
// REST API using a Firebase web API key.
type IdentityToolkit struct {
	apiKey string
	base   string
	client *http.Client
}

// NewIdentityToolkit returns a provider for the Firebase project
// identified by apiKey.
func NewIdentityToolkit(apiKey string) *IdentityToolkit {
	return &IdentityToolkit{
		apiKey: apiKey,
		base:   identityToolkitURL,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// post sends one Identity Toolkit RPC and decodes the response into
// out. Provider failures are returned as *ProviderError.
func (svc *IdentityToolkit) post(ctx context.Context, method string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	url := svc.base + "accounts:" + method + "?key=" + svc.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := svc.client.Do(req)
	if err != nil {
		return fmt.Errorf("could not call %s: %w", method, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error.Message != "" {
			return &ProviderError{Code: e.Error.Message, Status: resp.StatusCode}
		}
		return fmt.Errorf("%s failed with status %d", method, resp.StatusCode)
	}
	return json.Unmarshal(data, out)
}

type tokenResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
}

func (r *tokenResponse) session() *Session {
	return &Session{
		UID:          r.LocalID,
		Email:        r.Email,
		Token:        r.IDToken,
		RefreshToken: r.RefreshToken,
	}
}

// SignUp registers a new email+password user.
func (svc *IdentityToolkit) SignUp(ctx context.Context, email, password string) (*Session, error) {
	var resp tokenResponse
	err := svc.post(ctx, "signUp", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.session(), nil
}

// SignIn authenticates an email+password user.
func (svc *IdentityToolkit) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var resp tokenResponse
	err := svc.post(ctx, "signInWithPassword", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.session(), nil
}

// SignOut clears the session. The provider keeps no server-side
// session, so the ID token is simply dropped.
func (svc *IdentityToolkit) SignOut(ctx context.Context, s *Session) error {
	if s != nil {
		*s = Session{}
	}
	return nil
}

// Identity looks up the identity bound to the session's ID token.
func (svc *IdentityToolkit) Identity(ctx context.Context, s *Session) (*Identity, error) {
	if !s.SignedIn() {
		return nil, ErrNoSession
	}
	var resp struct {
		Users []struct {
			LocalID string `json:"localId"`
			Email   string `json:"email"`
		} `json:"users"`
	}
	err := svc.post(ctx, "lookup", map[string]interface{}{"idToken": s.Token}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, ErrNoSession
	}
	return &Identity{UID: resp.Users[0].LocalID, Email: resp.Users[0].Email}, nil
}

// UpdateEmail changes the credential's email address and refreshes
// the session with the re-issued token.
func (svc *IdentityToolkit) UpdateEmail(ctx context.Context, s *Session, newEmail string) error {
	if !s.SignedIn() {
		return ErrNoSession
	}
	var resp tokenResponse
	err := svc.post(ctx, "update", map[string]interface{}{
		"idToken":           s.Token,
		"email":             newEmail,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return err
	}
	s.Email = newEmail
	if resp.IDToken != "" {
		s.Token = resp.IDToken
		s.RefreshToken = resp.RefreshToken
	}
	return nil
}

// UpdatePassword re-authenticates with the current password and
// sets the new one.
func (svc *IdentityToolkit) UpdatePassword(ctx context.Context, s *Session, currentPassword, newPassword string) error {
	ident, err := svc.Identity(ctx, s)
	if err != nil {
		return err
	}
	fresh, err := svc.SignIn(ctx, ident.Email, currentPassword)
	if err != nil {
		return err
	}
	var resp tokenResponse
	err = svc.post(ctx, "update", map[string]interface{}{
		"idToken":           fresh.Token,
		"password":          newPassword,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return err
	}
	if resp.IDToken != "" {
		s.Token = resp.IDToken
		s.RefreshToken = resp.RefreshToken
	}
	return nil
}
