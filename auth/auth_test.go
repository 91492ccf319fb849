/*
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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojopal/cloud/datastore"
)

const (
	testEmail    = "sensei@example.com"
	testPassword = "Osu!Kara7e"
)

func newLocalService(t *testing.T) *LocalService {
	t.Helper()
	store, err := datastore.NewStore(context.Background(), "file", "dojopal", t.TempDir())
	require.NoError(t, err, "could not create store")
	return NewLocalService(store, []byte("test-signing-secret"))
}

// TestLocalSignUpAndIn exercises the full credential lifecycle of
// the local provider.
func TestLocalSignUpAndIn(t *testing.T) {
	ctx := context.Background()
	svc := newLocalService(t)

	// Sign-in before sign-up must fail without leaking whether
	// the email exists.
	_, err := svc.SignIn(ctx, testEmail, testPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	s, err := svc.SignUp(ctx, testEmail, testPassword)
	require.NoError(t, err)
	assert.True(t, s.SignedIn())
	assert.NotEmpty(t, s.UID)
	assert.Equal(t, testEmail, s.Email)

	ident, err := svc.Identity(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, s.UID, ident.UID)
	assert.Equal(t, testEmail, ident.Email)

	// A duplicate sign-up is rejected.
	_, err = svc.SignUp(ctx, testEmail, "AnotherPass1!")
	assert.ErrorIs(t, err, ErrEmailInUse)

	// Email lookup is case-insensitive.
	s2, err := svc.SignIn(ctx, "Sensei@Example.COM", testPassword)
	require.NoError(t, err)
	assert.Equal(t, s.UID, s2.UID)

	_, err = svc.SignIn(ctx, testEmail, "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = svc.SignOut(ctx, s)
	require.NoError(t, err)
	assert.False(t, s.SignedIn())
	_, err = svc.Identity(ctx, s)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.NoError(t, svc.SignOut(ctx, s), "repeated sign-out should be a no-op")
}

// TestLocalUpdateEmail tests re-keying of the credential and that
// the stale address is freed for reuse.
func TestLocalUpdateEmail(t *testing.T) {
	ctx := context.Background()
	svc := newLocalService(t)

	s, err := svc.SignUp(ctx, testEmail, testPassword)
	require.NoError(t, err)
	uid := s.UID

	const newEmail = "shihan@example.com"
	require.NoError(t, svc.UpdateEmail(ctx, s, newEmail))
	assert.Equal(t, newEmail, s.Email)

	// The UID survives the change and the session stays valid.
	ident, err := svc.Identity(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, uid, ident.UID)
	assert.Equal(t, newEmail, ident.Email)

	_, err = svc.SignIn(ctx, newEmail, testPassword)
	assert.NoError(t, err)
	_, err = svc.SignIn(ctx, testEmail, testPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Moving onto an address that already has a credential fails.
	_, err = svc.SignUp(ctx, testEmail, testPassword)
	require.NoError(t, err)
	err = svc.UpdateEmail(ctx, s, testEmail)
	assert.ErrorIs(t, err, ErrEmailInUse)
}

// TestLocalUpdatePassword tests the re-authentication gate on
// password changes.
func TestLocalUpdatePassword(t *testing.T) {
	ctx := context.Background()
	svc := newLocalService(t)

	s, err := svc.SignUp(ctx, testEmail, testPassword)
	require.NoError(t, err)

	const newPassword = "Brand-New-Pass2"
	err = svc.UpdatePassword(ctx, s, "not the password", newPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.SignIn(ctx, testEmail, testPassword)
	assert.NoError(t, err, "failed re-auth should leave the password unchanged")

	require.NoError(t, svc.UpdatePassword(ctx, s, testPassword, newPassword))
	_, err = svc.SignIn(ctx, testEmail, newPassword)
	assert.NoError(t, err)
	_, err = svc.SignIn(ctx, testEmail, testPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

// fakeToolkit serves a minimal in-memory rendition of the Identity
// Toolkit REST surface for provider tests.
func fakeToolkit(t *testing.T) *httptest.Server {
	t.Helper()
	users := map[string]string{} // email -> password
	fail := func(w http.ResponseWriter, code string) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"message": code},
		})
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("could not decode request: %v", err)
		}
		str := func(k string) string {
			s, _ := req[k].(string)
			return s
		}
		switch r.URL.Path {
		case "/accounts:signUp":
			if _, ok := users[str("email")]; ok {
				fail(w, "EMAIL_EXISTS")
				return
			}
			users[str("email")] = str("password")
			json.NewEncoder(w).Encode(map[string]string{
				"localId": "uid-" + str("email"), "email": str("email"),
				"idToken": "tok-" + str("email"), "refreshToken": "ref-1",
			})
		case "/accounts:signInWithPassword":
			if pw, ok := users[str("email")]; !ok || pw != str("password") {
				fail(w, "INVALID_LOGIN_CREDENTIALS")
				return
			}
			json.NewEncoder(w).Encode(map[string]string{
				"localId": "uid-" + str("email"), "email": str("email"),
				"idToken": "tok-" + str("email"), "refreshToken": "ref-1",
			})
		case "/accounts:lookup":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"users": []map[string]string{{
					"localId": "uid-" + testEmail, "email": testEmail,
				}},
			})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
}

// TestIdentityToolkit tests the REST provider against a fake
// endpoint, including verbatim surfacing of provider error codes.
func TestIdentityToolkit(t *testing.T) {
	ctx := context.Background()
	srv := fakeToolkit(t)
	defer srv.Close()

	svc := NewIdentityToolkit("test-key")
	svc.base = srv.URL + "/"

	s, err := svc.SignUp(ctx, testEmail, testPassword)
	require.NoError(t, err)
	assert.Equal(t, "uid-"+testEmail, s.UID)
	assert.True(t, s.SignedIn())

	_, err = svc.SignUp(ctx, testEmail, testPassword)
	assert.ErrorIs(t, err, ErrEmailInUse)
	assert.EqualError(t, err, "EMAIL_EXISTS")

	_, err = svc.SignIn(ctx, testEmail, "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.EqualError(t, err, "INVALID_LOGIN_CREDENTIALS")

	ident, err := svc.Identity(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, "uid-"+testEmail, ident.UID)

	require.NoError(t, svc.SignOut(ctx, s))
	_, err = svc.Identity(ctx, s)
	assert.ErrorIs(t, err, ErrNoSession)
}

// TestProviderErrorMapping tests the code-to-sentinel mapping.
func TestProviderErrorMapping(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{"EMAIL_EXISTS", ErrEmailInUse},
		{"EMAIL_NOT_FOUND", ErrInvalidCredentials},
		{"INVALID_PASSWORD", ErrInvalidCredentials},
		{"INVALID_LOGIN_CREDENTIALS", ErrInvalidCredentials},
		{"INVALID_LOGIN_CREDENTIALS : Too many attempts", ErrInvalidCredentials},
		{"TOKEN_EXPIRED", ErrNoSession},
		{"OPERATION_NOT_ALLOWED", nil},
	}
	for _, test := range tests {
		err := &ProviderError{Code: test.code, Status: http.StatusBadRequest}
		if test.want == nil {
			if errors.Is(err, ErrEmailInUse) || errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrNoSession) {
				t.Errorf("%s: expected no sentinel mapping", test.code)
			}
			continue
		}
		if !errors.Is(err, test.want) {
			t.Errorf("%s: expected mapping to %v", test.code, test.want)
		}
	}
}
