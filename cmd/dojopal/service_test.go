/*
AUTHORS
  Tom Ashworth <tom@dojopal.app>

LICENSE
  Copyright (C) 2025-2026 the DojoPal project.

  This file is part of DojoPal. DojoPal is free software: you can
  redistribute it and/or modify it under the terms of the GNU
  General Public License as published by the Free Software
  Foundation, either version 3 of the License, or (at your option)
  any later version.

  DojoPal is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  along with DojoPal in gpl.txt.  If not, see
  <http://www.gnu.org/licenses/>.
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojopal/cloud/auth"
	"github.com/dojopal/cloud/datastore"
	"github.com/dojopal/cloud/model"
	"github.com/dojopal/cloud/notify"
)

const (
	testEmail    = "sensei@example.com"
	testPassword = "Osu!Kara7e"
	testCode     = "WKC2006"
)

var testStudent = map[string]any{
	"firstName":               "Aiko",
	"lastName":                "Tanaka",
	"emailAddress":            "aiko@example.com",
	"phone":                   "07700 900123",
	"address":                 "1 Dojo Lane",
	"postcode":                "SW1A 1AA",
	"occupation":              "Teacher",
	"birthDate":               "02/03/1990",
	"clubName":                "Seishin Karate",
	"agreedToMembershipTerms": true,
	"agreedToPhotography":     true,
}

// newTestService builds a standalone service over a temporary file
// store, with the local auth provider and an unkeyed notifier.
func newTestService(t *testing.T) (*service, *fiber.App) {
	t.Helper()
	ctx := context.Background()

	store, err := datastore.NewStore(ctx, "file", projectID, t.TempDir())
	require.NoError(t, err, "could not create store")

	svc := &service{
		store:      store,
		auth:       auth.NewLocalService(store, []byte("test-signing-secret")),
		signupCode: testCode,
		standalone: true,
	}
	svc.notifier = &notify.Notifier{}
	require.NoError(t, svc.notifier.Init(notify.WithStore(notify.NewTimeStore(store))))

	return svc, svc.newApp()
}

// request sends a JSON request to the app, replaying any cookies.
func request(t *testing.T, app *fiber.App, method, path string, body any, cookies []*http.Cookie) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, respBody
}

// signup runs a successful sign-up and returns the session cookies.
func signup(t *testing.T, app *fiber.App) []*http.Cookie {
	t.Helper()
	resp, _ := request(t, app, http.MethodPost, "/api/v1/auth/signup", map[string]any{
		"firstName":         "Kenji",
		"lastName":          "Mori",
		"emailAddress":      testEmail,
		"clubName":          "Seishin Karate",
		"password":          testPassword,
		"confirmPassword":   testPassword,
		"authorizationCode": testCode,
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	cookies := resp.Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

// approve flips the approval flag, standing in for the out-of-band
// administrator action.
func approve(t *testing.T, svc *service) {
	t.Helper()
	ctx := context.Background()
	sess, err := svc.auth.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)
	acc, err := model.GetAccount(ctx, svc.store, sess.UID)
	require.NoError(t, err)
	acc.Approved = true
	require.NoError(t, model.PutAccount(ctx, svc.store, acc, sess.UID))
}

// TestAuthorizationCode tests the sign-up gate.
func TestAuthorizationCode(t *testing.T) {
	_, app := newTestService(t)

	resp, _ := request(t, app, http.MethodPost, "/api/v1/auth/code",
		map[string]any{"authorizationCode": "wrong"}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// The comparison is case-insensitive.
	resp, _ = request(t, app, http.MethodPost, "/api/v1/auth/code",
		map[string]any{"authorizationCode": "wkc2006"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// TestSignup tests sign-up validation, the pending state and
// duplicate rejection.
func TestSignup(t *testing.T) {
	_, app := newTestService(t)

	// A wrong authorization code blocks sign-up outright.
	resp, _ := request(t, app, http.MethodPost, "/api/v1/auth/signup", map[string]any{
		"authorizationCode": "wrong",
	}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Invalid fields come back as a per-field error map.
	resp, body := request(t, app, http.MethodPost, "/api/v1/auth/signup", map[string]any{
		"firstName":         "Kenji",
		"emailAddress":      "not-an-email",
		"password":          "short",
		"confirmPassword":   "different",
		"authorizationCode": testCode,
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var fe struct {
		FieldErrors map[string]string `json:"fieldErrors"`
	}
	require.NoError(t, json.Unmarshal(body, &fe))
	assert.NotEmpty(t, fe.FieldErrors["lastName"])
	assert.NotEmpty(t, fe.FieldErrors["emailAddress"])
	assert.NotEmpty(t, fe.FieldErrors["password"])
	assert.NotEmpty(t, fe.FieldErrors["confirmPassword"])

	cookies := signup(t, app)

	// The new account is pending, so roster access is forbidden.
	resp, _ = request(t, app, http.MethodGet, "/api/v1/students", nil, cookies)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// But the profile, including the approval flag, is readable.
	resp, body = request(t, app, http.MethodGet, "/api/v1/profile", nil, cookies)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var acc model.Account
	require.NoError(t, json.Unmarshal(body, &acc))
	assert.False(t, acc.Approved)
	assert.Equal(t, testEmail, acc.EmailAddress)

	// A duplicate sign-up conflicts.
	resp, _ = request(t, app, http.MethodPost, "/api/v1/auth/signup", map[string]any{
		"firstName":         "Kenji",
		"lastName":          "Mori",
		"emailAddress":      testEmail,
		"clubName":          "Seishin Karate",
		"password":          testPassword,
		"confirmPassword":   testPassword,
		"authorizationCode": testCode,
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

// TestSignin tests authentication and session round trips.
func TestSignin(t *testing.T) {
	_, app := newTestService(t)
	signup(t, app)

	resp, _ := request(t, app, http.MethodPost, "/api/v1/auth/signin", map[string]any{
		"emailAddress": testEmail,
		"password":     "wrong password",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := request(t, app, http.MethodPost, "/api/v1/auth/signin", map[string]any{
		"emailAddress": testEmail,
		"password":     testPassword,
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var acc model.Account
	require.NoError(t, json.Unmarshal(body, &acc))
	assert.False(t, acc.Approved)
	cookies := resp.Cookies()
	require.NotEmpty(t, cookies)

	// Sign out, after which the profile is unreachable.
	resp, _ = request(t, app, http.MethodPost, "/api/v1/auth/signout", nil, cookies)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = request(t, app, http.MethodGet, "/api/v1/profile", nil, resp.Cookies())
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// No session at all is unauthorized, and signing out without
	// one still succeeds.
	resp, _ = request(t, app, http.MethodGet, "/api/v1/profile", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = request(t, app, http.MethodPost, "/api/v1/auth/signout", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// TestRoster tests the full roster lifecycle on an approved account.
func TestRoster(t *testing.T) {
	svc, app := newTestService(t)
	cookies := signup(t, app)
	approve(t, svc)

	// Empty roster.
	resp, body := request(t, app, http.MethodGet, "/api/v1/students", nil, cookies)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, "[]", string(body))

	// An invalid postcode is rejected field-by-field.
	bad := map[string]any{}
	for k, v := range testStudent {
		bad[k] = v
	}
	bad["postcode"] = "12345"
	resp, _ = request(t, app, http.MethodPost, "/api/v1/students", bad, cookies)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// Valid student.
	resp, body = request(t, app, http.MethodPost, "/api/v1/students", testStudent, cookies)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var s model.Student
	require.NoError(t, json.Unmarshal(body, &s))
	require.NotEmpty(t, s.ID)
	assert.False(t, s.DateJoined.IsZero())

	// Add a grade.
	resp, body = request(t, app, http.MethodPost, "/api/v1/students/"+s.ID+"/grades", map[string]any{
		"datePassed": "01/06/2025",
		"examiner":   "T. Sato",
		"grade":      "10th Kyu",
		"gradeId":    "G-1001",
	}, cookies)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var g model.Grade
	require.NoError(t, json.Unmarshal(body, &g))
	assert.NotEmpty(t, g.ID)
	assert.Equal(t, 1, g.Order())

	// Apply for a license.
	resp, body = request(t, app, http.MethodPost, "/api/v1/students/"+s.ID+"/license", testStudent, cookies)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &s))
	assert.Equal(t, model.LicensePending, s.LicenseApplicationStatus)
	assert.Len(t, s.GradingHistory, 1, "grading history should survive the application")

	// An update cannot spoof license fields or drop the history.
	spoofed := map[string]any{}
	for k, v := range testStudent {
		spoofed[k] = v
	}
	spoofed["occupation"] = "Office worker"
	spoofed["licDate"] = "01/01/2024"
	spoofed["licExpDate"] = "01/01/2030"
	resp, body = request(t, app, http.MethodPut, "/api/v1/students/"+s.ID, spoofed, cookies)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &s))
	assert.Equal(t, "Office worker", s.Occupation)
	assert.Empty(t, s.LicDate)
	assert.Empty(t, s.LicExpDate)
	assert.Equal(t, model.LicensePending, s.LicenseApplicationStatus)
	assert.Len(t, s.GradingHistory, 1)

	// Unknown IDs are not found.
	resp, _ = request(t, app, http.MethodPut, "/api/v1/students/nope", testStudent, cookies)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = request(t, app, http.MethodDelete, "/api/v1/students/nope", nil, cookies)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Delete.
	resp, _ = request(t, app, http.MethodDelete, "/api/v1/students/"+s.ID, nil, cookies)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body = request(t, app, http.MethodGet, "/api/v1/students", nil, cookies)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, "[]", string(body))
}

// TestAccountSettings tests the approval gate on settings and the
// name, email and password updates.
func TestAccountSettings(t *testing.T) {
	svc, app := newTestService(t)
	cookies := signup(t, app)

	// A pending account cannot change its settings.
	resp, _ := request(t, app, http.MethodPut, "/api/v1/account", map[string]any{
		"clubName": "Changed While Pending",
	}, cookies)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// The rejected change left no trace.
	resp, body := request(t, app, http.MethodGet, "/api/v1/profile", nil, cookies)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var acc model.Account
	require.NoError(t, json.Unmarshal(body, &acc))
	assert.Equal(t, "Seishin Karate", acc.ClubName)

	approve(t, svc)

	// A name change alone.
	resp, body = request(t, app, http.MethodPut, "/api/v1/account", map[string]any{
		"clubName": "Seishin Karate Club",
	}, cookies)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &acc))
	assert.Equal(t, "Seishin Karate Club", acc.ClubName)

	// A password change needs the current password.
	resp, _ = request(t, app, http.MethodPut, "/api/v1/account", map[string]any{
		"newPassword":        "Brand-New-Pass2",
		"confirmNewPassword": "Brand-New-Pass2",
	}, cookies)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = request(t, app, http.MethodPut, "/api/v1/account", map[string]any{
		"currentPassword":    testPassword,
		"newPassword":        "Brand-New-Pass2",
		"confirmNewPassword": "Brand-New-Pass2",
	}, cookies)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = request(t, app, http.MethodPost, "/api/v1/auth/signin", map[string]any{
		"emailAddress": testEmail,
		"password":     "Brand-New-Pass2",
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// An email change propagates to both the credential and the
	// account record.
	const newEmail = "shihan@example.com"
	resp, body = request(t, app, http.MethodPut, "/api/v1/account", map[string]any{
		"emailAddress": newEmail,
	}, cookies)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &acc))
	assert.Equal(t, newEmail, acc.EmailAddress)

	resp, _ = request(t, app, http.MethodPost, "/api/v1/auth/signin", map[string]any{
		"emailAddress": newEmail,
		"password":     "Brand-New-Pass2",
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// TestRequestValidator tests that the custom field rules back the
// validate tags carried by the request types.
func TestRequestValidator(t *testing.T) {
	svc, _ := newTestService(t)

	assert.Error(t, svc.validator.Var("12345", "ukpostcode"))
	assert.NoError(t, svc.validator.Var("SW1A 1AA", "ukpostcode"))
	assert.Error(t, svc.validator.Var("not a phone", "ukphone"))
	assert.NoError(t, svc.validator.Var("07700 900123", "ukphone"))
	assert.Error(t, svc.validator.Var("31/02", "dmydate"))
	assert.NoError(t, svc.validator.Var("02/03/1990", "dmydate"))
	assert.Error(t, svc.validator.Var("weak", "strongpassword"))
	assert.NoError(t, svc.validator.Var(testPassword, "strongpassword"))

	// An empty student request fails its required tags outright.
	assert.Error(t, svc.validator.Struct(&studentRequest{}))
}
