package backend_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojopal/cloud/auth"
	"github.com/dojopal/cloud/backend"
)

var testSession = auth.Session{
	UID:   "2c31a2a7-6d55-4a29-9f5a-cc7efb1c7c0a",
	Email: "sensei@example.com",
	Token: "tok-abc123",
}

// TestFiberIdentity tests the identity round trip through the fiber
// handler: sign in on one request, read the identity back on the
// next, then clear it.
func TestFiberIdentity(t *testing.T) {
	app := fiber.New()

	app.Get("/signin", func(c *fiber.Ctx) error {
		s := testSession
		return backend.PutIdentity(backend.NewFiberHandler(c), &s)
	})
	app.Get("/whoami", func(c *fiber.Ctx) error {
		s, err := backend.GetIdentity(backend.NewFiberHandler(c))
		if err != nil {
			return c.SendStatus(http.StatusUnauthorized)
		}
		return c.SendString(s.UID)
	})
	app.Get("/signout", func(c *fiber.Ctx) error {
		return backend.ClearIdentity(backend.NewFiberHandler(c))
	})

	// No cookie yet, so no identity.
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/whoami", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Sign in and capture the session cookie.
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/signin", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	cookies := resp.Cookies()
	require.Len(t, cookies, 1, "expected 1 cookie to be set")
	assert.Positive(t, cookies[0].MaxAge)

	// Replay the cookie and check the identity comes back.
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(cookies[0])
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, testSession.UID, string(body))

	// Sign out; the replacement cookie must be expired.
	req = httptest.NewRequest(http.MethodGet, "/signout", nil)
	req.AddCookie(cookies[0])
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	cookies = resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Negative(t, cookies[0].MaxAge)
}

// TestFiberMalformedCookie tests that a garbage session cookie is
// treated as signed out rather than erroring.
func TestFiberMalformedCookie(t *testing.T) {
	app := fiber.New()
	app.Get("/whoami", func(c *fiber.Ctx) error {
		_, err := backend.GetIdentity(backend.NewFiberHandler(c))
		if err != nil {
			return c.SendStatus(http.StatusUnauthorized)
		}
		return c.SendStatus(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: "dojopal-session", Value: "%%%not-json"})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// TestNetIdentity tests the identity round trip through the
// net/http handler backed by the gorilla cookie store.
func TestNetIdentity(t *testing.T) {
	store := backend.NewCookieStore("test-cookie-secret")

	mux := http.NewServeMux()
	mux.HandleFunc("/signin", func(w http.ResponseWriter, r *http.Request) {
		s := testSession
		err := backend.PutIdentity(backend.NewNetHandler(w, r, store), &s)
		assert.NoError(t, err)
	})
	mux.HandleFunc("/whoami", func(w http.ResponseWriter, r *http.Request) {
		s, err := backend.GetIdentity(backend.NewNetHandler(w, r, store))
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(s.UID))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/whoami")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/signin")
	require.NoError(t, err)
	cookies := resp.Cookies()
	require.Len(t, cookies, 1)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/whoami", nil)
	require.NoError(t, err)
	req.AddCookie(cookies[0])
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, testSession.UID, string(body))
}
