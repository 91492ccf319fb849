package backend

import (
	"time"

	"github.com/dojopal/cloud/auth"
)

const (
	// sessionName is the name of the cookie carrying the signed-in
	// session.
	sessionName = "dojopal-session"

	// sessionKey is the key under which the auth session is stored
	// within the cookie session.
	sessionKey = "auth"

	// sessionMaxAge bounds how long a signed-in session survives
	// between requests.
	sessionMaxAge = 7 * 24 * time.Hour
)

// PutIdentity stores the signed-in auth session in the request's
// cookie session.
func PutIdentity(h Handler, s *auth.Session) error {
	sess, err := h.LoadSession(sessionName)
	if err != nil {
		return err
	}
	err = sess.Set(sessionKey, s)
	if err != nil {
		return err
	}
	err = sess.SetMaxAge(sessionMaxAge)
	if err != nil {
		return err
	}
	return h.SaveSession(sess)
}

// GetIdentity retrieves the signed-in auth session from the
// request's cookie session, or returns auth.ErrNoSession.
func GetIdentity(h Handler) (*auth.Session, error) {
	sess, err := h.LoadSession(sessionName)
	if err != nil {
		return nil, auth.ErrNoSession
	}
	var s auth.Session
	err = sess.Get(sessionKey, &s)
	if err != nil {
		return nil, auth.ErrNoSession
	}
	if !s.SignedIn() {
		return nil, auth.ErrNoSession
	}
	return &s, nil
}

// ClearIdentity invalidates the request's cookie session. It is
// idempotent.
func ClearIdentity(h Handler) error {
	sess, err := h.LoadSession(sessionName)
	if err != nil {
		return err
	}
	err = sess.Invalidate()
	if err != nil {
		return err
	}
	return h.SaveSession(sess)
}
