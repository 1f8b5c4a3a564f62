// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/hashicorp/cap-oidc-demo/oidc"
)

const (
	// DefaultCookieName is the name of the session cookie.
	DefaultCookieName = "oidc_demo_session"

	// MinKeyLength is the minimum length of a cookie signing key.
	MinKeyLength = 32

	idKey = "sid"
)

// ErrInvalidKey is returned when a cookie signing key is too short.
var ErrInvalidKey = errors.New("session key must be at least 32 bytes")

// Cookies binds a browser to a session id with a signed cookie.  Only the id
// travels in the cookie; State lives in a Store.
type Cookies struct {
	store *sessions.CookieStore
	name  string
}

// NewCookies creates Cookies signed with key.  When secure is true the cookie
// is only sent over https.  The cookie lives as long as the session TTL.
//
// Supported options:
//
//	WithTTL
func NewCookies(key []byte, secure bool, opt ...Option) (*Cookies, error) {
	const op = "session.NewCookies"
	if len(key) < MinKeyLength {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidKey)
	}
	opts := getStoreOpts(opt...)
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(opts.withTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Cookies{store: store, name: DefaultCookieName}, nil
}

// ID returns the request's session id, issuing a new id and cookie when the
// request has none or its cookie doesn't verify.
func (c *Cookies) ID(w http.ResponseWriter, r *http.Request) (string, error) {
	const op = "session.(Cookies).ID"
	// a cookie that fails verification still yields a fresh session
	sess, _ := c.store.Get(r, c.name)
	if id, ok := sess.Values[idKey].(string); ok && id != "" {
		return id, nil
	}
	id, err := oidc.NewId("sess")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	sess.Values[idKey] = id
	if err := sess.Save(r, w); err != nil {
		return "", fmt.Errorf("%s: unable to write session cookie: %w", op, err)
	}
	return id, nil
}

// Clear expires the session cookie.
func (c *Cookies) Clear(w http.ResponseWriter, r *http.Request) error {
	const op = "session.(Cookies).Clear"
	sess, _ := c.store.Get(r, c.name)
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
