// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"time"
)

// State is the per-browser-session record of the relying-party flow.
//
// A non-nil TokenSet implies ClientConfigured; callers check the token set
// first when deciding what the session can do.
type State struct {
	// ClientConfigured is true only after a successful discovery was made on
	// behalf of this session.
	ClientConfigured bool `json:"client_configured"`

	// ConfigID is the registry snapshot that was current when this session
	// configured the client.
	ConfigID string `json:"config_id,omitempty"`

	RedirectURI          string `json:"redirect_uri,omitempty"`
	IdentityProviderHint string `json:"idp_hint,omitempty"`

	// Login is set by a login attempt and consumed by its callback.
	Login *LoginContext `json:"login,omitempty"`

	TokenSet *TokenSet `json:"token_set,omitempty"`
}

// LoginContext pins what a login was started with so the callback completes
// against the same client.
type LoginContext struct {
	State       string    `json:"state"`
	ConfigID    string    `json:"config_id"`
	RedirectURI string    `json:"redirect_uri"`
	IdpHint     string    `json:"idp_hint,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TokenSet holds the raw tokens from a successful code exchange.  The values
// are kept as plain strings since the oidc token types redact themselves when
// marshaled.
type TokenSet struct {
	IdToken      string    `json:"id_token"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// Clone returns a deep copy of s.  A nil State clones to an empty one.
func (s *State) Clone() *State {
	if s == nil {
		return &State{}
	}
	c := *s
	if s.Login != nil {
		l := *s.Login
		c.Login = &l
	}
	if s.TokenSet != nil {
		ts := *s.TokenSet
		c.TokenSet = &ts
	}
	return &c
}

// IsEmpty reports whether s carries nothing worth persisting.
func (s *State) IsEmpty() bool {
	return s == nil || (!s.ClientConfigured && s.ConfigID == "" && s.RedirectURI == "" &&
		s.IdentityProviderHint == "" && s.Login == nil && s.TokenSet == nil)
}
