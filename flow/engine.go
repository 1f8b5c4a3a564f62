// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package flow is the relying-party state machine.  A session moves from
// unconfigured to configured when its operator configures a client, to
// authenticated after a successful callback, and back to unconfigured on
// logout.  The Engine reads and writes session.State and the shared
// registry; it knows nothing about HTTP.
package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/cap-oidc-demo/oidc"
	"github.com/hashicorp/cap-oidc-demo/registry"
	"github.com/hashicorp/cap-oidc-demo/session"
	"github.com/hashicorp/go-hclog"
)

// Engine drives sessions through the authorization code flow.
type Engine struct {
	registry     *registry.Registry
	store        session.Store
	logger       hclog.Logger
	idpHintParam string
	verify       bool
	loginTTL     time.Duration
	now          func() time.Time
}

// NewEngine creates an Engine.
//
// Supported options:
//
//	WithLogger
//	WithIdpHintParam
//	WithVerifyIdToken
//	WithLoginTTL
//	WithNow
func NewEngine(reg *registry.Registry, store session.Store, opt ...Option) (*Engine, error) {
	const op = "flow.NewEngine"
	if reg == nil {
		return nil, fmt.Errorf("%s: registry is nil: %w", op, oidc.ErrNilParameter)
	}
	if store == nil {
		return nil, fmt.Errorf("%s: session store is nil: %w", op, oidc.ErrNilParameter)
	}
	opts := getEngineOpts(opt...)
	return &Engine{
		registry:     reg,
		store:        store,
		logger:       opts.withLogger,
		idpHintParam: opts.withIdpHintParam,
		verify:       opts.withVerify,
		loginTTL:     opts.withLoginTTL,
		now:          opts.withNow,
	}, nil
}

// CallbackParams are the query parameters of the provider's redirect back to
// the relying party.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// View is what a session's home page shows.
type View struct {
	Phase Phase

	// Set when authenticated.
	Subject           string
	IdTokenClaims      map[string]interface{}
	AccessTokenClaims  map[string]interface{}
	AccessTokenExpired bool
	UserInfo           map[string]interface{}
}

// Configure registers the client described by req and marks the session as
// configured.  A discovery or validation failure leaves the registry and the
// session as they were.  The registry swap happens before the session is
// saved, so a session store failure is reported after the new client is
// already current.
func (e *Engine) Configure(ctx context.Context, sessionID string, req registry.Request) (*registry.Snapshot, error) {
	const op = "flow.(Engine).Configure"
	snap, err := e.registry.Configure(ctx, req)
	if err != nil {
		return nil, newError(ErrConfiguration, op, "unable to configure oidc client", err)
	}
	_, err = session.Update(ctx, e.store, sessionID, func(s *session.State) error {
		s.ClientConfigured = true
		s.ConfigID = snap.ID
		s.RedirectURI = snap.RedirectURI
		s.IdentityProviderHint = snap.IdentityProviderHint
		return nil
	})
	if err != nil {
		e.logger.Warn("client registered but session not saved", "config_id", snap.ID, "error", err)
		return nil, newError(ErrSession, op, "unable to save session", err)
	}
	e.logger.Debug("session configured", "config_id", snap.ID)
	return snap, nil
}

// Login starts an authorization code flow for the session and returns the
// provider URL the browser should be redirected to.
//
// Supported options:
//
//	WithUILocales
func (e *Engine) Login(ctx context.Context, sessionID string, opt ...Option) (string, error) {
	const op = "flow.(Engine).Login"
	opts := getLoginOpts(opt...)
	snap, err := e.registry.Current()
	if err != nil {
		return "", newError(ErrAuthorization, op, "", err)
	}
	s, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return "", newError(ErrSession, op, "unable to read session", err)
	}
	if !s.ClientConfigured {
		return "", newError(ErrAuthorization, op, "oidc client is not configured for this session", nil)
	}

	state, err := oidc.NewId("st")
	if err != nil {
		return "", newError(ErrAuthorization, op, "unable to generate state", err)
	}
	redirectURI := s.RedirectURI
	if redirectURI == "" {
		redirectURI = snap.RedirectURI
	}
	authURL, err := snap.Provider.AuthURL(ctx, state, redirectURI,
		oidc.WithAuthParam(e.idpHintParam, s.IdentityProviderHint),
		oidc.WithUILocales(opts.withUILocales...),
	)
	if err != nil {
		return "", newError(ErrAuthorization, op, "unable to build authorization url", err)
	}

	s.Login = &session.LoginContext{
		State:       state,
		ConfigID:    snap.ID,
		RedirectURI: redirectURI,
		IdpHint:     s.IdentityProviderHint,
		CreatedAt:   e.now(),
	}
	if err := e.store.Set(ctx, sessionID, s); err != nil {
		return "", newError(ErrSession, op, "unable to save session", err)
	}
	e.logger.Debug("login started", "config_id", snap.ID, "issuer", snap.Provider.Issuer())
	return authURL, nil
}

// Callback completes a login by exchanging the authorization code.  Any
// failure leaves the session unchanged.
func (e *Engine) Callback(ctx context.Context, sessionID string, p CallbackParams) error {
	const op = "flow.(Engine).Callback"
	if p.Error != "" {
		msg := "provider returned " + p.Error
		if p.ErrorDescription != "" {
			msg += " (" + p.ErrorDescription + ")"
		}
		return newError(ErrCallback, op, msg, nil)
	}
	if p.Code == "" {
		return newError(ErrCallback, op, "missing authorization code", nil)
	}
	s, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return newError(ErrSession, op, "unable to read session", err)
	}

	var (
		snap        *registry.Snapshot
		redirectURI string
	)
	switch {
	case s.Login != nil:
		if p.State != s.Login.State {
			return newError(ErrCallback, op, "state doesn't match the login in progress", nil)
		}
		if e.now().After(s.Login.CreatedAt.Add(e.loginTTL)) {
			return newError(ErrCallback, op, "login expired", nil)
		}
		snap, err = e.registry.Lookup(s.Login.ConfigID)
		if err != nil {
			return newError(ErrCallback, op, "", err)
		}
		redirectURI = s.Login.RedirectURI
	case s.ClientConfigured:
		snap, err = e.registry.Current()
		if err != nil {
			return newError(ErrCallback, op, "", err)
		}
		redirectURI = s.RedirectURI
		if redirectURI == "" {
			redirectURI = snap.RedirectURI
		}
	default:
		return newError(ErrCallback, op, "no login in progress", nil)
	}

	tk, err := snap.Provider.Exchange(ctx, p.Code, redirectURI)
	if err != nil {
		return newError(ErrCallback, op, "code exchange failed", err)
	}
	if e.verify {
		if err := snap.Provider.VerifyIdToken(ctx, tk.IdToken); err != nil {
			return newError(ErrCallback, op, "id_token rejected", err)
		}
	}

	_, err = session.Update(ctx, e.store, sessionID, func(s *session.State) error {
		s.ClientConfigured = true
		s.ConfigID = snap.ID
		s.Login = nil
		s.TokenSet = &session.TokenSet{
			IdToken:      string(tk.IdToken),
			AccessToken:  string(tk.AccessToken),
			RefreshToken: string(tk.RefreshToken),
			Expiry:       tk.Expiry,
		}
		return nil
	})
	if err != nil {
		return newError(ErrSession, op, "unable to save session", err)
	}
	e.logger.Info("login completed", "config_id", snap.ID, "issuer", snap.Provider.Issuer())
	return nil
}

// View reports the session's phase.  For an authenticated session it decodes
// both tokens for display, without verifying them, and fetches userinfo.
func (e *Engine) View(ctx context.Context, sessionID string) (*View, error) {
	const op = "flow.(Engine).View"
	s, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return nil, newError(ErrSession, op, "unable to read session", err)
	}
	v := &View{Phase: PhaseOf(s)}
	if v.Phase != PhaseAuthenticated {
		return v, nil
	}

	if claims, err := oidc.UnverifiedClaims(s.TokenSet.IdToken); err == nil {
		v.IdTokenClaims = claims
		if sub, ok := claims["sub"].(string); ok {
			v.Subject = sub
		}
	} else {
		e.logger.Warn("unable to decode id_token", "error", err)
	}
	// opaque access tokens are common and simply aren't shown
	if claims, err := oidc.UnverifiedClaims(s.TokenSet.AccessToken); err == nil {
		v.AccessTokenClaims = claims
	}
	tk := &oidc.Token{AccessToken: oidc.AccessToken(s.TokenSet.AccessToken), Expiry: s.TokenSet.Expiry}
	v.AccessTokenExpired = !tk.Valid()

	snap, err := e.snapshotFor(s)
	if err != nil {
		return nil, newError(ErrUserinfo, op, "", err)
	}
	info, err := snap.Provider.UserInfo(ctx, oidc.AccessToken(s.TokenSet.AccessToken))
	if err != nil {
		return nil, newError(ErrUserinfo, op, "", err)
	}
	v.UserInfo = info
	return v, nil
}

// Logout destroys the session and returns where the browser should go next:
// the provider's end-session URL when one is available, otherwise "/".  The
// session is destroyed before returning.
func (e *Engine) Logout(ctx context.Context, sessionID, postLogoutRedirect string) (string, error) {
	const op = "flow.(Engine).Logout"
	target := "/"
	s, err := e.store.Get(ctx, sessionID)
	if err != nil {
		// still destroy what we can
		e.logger.Warn("unable to read session during logout", "error", err)
		s = &session.State{}
	}
	if snap, err := e.snapshotFor(s); err == nil && snap.Provider.SupportsEndSession() {
		var hint oidc.IdToken
		if s.TokenSet != nil {
			hint = oidc.IdToken(s.TokenSet.IdToken)
		}
		if u, err := snap.Provider.EndSessionURL(hint, postLogoutRedirect); err == nil {
			target = u
		} else {
			e.logger.Warn("unable to build end session url", "error", err)
		}
	}
	if err := e.store.Destroy(ctx, sessionID); err != nil {
		return "", newError(ErrSession, op, "unable to destroy session", err)
	}
	return target, nil
}

// snapshotFor prefers the snapshot the session last used, falling back to the
// current one once it's no longer retained.
func (e *Engine) snapshotFor(s *session.State) (*registry.Snapshot, error) {
	if s.ConfigID != "" {
		snap, err := e.registry.Lookup(s.ConfigID)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, registry.ErrSnapshotNotFound) {
			return nil, err
		}
	}
	return e.registry.Current()
}
