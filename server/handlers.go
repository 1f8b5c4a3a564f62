// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/hashicorp/cap-oidc-demo/flow"
	"github.com/hashicorp/cap-oidc-demo/oidc"
	"github.com/hashicorp/cap-oidc-demo/registry"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/text/language"
)

// maxUILocales caps how many Accept-Language entries are forwarded.
const maxUILocales = 5

const (
	msgConfigureFailed = "Failed to configure OIDC client. Check your inputs and try again."
	msgNotConfigured   = "OIDC client is not configured."
	msgLoginFailed     = "Login failed"
	msgUserinfoFailed  = "Failed to fetch userinfo."
	msgSessionFailed   = "Session unavailable."
	msgRateLimited     = "Too many configuration attempts. Try again later."
	msgInternal        = "Internal server error."
)

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	sid, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	v, err := s.engine.View(r.Context(), sid)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	switch v.Phase {
	case flow.PhaseAuthenticated:
		s.render(w, r, "dashboard", v)
	case flow.PhaseConfigured:
		s.render(w, r, "login", nil)
	default:
		s.render(w, r, "configure", s.formData(r))
	}
}

func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	log := hclog.FromContext(r.Context())
	if !s.limiter.Allow() {
		log.Warn("configure rate limited")
		http.Error(w, msgRateLimited, http.StatusTooManyRequests)
		return
	}
	if err := r.ParseForm(); err != nil {
		log.Error("unable to parse configure form", "error", err)
		http.Error(w, msgConfigureFailed, http.StatusInternalServerError)
		return
	}
	sid, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	req := registry.Request{
		DiscoveryURL:         strings.TrimSpace(r.PostFormValue("discoveryUrl")),
		ClientID:             strings.TrimSpace(r.PostFormValue("clientId")),
		ClientSecret:         oidc.ClientSecret(r.PostFormValue("clientSecret")),
		RedirectURI:          strings.TrimSpace(r.PostFormValue("redirectUri")),
		IdentityProviderHint: strings.TrimSpace(r.PostFormValue("identityProviderHint")),
	}
	// a blank secret means the default unless the form asks for a public client
	if req.ClientSecret == "" && r.PostFormValue("publicClient") == "" {
		req.ClientSecret = oidc.ClientSecret(s.defaults.ClientSecret)
	}
	if req.RedirectURI == "" {
		req.RedirectURI = s.defaultRedirectURI(r)
	}
	snap, err := s.engine.Configure(r.Context(), sid, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	log.Info("client configured", "issuer", snap.Provider.Issuer(), "redirect_uri", snap.RedirectURI)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	sid, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	authURL, err := s.engine.Login(r.Context(), sid, flow.WithUILocales(uiLocales(r)...))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	sid, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	err := s.engine.Callback(r.Context(), sid, flow.CallbackParams{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sid, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	postLogout := s.postLogoutRedirectURI
	if postLogout == "" {
		postLogout = baseURL(r) + "/"
	}
	target, err := s.engine.Logout(r.Context(), sid, postLogout)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.cookies.Clear(w, r); err != nil {
		hclog.FromContext(r.Context()).Warn("unable to clear session cookie", "error", err)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// sessionID resolves the browser's session, writing a 500 when it can't.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	sid, err := s.cookies.ID(w, r)
	if err != nil {
		hclog.FromContext(r.Context()).Error("unable to resolve session", "error", err)
		http.Error(w, msgSessionFailed, http.StatusInternalServerError)
		return "", false
	}
	return sid, true
}

// fail logs err and writes the short plain-text message for its kind.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	msg := failureMessage(err)
	hclog.FromContext(r.Context()).Error(msg, "error", err)
	http.Error(w, msg, http.StatusInternalServerError)
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, flow.ErrConfiguration):
		return msgConfigureFailed
	case errors.Is(err, flow.ErrAuthorization):
		return msgNotConfigured
	case errors.Is(err, flow.ErrCallback):
		return msgLoginFailed
	case errors.Is(err, flow.ErrUserinfo):
		return msgUserinfoFailed
	case errors.Is(err, flow.ErrSession):
		return msgSessionFailed
	default:
		return msgInternal
	}
}

func (s *Server) defaultRedirectURI(r *http.Request) string {
	if s.redirectURI != "" {
		return s.redirectURI
	}
	return baseURL(r) + "/callback"
}

// baseURL is the scheme and host the browser used to reach us.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	return scheme + "://" + r.Host
}

// uiLocales returns the request's Accept-Language tags in preference order.
func uiLocales(r *http.Request) []language.Tag {
	h := r.Header.Get("Accept-Language")
	if h == "" {
		return nil
	}
	tags, _, err := language.ParseAcceptLanguage(h)
	if err != nil {
		return nil
	}
	if len(tags) > maxUILocales {
		tags = tags[:maxUILocales]
	}
	return tags
}
