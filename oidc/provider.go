// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/text/language"
)

// Provider provides integration with a provider using the typical
// 3-legged OIDC authorization code flow.
type Provider struct {
	config   *Config
	provider *oidc.Provider
	client   *http.Client

	// endSessionURL is the provider's optional end_session_endpoint
	endSessionURL string
}

// discoveryClaims are the discovery document fields go-oidc doesn't expose.
type discoveryClaims struct {
	EndSessionURL string `json:"end_session_endpoint"`
}

// NewProvider creates and initializes a Provider.  Intializing the provider
// includes making an http request to the provider's issuer for discovery,
// bounded by both ctx and the config's HTTPTimeout.
func NewProvider(ctx context.Context, c *Config) (*Provider, error) {
	const op = "NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: provider config is invalid: %w", op, err)
	}

	client, err := c.HttpClient()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	p := &Provider{
		config: c,
		client: client,
	}

	discoveryCtx, discoveryCancel := p.timeoutCtx(ctx)
	defer discoveryCancel()
	provider, err := oidc.NewProvider(HttpClientContext(discoveryCtx, client), c.Issuer) // makes http req to issuer for discovery
	if err != nil {
		// unreachable issuer, bad document or an issuer mismatch
		return nil, fmt.Errorf("%s: unable to create provider: %w", op, err)
	}
	p.provider = provider

	var claims discoveryClaims
	if err := provider.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s: unable to read discovery document: %w", op, err)
	}
	p.endSessionURL = claims.EndSessionURL

	return p, nil
}

// Issuer returns the issuer the provider was discovered from.
func (p *Provider) Issuer() string { return p.config.Issuer }

// ClientId returns the relying party's client id.
func (p *Provider) ClientId() string { return p.config.ClientId }

// SupportsEndSession reports whether the provider advertised an
// end_session_endpoint.
func (p *Provider) SupportsEndSession() bool { return p.endSessionURL != "" }

// timeoutCtx derives a context bounded by the configured HTTPTimeout.
func (p *Provider) timeoutCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.config.HTTPTimeout > 0 {
		return context.WithTimeout(ctx, p.config.HTTPTimeout)
	}
	return context.WithCancel(ctx)
}

func (p *Provider) oauth2Config(redirectURL string, scopes []string) *oauth2.Config {
	if redirectURL == "" {
		redirectURL = p.config.RedirectUrl
	}
	return &oauth2.Config{
		ClientID:     p.config.ClientId,
		ClientSecret: string(p.config.ClientSecret),
		RedirectURL:  redirectURL,
		Endpoint:     p.provider.Endpoint(),
		Scopes:       scopes,
	}
}

// scopes returns the requested scopes with "openid" first and no duplicates.
func scopes(requested []string) []string {
	out := []string{oidc.ScopeOpenID}
	seen := map[string]bool{oidc.ScopeOpenID: true}
	for _, s := range requested {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// AuthURL will generate a URL the caller can use to kick off an OIDC
// authorization code flow with the provider.  The state is an opaque value
// the provider returns to the callback; redirectURL overrides the config's
// RedirectUrl when not empty.
//
// Supported options:
//
//	WithScopes
//	WithAuthParam
//	WithUILocales
func (p *Provider) AuthURL(ctx context.Context, state, redirectURL string, opt ...Option) (string, error) {
	const op = "Provider.AuthURL"
	if state == "" {
		return "", fmt.Errorf("%s: state is empty: %w", op, ErrInvalidParameter)
	}
	opts := getAuthURLOpts(opt...)
	requested := p.config.Scopes
	if opts.withScopes != nil {
		requested = opts.withScopes
	}

	var authCodeOpts []oauth2.AuthCodeOption
	for _, kv := range opts.withParams {
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam(kv[0], kv[1]))
	}
	if len(opts.withUILocales) > 0 {
		locales := make([]string, 0, len(opts.withUILocales))
		for _, l := range opts.withUILocales {
			locales = append(locales, l.String())
		}
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam("ui_locales", strings.Join(locales, " ")))
	}

	authURL := p.oauth2Config(redirectURL, scopes(requested)).AuthCodeURL(state, authCodeOpts...)
	u, err := url.Parse(authURL)
	if err != nil {
		return "", fmt.Errorf("%s: unable to parse auth URL: %w", op, err)
	}
	// spaces go out as %20 rather than the form encoding's "+"
	u.RawQuery = strings.ReplaceAll(u.RawQuery, "+", "%20")
	return u.String(), nil
}

// Exchange will request a token from the oidc token endpoint, using the
// authorizationCode received in an earlier successful oidc authentication
// response.  The redirectURL must equal the one used to build the AuthURL.
//
// The id_token is required but it is not verified here; see VerifyIdToken.
func (p *Provider) Exchange(ctx context.Context, authorizationCode, redirectURL string) (*Token, error) {
	const op = "Provider.Exchange"
	if authorizationCode == "" {
		return nil, fmt.Errorf("%s: authorization code is empty: %w", op, ErrInvalidParameter)
	}
	ctx, cancel := p.timeoutCtx(ctx)
	defer cancel()
	oidcCtx := HttpClientContext(ctx, p.client)

	oauth2Token, err := p.oauth2Config(redirectURL, scopes(p.config.Scopes)).Exchange(oidcCtx, authorizationCode)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to exchange auth code with provider: %w", op, err)
	}

	idToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok || idToken == "" {
		return nil, fmt.Errorf("%s: id_token is missing from auth code exchange: %w", op, ErrMissingIdToken)
	}
	t, err := NewToken(IdToken(idToken), oauth2Token)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create new token: %w", op, err)
	}
	return t, nil
}

// UserInfo gets the UserInfo claims from the provider using the access token.
func (p *Provider) UserInfo(ctx context.Context, accessToken AccessToken) (map[string]interface{}, error) {
	const op = "Provider.UserInfo"
	if accessToken == "" {
		return nil, fmt.Errorf("%s: access token is empty: %w", op, ErrInvalidParameter)
	}
	ctx, cancel := p.timeoutCtx(ctx)
	defer cancel()
	oidcCtx := HttpClientContext(ctx, p.client)

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: string(accessToken)})
	userinfo, err := p.provider.UserInfo(oidcCtx, tokenSource)
	if err != nil {
		return nil, fmt.Errorf("%s: provider UserInfo request failed: %w: %s", op, ErrUserInfoFailed, err)
	}
	claims := map[string]interface{}{}
	if err := userinfo.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s: failed to get UserInfo claims: %w: %s", op, ErrUserInfoFailed, err)
	}
	return claims, nil
}

// EndSessionURL builds an RP-initiated logout URL for the provider's
// end_session_endpoint.  The idTokenHint and postLogoutRedirectURL are
// optional.  ErrEndSessionNotSupported is returned when the provider didn't
// advertise an end_session_endpoint.
func (p *Provider) EndSessionURL(idTokenHint IdToken, postLogoutRedirectURL string) (string, error) {
	const op = "Provider.EndSessionURL"
	if p.endSessionURL == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEndSessionNotSupported)
	}
	u, err := url.Parse(p.endSessionURL)
	if err != nil {
		return "", fmt.Errorf("%s: end_session_endpoint %q is invalid: %w", op, p.endSessionURL, err)
	}
	q := u.Query()
	if idTokenHint != "" {
		q.Set("id_token_hint", string(idTokenHint))
	}
	if postLogoutRedirectURL != "" {
		q.Set("post_logout_redirect_uri", postLogoutRedirectURL)
	}
	q.Set("client_id", p.config.ClientId)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// VerifyIdToken will verify the inbound IdToken.  It verifies it's been signed
// by the provider, and checks the issuer, expiry and audiences (the client id
// plus any configured Audiences).
//
// See: https://openid.net/specs/openid-connect-core-1_0.html#IDTokenValidation
func (p *Provider) VerifyIdToken(ctx context.Context, t IdToken) error {
	const op = "Provider.VerifyIdToken"
	if t == "" {
		return fmt.Errorf("%s: id_token is empty: %w", op, ErrInvalidParameter)
	}
	oidcConfig := &oidc.Config{
		ClientID:          p.config.ClientId,
		SkipClientIDCheck: len(p.config.Audiences) > 0,
		Now:               p.config.Now,
	}
	verifier := p.provider.Verifier(oidcConfig)

	ctx, cancel := p.timeoutCtx(ctx)
	defer cancel()
	oidcIdToken, err := verifier.Verify(HttpClientContext(ctx, p.client), string(t))
	if err != nil {
		return fmt.Errorf("%s: %w: %s", op, ErrIdTokenVerificationFailed, err)
	}
	if len(p.config.Audiences) > 0 {
		for _, v := range p.config.Audiences {
			for _, aud := range oidcIdToken.Audience {
				if aud == v {
					return nil
				}
			}
		}
		return fmt.Errorf("%s: invalid id_token audiences: %w", op, ErrInvalidAudience)
	}
	return nil
}

// authURLOptions is the set of available options for AuthURL
type authURLOptions struct {
	withScopes    []string
	withParams    [][2]string
	withUILocales []language.Tag
}

func authURLDefaults() authURLOptions {
	return authURLOptions{}
}

func getAuthURLOpts(opt ...Option) authURLOptions {
	opts := authURLDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithAuthParam provides an optional extra parameter for the auth request, for
// example an identity provider hint.  Empty keys or values are ignored.
func WithAuthParam(key, value string) Option {
	return func(o interface{}) {
		if key == "" || value == "" {
			return
		}
		if o, ok := o.(*authURLOptions); ok {
			o.withParams = append(o.withParams, [2]string{key, value})
		}
	}
}

// WithUILocales provides an optional list of preferred languages for the
// provider's login UI (the "ui_locales" parameter).
func WithUILocales(locales ...language.Tag) Option {
	return func(o interface{}) {
		if o, ok := o.(*authURLOptions); ok {
			o.withUILocales = locales
		}
	}
}
