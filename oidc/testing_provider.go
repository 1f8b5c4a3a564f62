// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"crypto/ecdsa"
	"encoding/json"
	"encoding/pem"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

// TestProvider is a local https server that implements the provider side of
// the authorization code flow: discovery, /authorize, /token, /userinfo,
// /certs and /logout.  It makes writing tests much easier.
//
// The provider can advertise an issuer that differs from its listening
// address (see WithTestIssuer); clients must then use HTTPClient(), which
// routes every request to the test server.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string
	issuer     string

	signingKey *ecdsa.PrivateKey
	jwks       *jose.JSONWebKeySet

	mu                  sync.Mutex
	clientID            string
	clientSecret        string
	allowedRedirectURIs []string
	expectedAuthCode    string
	replySubject        string
	customClaims        map[string]interface{}
	replyUserinfo       map[string]interface{}
	omitIDToken         bool
	opaqueAccessToken   bool
	disableUserInfo     bool
	failUserInfo        bool
	disableEndSession   bool
	tokenRequests       int
}

// TestProviderKeyID is the "kid" of the test provider's signing key.
const TestProviderKeyID = "test-provider-key"

// StartTestProvider creates a disposable TestProvider which is stopped by
// t.Cleanup.
//
// Supported options:
//
//	WithTestIssuer
func StartTestProvider(t *testing.T, opt ...Option) *TestProvider {
	t.Helper()
	require := require.New(t)
	opts := getTestProviderOpts(opt...)

	p := &TestProvider{
		replySubject: "alice@clients",
		replyUserinfo: map[string]interface{}{
			"email":  "alice@example.com",
			"name":   "Alice Doe",
			"flavor": "umami",
		},
		expectedAuthCode: "valid-code",
	}
	p.signingKey = TestGenerateKey(t)
	p.jwks = &jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{
				Key:       p.signingKey.Public(),
				KeyID:     TestProviderKeyID,
				Algorithm: string(jose.ES256),
				Use:       "sig",
			},
		},
	}

	p.httpServer = httptest.NewUnstartedServer(p)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	p.issuer = p.httpServer.URL
	if opts.withIssuer != "" {
		p.issuer = strings.TrimSuffix(opts.withIssuer, "/")
	}

	cert := p.httpServer.Certificate()
	p.caCert = string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}))
	require.NotEmpty(p.caCert)
	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the current base URL for the test provider's running webserver.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// Issuer returns the issuer advertised by the discovery document.
func (p *TestProvider) Issuer() string { return p.issuer }

// DiscoveryURL returns the URL of the discovery document under the
// advertised issuer.
func (p *TestProvider) DiscoveryURL() string { return p.issuer + DiscoverySuffix }

// CACert returns the pem-encoded CA certificate used by the test provider's
// HTTPS server.
func (p *TestProvider) CACert() string { return p.caCert }

// HTTPClient returns a client which trusts the test provider's certificate and
// sends every request to the test provider, whatever the request's host.
func (p *TestProvider) HTTPClient() *http.Client {
	target, _ := url.Parse(p.httpServer.URL)
	return &http.Client{
		Transport: &rewriteTransport{
			target: target,
			base:   p.httpServer.Client().Transport,
		},
	}
}

type rewriteTransport struct {
	target *url.URL
	base   http.RoundTripper
}

func (rt *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.URL.Scheme = rt.target.Scheme
	r.URL.Host = rt.target.Host
	r.Host = rt.target.Host
	return rt.base.RoundTrip(r)
}

// SetClientCreds is for configuring the client information required for the
// OIDC workflows.  An empty secret accepts public clients.
func (p *TestProvider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.clientSecret = clientSecret
}

// SetExpectedAuthCode configures the auth code to return from /authorize and
// the allowed auth code for /token.  Defaults to "valid-code".
func (p *TestProvider) SetExpectedAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthCode = code
}

// SetAllowedRedirectURIs allows you to configure the allowed redirect URIs for
// the token endpoint.  When none are configured every redirect URI is allowed.
func (p *TestProvider) SetAllowedRedirectURIs(uris ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowedRedirectURIs = uris
}

// SetSubject configures the "sub" of issued tokens and user info.
func (p *TestProvider) SetSubject(sub string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replySubject = sub
}

// SetCustomClaims lets you set claims to return in the JWTs issued by the OIDC
// workflow.
func (p *TestProvider) SetCustomClaims(customClaims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customClaims = customClaims
}

// SetUserInfoReply configures the user info claims (the "sub" is always
// added).
func (p *TestProvider) SetUserInfoReply(claims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replyUserinfo = claims
}

// OmitIDTokens forces an error state where the /token endpoint does not return
// id_token.
func (p *TestProvider) OmitIDTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// UseOpaqueAccessTokens makes /token issue access tokens that aren't JWTs.
func (p *TestProvider) UseOpaqueAccessTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opaqueAccessToken = true
}

// DisableUserInfo makes the userinfo endpoint return 404 and omits it from the
// discovery config.
func (p *TestProvider) DisableUserInfo() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disableUserInfo = true
}

// FailUserInfo makes the advertised userinfo endpoint return 500.
func (p *TestProvider) FailUserInfo() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failUserInfo = true
}

// DisableEndSession omits the end_session_endpoint from the discovery config.
func (p *TestProvider) DisableEndSession() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disableEndSession = true
}

// TokenRequests returns how many requests the /token endpoint has received.
func (p *TestProvider) TokenRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenRequests
}

// SignedToken returns a JWT signed by the test provider with the standard
// claims for the configured client plus the custom claims.
func (p *TestProvider) SignedToken(t *testing.T, expireIn time.Duration) string {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	raw, err := p.signToken(expireIn)
	require.NoError(t, err)
	return raw
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) error {
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

func (p *TestProvider) writeAuthErrorResponse(w http.ResponseWriter, req *http.Request, errorCode, errorMessage string) {
	qv := req.URL.Query()

	redirectURI := qv.Get("redirect_uri") +
		"?state=" + url.QueryEscape(qv.Get("state")) +
		"&error=" + url.QueryEscape(errorCode)

	if errorMessage != "" {
		redirectURI += "&error_description=" + url.QueryEscape(errorMessage)
	}

	http.Redirect(w, req, redirectURI, http.StatusFound)
}

func (p *TestProvider) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) error {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}
	w.WriteHeader(statusCode)
	return p.writeJSON(w, &body)
}

// clientAuthenticated checks client_secret_basic then client_secret_post
// credentials.
func (p *TestProvider) clientAuthenticated(req *http.Request) bool {
	if p.clientID == "" {
		return true
	}
	id, secret, ok := req.BasicAuth()
	if ok {
		id, _ = url.QueryUnescape(id)
		secret, _ = url.QueryUnescape(secret)
	} else {
		id, secret = req.FormValue("client_id"), req.FormValue("client_secret")
	}
	if id != p.clientID {
		return false
	}
	return p.clientSecret == "" || secret == p.clientSecret
}

func (p *TestProvider) redirectAllowed(uri string) bool {
	if len(p.allowedRedirectURIs) == 0 {
		return uri != ""
	}
	for _, u := range p.allowedRedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

func (p *TestProvider) signToken(expireIn time.Duration) (string, error) {
	stdClaims := jwt.Claims{
		Subject:   p.replySubject,
		Issuer:    p.issuer,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		NotBefore: jwt.NewNumericDate(time.Now().Add(-5 * time.Second)),
		Expiry:    jwt.NewNumericDate(time.Now().Add(expireIn)),
		Audience:  jwt.Audience{p.clientID},
	}
	return signJWT(p.signingKey, TestProviderKeyID, stdClaims, p.customClaims)
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch req.URL.Path {
	case DiscoverySuffix:
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		reply := struct {
			Issuer             string   `json:"issuer"`
			AuthEndpoint       string   `json:"authorization_endpoint"`
			TokenEndpoint      string   `json:"token_endpoint"`
			JWKSURI            string   `json:"jwks_uri"`
			UserinfoEndpoint   string   `json:"userinfo_endpoint,omitempty"`
			EndSessionEndpoint string   `json:"end_session_endpoint,omitempty"`
			ResponseTypes      []string `json:"response_types_supported"`
			SubjectTypes       []string `json:"subject_types_supported"`
			SigningAlgs        []string `json:"id_token_signing_alg_values_supported"`
		}{
			Issuer:             p.issuer,
			AuthEndpoint:       p.issuer + "/authorize",
			TokenEndpoint:      p.issuer + "/token",
			JWKSURI:            p.issuer + "/certs",
			UserinfoEndpoint:   p.issuer + "/userinfo",
			EndSessionEndpoint: p.issuer + "/logout",
			ResponseTypes:      []string{"code"},
			SubjectTypes:       []string{"public"},
			SigningAlgs:        []string{string(jose.ES256)},
		}
		if p.disableUserInfo {
			reply.UserinfoEndpoint = ""
		}
		if p.disableEndSession {
			reply.EndSessionEndpoint = ""
		}
		_ = p.writeJSON(w, &reply)

	case "/authorize":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		qv := req.URL.Query()
		redirectURI := qv.Get("redirect_uri")
		if redirectURI == "" {
			http.Error(w, "missing redirect_uri parameter", http.StatusBadRequest)
			return
		}
		if qv.Get("response_type") != "code" {
			p.writeAuthErrorResponse(w, req, "unsupported_response_type", "")
			return
		}
		if !strings.Contains(" "+qv.Get("scope")+" ", " openid ") {
			p.writeAuthErrorResponse(w, req, "invalid_scope", "")
			return
		}
		if p.clientID != "" && qv.Get("client_id") != p.clientID {
			p.writeAuthErrorResponse(w, req, "unauthorized_client", "")
			return
		}
		if p.expectedAuthCode == "" {
			p.writeAuthErrorResponse(w, req, "access_denied", "")
			return
		}
		redirectURI += "?state=" + url.QueryEscape(qv.Get("state")) +
			"&code=" + url.QueryEscape(p.expectedAuthCode)
		http.Redirect(w, req, redirectURI, http.StatusFound)

	case "/certs":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_ = p.writeJSON(w, p.jwks)

	case "/token":
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.tokenRequests++
		switch {
		case req.FormValue("grant_type") != "authorization_code":
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "bad grant_type")
			return
		case !p.clientAuthenticated(req):
			_ = p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_client", "bad client credentials")
			return
		case !p.redirectAllowed(req.FormValue("redirect_uri")):
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not allowed")
			return
		case p.expectedAuthCode == "" || req.FormValue("code") != p.expectedAuthCode:
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "unexpected auth code")
			return
		}

		jwtData, err := p.signToken(time.Hour)
		if err != nil {
			_ = p.writeTokenErrorResponse(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		reply := struct {
			AccessToken  string `json:"access_token"`
			IDToken      string `json:"id_token,omitempty"`
			RefreshToken string `json:"refresh_token"`
			TokenType    string `json:"token_type"`
			ExpiresIn    int    `json:"expires_in"`
		}{
			AccessToken:  jwtData,
			IDToken:      jwtData,
			RefreshToken: "refresh-" + p.expectedAuthCode,
			TokenType:    "Bearer",
			ExpiresIn:    3600,
		}
		if p.opaqueAccessToken {
			reply.AccessToken = "opaque-access-token"
		}
		if p.omitIDToken {
			reply.IDToken = ""
		}
		_ = p.writeJSON(w, &reply)

	case "/userinfo":
		if p.disableUserInfo {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if p.failUserInfo {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !strings.HasPrefix(req.Header.Get("Authorization"), "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		reply := map[string]interface{}{}
		for k, v := range p.replyUserinfo {
			reply[k] = v
		}
		reply["sub"] = p.replySubject
		_ = p.writeJSON(w, reply)

	case "/logout":
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// testProviderOptions is the set of available options for StartTestProvider
type testProviderOptions struct {
	withIssuer string
}

func testProviderDefaults() testProviderOptions {
	return testProviderOptions{}
}

func getTestProviderOpts(opt ...Option) testProviderOptions {
	opts := testProviderDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithTestIssuer makes the test provider advertise the issuer rather than its
// own address.
func WithTestIssuer(issuer string) Option {
	return func(o interface{}) {
		if o, ok := o.(*testProviderOptions); ok {
			o.withIssuer = issuer
		}
	}
}
