// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"
)

// ClientSecret is an oauth client secret.
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// DiscoverySuffix is the well-known path of an OIDC discovery document.
const DiscoverySuffix = "/.well-known/openid-configuration"

// DefaultHTTPTimeout bounds every outbound request made on behalf of a
// Provider when no WithHTTPTimeout option is supplied.
const DefaultHTTPTimeout = 10 * time.Second

// Config represents the configuration for a typical 3-legged OIDC
// authorization code flow.
type Config struct {
	// ClientId is the relying party id
	ClientId string

	// ClientSecret is the relying party secret.  It may be empty for a public
	// client.
	ClientSecret ClientSecret

	// Scopes is a list of additional oidc scopes to request of the provider.
	// The required "openid" scope is always requested.
	Scopes []string

	// Issuer is a case-sensitive URL string using the https scheme that
	// contains scheme, host, and optionally, port number and path components
	// and no query or fragment components.
	Issuer string

	// RedirectUrl is the default redirect URL used when an auth request
	// doesn't carry its own.
	RedirectUrl string

	// Audiences is an optional list of case-sensitive strings used when
	// verifying an id_token's "aud" claim
	Audiences []string

	// ProviderCA is an optional CA cert to use when sending requests to the
	// provider.
	ProviderCA string

	// HTTPTimeout bounds each request made to the provider.
	HTTPTimeout time.Duration

	// NowFunc is an optional function that returns the current time
	NowFunc func() time.Time

	httpClient *http.Client
}

// NewConfig composes a new config for a provider.  The issuer may be either
// the issuer URL or its discovery document URL.
//
// Supported options:
//
//	WithScopes
//	WithAudiences
//	WithProviderCA
//	WithHTTPClient
//	WithHTTPTimeout
//	WithNow
func NewConfig(issuer string, clientId string, clientSecret ClientSecret, redirectUrl string, opt ...Option) (*Config, error) {
	const op = "oidc.NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		Issuer:       IssuerFromDiscoveryURL(issuer),
		ClientId:     clientId,
		ClientSecret: clientSecret,
		RedirectUrl:  redirectUrl,
		Scopes:       opts.withScopes,
		Audiences:    opts.withAudiences,
		ProviderCA:   opts.withProviderCA,
		HTTPTimeout:  opts.withHTTPTimeout,
		NowFunc:      opts.withNowFunc,
		httpClient:   opts.withHTTPClient,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid provider config: %w", op, err)
	}
	return c, nil
}

// IssuerFromDiscoveryURL strips the well-known discovery suffix (and any
// trailing slash) so operators can paste either form.
func IssuerFromDiscoveryURL(u string) string {
	u = strings.TrimSpace(u)
	u = strings.TrimSuffix(u, DiscoverySuffix)
	return strings.TrimSuffix(u, "/")
}

// Validate the provider configuration.  Among other validations, it verifies
// the issuer is not empty, but it doesn't verify the Issuer is discoverable via
// an http request.  An empty ClientSecret is valid.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if c.ClientId == "" {
		return fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter)
	}
	if c.Issuer == "" {
		return fmt.Errorf("%s: discovery URL is empty: %w", op, ErrInvalidParameter)
	}
	u, err := url.Parse(c.Issuer)
	if err != nil {
		return fmt.Errorf("%s: issuer %s is invalid (%s): %w", op, c.Issuer, err, ErrInvalidIssuer)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("%s: issuer %s schema is not http or https: %w", op, c.Issuer, ErrInvalidIssuer)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: issuer %s has no host: %w", op, c.Issuer, ErrInvalidIssuer)
	}
	if c.RedirectUrl == "" {
		return fmt.Errorf("%s: redirect URL is empty: %w", op, ErrInvalidParameter)
	}
	if _, err := url.Parse(c.RedirectUrl); err != nil {
		return fmt.Errorf("%s: redirect URL %s is invalid (%s): %w", op, c.RedirectUrl, err, ErrInvalidParameter)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("%s: http timeout is negative: %w", op, ErrInvalidParameter)
	}
	if c.ProviderCA != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(c.ProviderCA)); !ok {
			return fmt.Errorf("%s: %w", op, ErrInvalidCACert)
		}
	}
	return nil
}

// Now will return the current time which can be overridden by the NowFunc
func (c *Config) Now() time.Time {
	if c.NowFunc != nil {
		return c.NowFunc()
	}
	return time.Now() // fallback to this default
}

// HttpClient is a helper function that creates a new http client for the
// provider configured.  Unless one was supplied with WithHTTPClient, it's a
// pooled cleanhttp client which trusts the optional ProviderCA.
func (c *Config) HttpClient() (*http.Client, error) {
	const op = "Config.HttpClient"
	if c.httpClient != nil {
		return c.httpClient, nil
	}
	tr := cleanhttp.DefaultPooledTransport()
	if c.ProviderCA != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(c.ProviderCA)); !ok {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCACert)
		}
		tr.TLSClientConfig = &tls.Config{
			RootCAs:    certPool,
			MinVersion: tls.VersionTLS12,
		}
	}
	return &http.Client{
		Transport: tr,
	}, nil
}

// HttpClientContext is a helper function that returns a new Context that
// carries the provided HTTP client. This method sets the same context key used
// by the github.com/coreos/go-oidc and golang.org/x/oauth2 packages, so the
// returned context works for those packages as well.
func HttpClientContext(ctx context.Context, client *http.Client) context.Context {
	return oidc.ClientContext(ctx, client)
}

// configOptions is the set of available options
type configOptions struct {
	withScopes      []string
	withAudiences   []string
	withProviderCA  string
	withHTTPClient  *http.Client
	withHTTPTimeout time.Duration
	withNowFunc     func() time.Time
}

// configDefaults is a handy way to get the defaults at runtime and
// during unit tests.
func configDefaults() configOptions {
	return configOptions{
		withHTTPTimeout: DefaultHTTPTimeout,
	}
}

// getConfigOpts gets the defaults and applies the opt overrides passed
// in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithScopes provides an optional list of scopes for the provider's config.
// "openid" is always requested and doesn't need to be included.
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *configOptions:
			v.withScopes = scopes
		case *authURLOptions:
			v.withScopes = scopes
		}
	}
}

// WithAudiences provides an optional list of audiences for the provider's config
func WithAudiences(auds ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withAudiences = auds
		}
	}
}

// WithProviderCA provides an optional CA cert for the provider's config
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}

// WithHTTPClient provides an optional http client for every request made to
// the provider.  It takes precedence over WithProviderCA.
func WithHTTPClient(c *http.Client) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withHTTPClient = c
		}
	}
}

// WithHTTPTimeout provides an optional timeout for each request made to the
// provider.  Zero disables the timeout.
func WithHTTPTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withHTTPTimeout = d
		}
	}
}

// WithNow provides an optional func for determining what the current time it
// is.
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if now == nil {
			return
		}
		if o, ok := o.(*configOptions); ok {
			o.withNowFunc = now
		}
	}
}
