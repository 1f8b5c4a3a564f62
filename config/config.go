// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package config loads the demo's process configuration.  Values come from
// built-in defaults, then an optional YAML file, then OIDC_* environment
// variables, each layer overriding the one before.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// FileEnvVar names the environment variable holding the YAML file path.
const FileEnvVar = "OIDC_CONFIG_FILE"

// minSessionKeyLength matches the cookie signer's minimum.
const minSessionKeyLength = 32

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the demo's process configuration.
type Config struct {
	// Configure form defaults.
	DiscoveryURL string `env:"OIDC_DISCOVERY_URL" yaml:"discovery_url"`
	ClientID     string `env:"OIDC_CLIENT_ID" yaml:"client_id"`
	ClientSecret string `env:"OIDC_CLIENT_SECRET" yaml:"client_secret"`
	IdpHint      string `env:"OIDC_IDP_HINT" yaml:"idp_hint"`

	RedirectURI           string `env:"OIDC_REDIRECT_URI" yaml:"redirect_uri"`
	PostLogoutRedirectURI string `env:"OIDC_POST_LOGOUT_REDIRECT_URI" yaml:"post_logout_redirect_uri"`
	IdpHintParam          string `env:"OIDC_IDP_HINT_PARAM" yaml:"idp_hint_param"`
	ProviderCAFile        string `env:"OIDC_PROVIDER_CA_FILE" yaml:"provider_ca_file"`

	Addr          string        `env:"OIDC_ADDR" yaml:"addr"`
	SessionKey    string        `env:"OIDC_SESSION_KEY" yaml:"session_key"`
	SecureCookies bool          `env:"OIDC_SECURE_COOKIES" yaml:"secure_cookies"`
	SessionTTL    time.Duration `env:"OIDC_SESSION_TTL" yaml:"session_ttl"`
	LoginTTL      time.Duration `env:"OIDC_LOGIN_TTL" yaml:"login_ttl"`
	RedisAddr     string        `env:"OIDC_REDIS_ADDR" yaml:"redis_addr"`

	HTTPTimeout    time.Duration `env:"OIDC_HTTP_TIMEOUT" yaml:"http_timeout"`
	VerifyIdToken  bool          `env:"OIDC_VERIFY_ID_TOKEN" yaml:"verify_id_token"`
	ConfigureRate  float64       `env:"OIDC_CONFIGURE_RATE" yaml:"configure_rate"`
	ConfigureBurst int           `env:"OIDC_CONFIGURE_BURST" yaml:"configure_burst"`

	LogLevel string `env:"OIDC_LOG_LEVEL" yaml:"log_level"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		IdpHintParam:   "kc_idp_hint",
		Addr:           "localhost:3000",
		SessionTTL:     24 * time.Hour,
		LoginTTL:       10 * time.Minute,
		HTTPTimeout:    10 * time.Second,
		ConfigureRate:  1,
		ConfigureBurst: 5,
		LogLevel:       "info",
	}
}

// Load builds a Config from the defaults, the YAML file (WithFile, else
// OIDC_CONFIG_FILE) and the environment, then validates it.
//
// Supported options:
//
//	WithFile
//	WithEnvironment
func Load(opt ...Option) (*Config, error) {
	const op = "config.Load"
	opts := getOpts(opt...)
	environ := opts.withEnvironment
	if environ == nil {
		environ = env.ToMap(os.Environ())
	}

	c := Default()
	path := opts.withFile
	if path == "" {
		path = environ[FileEnvVar]
	}
	if path != "" {
		if err := c.loadFile(path); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if err := env.ParseWithOptions(c, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("%s: parse env: %w", op, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

func (c *Config) loadFile(path string) error {
	const op = "config.(Config).loadFile"
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	// an empty file leaves the defaults alone
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: unable to parse %s: %w", op, path, err)
	}
	return nil
}

// Validate reports every problem with c at once.
func (c *Config) Validate() error {
	const op = "config.(Config).Validate"
	var result *multierror.Error
	invalid := func(format string, args ...interface{}) {
		result = multierror.Append(result, fmt.Errorf("%s: %s: %w", op, fmt.Sprintf(format, args...), ErrInvalidConfig))
	}

	if c.Addr == "" {
		invalid("listen address is empty")
	}
	if c.IdpHintParam == "" {
		invalid("idp hint parameter name is empty")
	}
	if c.SessionKey != "" && len(c.SessionKey) < minSessionKeyLength {
		invalid("session key must be at least %d bytes", minSessionKeyLength)
	}
	if c.SessionTTL <= 0 {
		invalid("session ttl must be positive")
	}
	if c.LoginTTL <= 0 {
		invalid("login ttl must be positive")
	}
	if c.HTTPTimeout <= 0 {
		invalid("http timeout must be positive")
	}
	if c.ConfigureRate <= 0 {
		invalid("configure rate must be positive")
	}
	if c.ConfigureBurst <= 0 {
		invalid("configure burst must be positive")
	}
	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		invalid("unknown log level %q", c.LogLevel)
	}
	for name, u := range map[string]string{
		"discovery url":            c.DiscoveryURL,
		"redirect uri":             c.RedirectURI,
		"post logout redirect uri": c.PostLogoutRedirectURI,
	} {
		if u == "" {
			continue
		}
		if parsed, err := url.Parse(u); err != nil || parsed.Scheme == "" || parsed.Host == "" {
			invalid("%s %q is not an absolute url", name, u)
		}
	}
	return result.ErrorOrNil()
}

// Level is the configured hclog level.
func (c *Config) Level() hclog.Level {
	return hclog.LevelFromString(c.LogLevel)
}

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

type options struct {
	withFile        string
	withEnvironment map[string]string
}

func getOpts(opt ...Option) options {
	var opts options
	for _, o := range opt {
		if o == nil {
			continue
		}
		o(&opts)
	}
	return opts
}

// WithFile provides the YAML file to load, taking precedence over
// OIDC_CONFIG_FILE.
func WithFile(path string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withFile = path
		}
	}
}

// WithEnvironment replaces the process environment.
func WithEnvironment(environ map[string]string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withEnvironment = environ
		}
	}
}
