// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"net/http"
	"time"

	"github.com/hashicorp/cap-oidc-demo/oidc"
	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// options is the set of available options for New
type options struct {
	withLogger      hclog.Logger
	withRetention   time.Duration
	withHTTPTimeout time.Duration
	withHTTPClient  *http.Client
	withProviderCA  string
	withScopes      []string
	withAudiences   []string
	withNow         func() time.Time
}

func getDefaults() options {
	return options{
		withLogger:      hclog.NewNullLogger(),
		withRetention:   DefaultRetention,
		withHTTPTimeout: oidc.DefaultHTTPTimeout,
		withScopes:      DefaultScopes,
		withNow:         time.Now,
	}
}

func getOpts(opt ...Option) options {
	opts := getDefaults()
	for _, o := range opt {
		if o == nil {
			continue
		}
		o(&opts)
	}
	return opts
}

// WithLogger provides an optional logger.  A nil logger is ignored.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithRetention provides how long a replaced snapshot remains available via
// Lookup.  Zero drops replaced snapshots immediately.
func WithRetention(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && d >= 0 {
			o.withRetention = d
		}
	}
}

// WithHTTPTimeout provides the bound on each outbound provider request.
func WithHTTPTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withHTTPTimeout = d
		}
	}
}

// WithHTTPClient provides an optional http client used for every provider
// request.
func WithHTTPClient(c *http.Client) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withHTTPClient = c
		}
	}
}

// WithProviderCA provides an optional PEM encoded CA cert trusted when talking
// to providers.
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withProviderCA = cert
		}
	}
}

// WithScopes overrides DefaultScopes.
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withScopes = scopes
		}
	}
}

// WithAudiences provides additional audiences accepted when id_tokens are
// verified.
func WithAudiences(auds ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withAudiences = auds
		}
	}
}

// WithNow provides an optional clock.
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && now != nil {
			o.withNow = now
		}
	}
}
