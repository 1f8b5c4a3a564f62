// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"
)

const (
	// DefaultConfigureRate is the steady rate of /configure requests allowed,
	// per second.
	DefaultConfigureRate = 1

	// DefaultConfigureBurst is how many /configure requests may arrive at
	// once.
	DefaultConfigureBurst = 5
)

// FormDefaults prefill the configure form.
type FormDefaults struct {
	DiscoveryURL string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	IdpHint      string
}

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

type options struct {
	withLogger                hclog.Logger
	withFormDefaults          FormDefaults
	withRedirectURI           string
	withPostLogoutRedirectURI string
	withConfigureRate         rate.Limit
	withConfigureBurst        int
}

func getDefaults() options {
	return options{
		withLogger:         hclog.NewNullLogger(),
		withConfigureRate:  DefaultConfigureRate,
		withConfigureBurst: DefaultConfigureBurst,
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

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithFormDefaults provides values used to prefill the configure form.  A
// default client secret is never rendered; it's used when the form's secret is
// left empty.
func WithFormDefaults(d FormDefaults) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withFormDefaults = d
		}
	}
}

// WithRedirectURI overrides the redirect URI derived from the request when the
// form doesn't provide one.
func WithRedirectURI(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withRedirectURI = u
		}
	}
}

// WithPostLogoutRedirectURI overrides the post-logout redirect derived from
// the request.
func WithPostLogoutRedirectURI(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withPostLogoutRedirectURI = u
		}
	}
}

// WithConfigureRate overrides DefaultConfigureRate and DefaultConfigureBurst.
func WithConfigureRate(perSecond float64, burst int) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && perSecond > 0 && burst > 0 {
			o.withConfigureRate = rate.Limit(perSecond)
			o.withConfigureBurst = burst
		}
	}
}
