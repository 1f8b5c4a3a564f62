// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package flow

import (
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/text/language"
)

// DefaultIdpHintParam is the auth request parameter carrying the identity
// provider hint.  Keycloak reads "kc_idp_hint"; other providers use
// "idp_hint".
const DefaultIdpHintParam = "kc_idp_hint"

// DefaultLoginTTL bounds how long a started login may wait for its callback.
const DefaultLoginTTL = 10 * time.Minute

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

type engineOptions struct {
	withLogger       hclog.Logger
	withIdpHintParam string
	withVerify       bool
	withLoginTTL     time.Duration
	withNow          func() time.Time
}

func engineDefaults() engineOptions {
	return engineOptions{
		withLogger:       hclog.NewNullLogger(),
		withIdpHintParam: DefaultIdpHintParam,
		withLoginTTL:     DefaultLoginTTL,
		withNow:          time.Now,
	}
}

func getEngineOpts(opt ...Option) engineOptions {
	opts := engineDefaults()
	applyOpts(&opts, opt...)
	return opts
}

type loginOptions struct {
	withUILocales []language.Tag
}

func getLoginOpts(opt ...Option) loginOptions {
	var opts loginOptions
	applyOpts(&opts, opt...)
	return opts
}

func applyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil {
			continue
		}
		o(opts)
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*engineOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithIdpHintParam overrides DefaultIdpHintParam.
func WithIdpHintParam(name string) Option {
	return func(o interface{}) {
		if o, ok := o.(*engineOptions); ok && name != "" {
			o.withIdpHintParam = name
		}
	}
}

// WithVerifyIdToken makes Callback verify the id_token before accepting it.
func WithVerifyIdToken(verify bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*engineOptions); ok {
			o.withVerify = verify
		}
	}
}

// WithLoginTTL overrides DefaultLoginTTL.
func WithLoginTTL(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*engineOptions); ok && d > 0 {
			o.withLoginTTL = d
		}
	}
}

// WithNow provides an optional clock.
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if o, ok := o.(*engineOptions); ok && now != nil {
			o.withNow = now
		}
	}
}

// WithUILocales provides the browser's preferred languages for a Login.
func WithUILocales(tags ...language.Tag) Option {
	return func(o interface{}) {
		if o, ok := o.(*loginOptions); ok {
			o.withUILocales = tags
		}
	}
}
