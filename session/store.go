// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package session provides the per-browser state of the relying-party flow:
// the State record, the Store contract with in-memory and Redis
// implementations, and a signed cookie that binds a browser to its session
// id.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = 24 * time.Hour

// ErrInvalidID is returned for an empty session id.
var ErrInvalidID = errors.New("invalid session id")

// Store persists session State by id.  Implementations must be safe for
// concurrent use and must never hand out state shared with another caller.
type Store interface {
	// Get returns the state for id.  An unknown or expired id yields an
	// empty State and no error.
	Get(ctx context.Context, id string) (*State, error)

	// Set replaces the state for id.
	Set(ctx context.Context, id string, s *State) error

	// Destroy removes id.  Destroying an unknown id isn't an error.
	Destroy(ctx context.Context, id string) error
}

// Update is a read-modify-write helper: it loads the state for id, applies fn
// and stores the result when fn succeeds.
func Update(ctx context.Context, store Store, id string, fn func(*State) error) (*State, error) {
	const op = "session.Update"
	s, err := store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	if err := store.Set(ctx, id, s); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

type storeOptions struct {
	withTTL       time.Duration
	withNow       func() time.Time
	withKeyPrefix string
}

func storeDefaults() storeOptions {
	return storeOptions{
		withTTL:       DefaultTTL,
		withNow:       time.Now,
		withKeyPrefix: DefaultKeyPrefix,
	}
}

func getStoreOpts(opt ...Option) storeOptions {
	opts := storeDefaults()
	for _, o := range opt {
		if o == nil {
			continue
		}
		o(&opts)
	}
	return opts
}

// WithTTL provides the idle lifetime of a session.
func WithTTL(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*storeOptions); ok && d > 0 {
			o.withTTL = d
		}
	}
}

// WithNow provides an optional clock for the MemoryStore.
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if o, ok := o.(*storeOptions); ok && now != nil {
			o.withNow = now
		}
	}
}

// WithKeyPrefix provides the Redis key prefix for the RedisStore.
func WithKeyPrefix(prefix string) Option {
	return func(o interface{}) {
		if o, ok := o.(*storeOptions); ok && prefix != "" {
			o.withKeyPrefix = prefix
		}
	}
}
