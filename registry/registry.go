// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package registry holds the process-wide OIDC client configuration.  There's
// a single slot: each successful Configure replaces it wholesale with an
// immutable Snapshot, and readers see either the old or the new snapshot,
// never a partial one.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/cap-oidc-demo/oidc"
	"github.com/hashicorp/go-hclog"
)

var (
	// ErrNotConfigured is returned when no client has been configured yet.
	ErrNotConfigured = errors.New("oidc client is not configured")

	// ErrSnapshotNotFound is returned by Lookup for a snapshot which was
	// replaced longer ago than the retention period.
	ErrSnapshotNotFound = errors.New("oidc client configuration not found")
)

const (
	// DefaultRetention is how long a replaced snapshot stays available to
	// logins that started with it.
	DefaultRetention = 10 * time.Minute
)

// DefaultScopes are requested in addition to "openid".
var DefaultScopes = []string{"email", "profile"}

// Request is an operator's configuration submission.
type Request struct {
	DiscoveryURL         string
	ClientID             string
	ClientSecret         oidc.ClientSecret
	RedirectURI          string
	IdentityProviderHint string
}

// Snapshot is one immutable, validated client configuration.
type Snapshot struct {
	// ID uniquely identifies the snapshot so sessions can tell when the
	// configuration they started with was replaced.
	ID string

	DiscoveryURL         string
	ClientID             string
	ClientSecret         oidc.ClientSecret
	RedirectURI          string
	IdentityProviderHint string
	ConfiguredAt         time.Time

	// Provider is the discovered issuer metadata plus the configured client.
	Provider *oidc.Provider
}

type retired struct {
	snapshot  *Snapshot
	expiresAt time.Time
}

// Registry is the single shared configuration slot.  It's safe for concurrent
// use.
type Registry struct {
	current atomic.Pointer[Snapshot]

	mu      sync.Mutex
	retired map[string]retired

	logger       hclog.Logger
	retention    time.Duration
	httpTimeout  time.Duration
	httpClient   *http.Client
	providerCA   string
	scopes       []string
	verifyIdAuds []string
	now          func() time.Time
}

// New creates an empty Registry.
//
// Supported options:
//
//	WithLogger
//	WithRetention
//	WithHTTPTimeout
//	WithHTTPClient
//	WithProviderCA
//	WithScopes
//	WithAudiences
//	WithNow
func New(opt ...Option) *Registry {
	opts := getOpts(opt...)
	return &Registry{
		retired:      map[string]retired{},
		logger:       opts.withLogger,
		retention:    opts.withRetention,
		httpTimeout:  opts.withHTTPTimeout,
		httpClient:   opts.withHTTPClient,
		providerCA:   opts.withProviderCA,
		scopes:       opts.withScopes,
		verifyIdAuds: opts.withAudiences,
		now:          opts.withNow,
	}
}

// Configure performs discovery against the request's discovery URL and, on
// success, atomically replaces the current snapshot.  On any failure the
// prior snapshot stays in place.  A failed discovery isn't retried.
func (r *Registry) Configure(ctx context.Context, req Request) (*Snapshot, error) {
	const op = "registry.(Registry).Configure"
	providerOpts := []oidc.Option{
		oidc.WithScopes(r.scopes...),
		oidc.WithHTTPTimeout(r.httpTimeout),
		oidc.WithNow(r.now),
	}
	if len(r.verifyIdAuds) > 0 {
		providerOpts = append(providerOpts, oidc.WithAudiences(r.verifyIdAuds...))
	}
	if r.providerCA != "" {
		providerOpts = append(providerOpts, oidc.WithProviderCA(r.providerCA))
	}
	if r.httpClient != nil {
		providerOpts = append(providerOpts, oidc.WithHTTPClient(r.httpClient))
	}
	c, err := oidc.NewConfig(req.DiscoveryURL, req.ClientID, req.ClientSecret, req.RedirectURI, providerOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p, err := oidc.NewProvider(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("%s: discovery failed: %w", op, err)
	}
	id, err := oidc.NewId("cfg")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s := &Snapshot{
		ID:                   id,
		DiscoveryURL:         req.DiscoveryURL,
		ClientID:             req.ClientID,
		ClientSecret:         req.ClientSecret,
		RedirectURI:          req.RedirectURI,
		IdentityProviderHint: req.IdentityProviderHint,
		ConfiguredAt:         r.now(),
		Provider:             p,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prior := r.current.Swap(s); prior != nil && r.retention > 0 {
		r.retired[prior.ID] = retired{snapshot: prior, expiresAt: r.now().Add(r.retention)}
	}
	r.pruneLocked()
	r.logger.Info("oidc client configured", "issuer", p.Issuer(), "client_id", req.ClientID, "config_id", id)
	return s, nil
}

// Current returns the current snapshot or ErrNotConfigured.
func (r *Registry) Current() (*Snapshot, error) {
	if s := r.current.Load(); s != nil {
		return s, nil
	}
	return nil, ErrNotConfigured
}

// Lookup returns the snapshot with the given id if it's current or was
// replaced within the retention period.
func (r *Registry) Lookup(id string) (*Snapshot, error) {
	const op = "registry.(Registry).Lookup"
	s := r.current.Load()
	if s == nil {
		return nil, ErrNotConfigured
	}
	if s.ID == id {
		return s, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()
	if old, ok := r.retired[id]; ok {
		return old.snapshot, nil
	}
	return nil, fmt.Errorf("%s: %s: %w", op, id, ErrSnapshotNotFound)
}

func (r *Registry) pruneLocked() {
	now := r.now()
	for id, old := range r.retired {
		if now.After(old.expiresAt) {
			delete(r.retired, id)
		}
	}
}
