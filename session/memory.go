// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	state     *State
	expiresAt time.Time
}

// MemoryStore is a process-local Store.  Sessions expire after being idle
// for the store's TTL.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore.
//
// Supported options:
//
//	WithTTL
//	WithNow
func NewMemoryStore(opt ...Option) *MemoryStore {
	opts := getStoreOpts(opt...)
	return &MemoryStore{
		entries: map[string]memoryEntry{},
		ttl:     opts.withTTL,
		now:     opts.withNow,
	}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, id string) (*State, error) {
	const op = "session.(MemoryStore).Get"
	if id == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return &State{}, nil
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, id)
		return &State{}, nil
	}
	return e.state.Clone(), nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, id string, s *State) error {
	const op = "session.(MemoryStore).Set"
	if id == "" {
		return fmt.Errorf("%s: %w", op, ErrInvalidID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()
	m.entries[id] = memoryEntry{state: s.Clone(), expiresAt: m.now().Add(m.ttl)}
	return nil
}

// Destroy implements Store.
func (m *MemoryStore) Destroy(_ context.Context, id string) error {
	const op = "session.(MemoryStore).Destroy"
	if id == "" {
		return fmt.Errorf("%s: %w", op, ErrInvalidID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()
	return len(m.entries)
}

func (m *MemoryStore) pruneLocked() {
	now := m.now()
	for id, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, id)
		}
	}
}
