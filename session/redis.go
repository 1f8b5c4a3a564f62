// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces session keys in Redis.
const DefaultKeyPrefix = "oidc-demo:session:"

// RedisStore is a Store backed by Redis, so sessions survive restarts and can
// be shared between instances.  State is stored as JSON and the TTL is
// refreshed on every write.
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore using rdb.
//
// Supported options:
//
//	WithTTL
//	WithKeyPrefix
func NewRedisStore(rdb redis.Cmdable, opt ...Option) (*RedisStore, error) {
	const op = "session.NewRedisStore"
	if rdb == nil {
		return nil, fmt.Errorf("%s: redis client is nil", op)
	}
	opts := getStoreOpts(opt...)
	return &RedisStore{
		rdb:    rdb,
		prefix: opts.withKeyPrefix,
		ttl:    opts.withTTL,
	}, nil
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, id string) (*State, error) {
	const op = "session.(RedisStore).Get"
	if id == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidID)
	}
	b, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var s State
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("%s: unable to decode session: %w", op, err)
	}
	return &s, nil
}

// Set implements Store.
func (r *RedisStore) Set(ctx context.Context, id string, s *State) error {
	const op = "session.(RedisStore).Set"
	if id == "" {
		return fmt.Errorf("%s: %w", op, ErrInvalidID)
	}
	b, err := json.Marshal(s.Clone())
	if err != nil {
		return fmt.Errorf("%s: unable to encode session: %w", op, err)
	}
	if err := r.rdb.Set(ctx, r.key(id), b, r.ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Destroy implements Store.
func (r *RedisStore) Destroy(ctx context.Context, id string) error {
	const op = "session.(RedisStore).Destroy"
	if id == "" {
		return fmt.Errorf("%s: %w", op, ErrInvalidID)
	}
	if err := r.rdb.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
