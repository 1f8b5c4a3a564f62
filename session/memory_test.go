// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	testStoreContract(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestMemoryStore_ttl(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore(WithTTL(time.Minute), WithNow(func() time.Time { return now }))

	require.NoError(s.Set(ctx, "sess_1", testAuthenticatedState()))
	require.NoError(s.Set(ctx, "sess_2", testAuthenticatedState()))
	assert.Equal(2, s.Len())

	now = now.Add(30 * time.Second)
	got, err := s.Get(ctx, "sess_1")
	require.NoError(err)
	assert.NotNil(got.TokenSet)

	// a write refreshes the idle timer
	require.NoError(s.Set(ctx, "sess_2", got))

	now = now.Add(45 * time.Second)
	got, err = s.Get(ctx, "sess_1")
	require.NoError(err)
	assert.True(got.IsEmpty())
	got, err = s.Get(ctx, "sess_2")
	require.NoError(err)
	assert.NotNil(got.TokenSet)
	assert.Equal(1, s.Len())
}

func TestMemoryStore_concurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("sess_%d", i%2)
			_, err := Update(ctx, s, id, func(st *State) error {
				st.ClientConfigured = true
				return nil
			})
			assert.NoError(t, err)
			_ = s.Destroy(ctx, id)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, s.Len())
}
