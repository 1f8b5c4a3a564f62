// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuthenticatedState() *State {
	return &State{
		ClientConfigured:     true,
		ConfigID:             "cfg_1",
		RedirectURI:          "http://localhost:3000/callback",
		IdentityProviderHint: "github",
		TokenSet: &TokenSet{
			IdToken:      "id.token.value",
			AccessToken:  "access-token",
			RefreshToken: "refresh-token",
			Expiry:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

// testStoreContract exercises the behavior every Store must share.
func testStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("unknown-id-is-empty", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := newStore(t)
		got, err := s.Get(ctx, "sess_unknown")
		require.NoError(err)
		require.NotNil(got)
		assert.True(got.IsEmpty())
	})
	t.Run("set-get", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := newStore(t)
		want := testAuthenticatedState()
		want.Login = &LoginContext{
			State:       "st_1",
			ConfigID:    "cfg_1",
			RedirectURI: "http://localhost:3000/callback",
			CreatedAt:   time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		require.NoError(s.Set(ctx, "sess_1", want))
		got, err := s.Get(ctx, "sess_1")
		require.NoError(err)
		assert.Equal(want, got)
	})
	t.Run("copies", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := newStore(t)
		st := testAuthenticatedState()
		require.NoError(s.Set(ctx, "sess_1", st))
		st.TokenSet.AccessToken = "changed"

		got, err := s.Get(ctx, "sess_1")
		require.NoError(err)
		assert.Equal("access-token", got.TokenSet.AccessToken)
		got.TokenSet.AccessToken = "changed-again"

		again, err := s.Get(ctx, "sess_1")
		require.NoError(err)
		assert.Equal("access-token", again.TokenSet.AccessToken)
	})
	t.Run("destroy", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := newStore(t)
		require.NoError(s.Set(ctx, "sess_1", testAuthenticatedState()))
		require.NoError(s.Destroy(ctx, "sess_1"))
		got, err := s.Get(ctx, "sess_1")
		require.NoError(err)
		assert.Nil(got.TokenSet)
		assert.True(got.IsEmpty())

		require.NoError(s.Destroy(ctx, "sess_never_set"))
	})
	t.Run("invalid-id", func(t *testing.T) {
		assert := assert.New(t)
		s := newStore(t)
		_, err := s.Get(ctx, "")
		assert.ErrorIs(err, ErrInvalidID)
		assert.ErrorIs(s.Set(ctx, "", &State{}), ErrInvalidID)
		assert.ErrorIs(s.Destroy(ctx, ""), ErrInvalidID)
	})
	t.Run("update", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := newStore(t)
		got, err := Update(ctx, s, "sess_1", func(st *State) error {
			st.ClientConfigured = true
			st.RedirectURI = "http://localhost:3000/callback"
			return nil
		})
		require.NoError(err)
		assert.True(got.ClientConfigured)

		stored, err := s.Get(ctx, "sess_1")
		require.NoError(err)
		assert.Equal(got, stored)

		boom := errors.New("boom")
		_, err = Update(ctx, s, "sess_1", func(st *State) error {
			st.ClientConfigured = false
			return boom
		})
		assert.ErrorIs(err, boom)
		stored, err = s.Get(ctx, "sess_1")
		require.NoError(err)
		assert.True(stored.ClientConfigured)
	})
}

func TestState_Clone(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	var nilState *State
	assert.Equal(&State{}, nilState.Clone())

	orig := testAuthenticatedState()
	orig.Login = &LoginContext{State: "st_1"}
	c := orig.Clone()
	assert.Equal(orig, c)
	c.TokenSet.IdToken = "other"
	c.Login.State = "st_2"
	assert.Equal("id.token.value", orig.TokenSet.IdToken)
	assert.Equal("st_1", orig.Login.State)
}

func TestState_IsEmpty(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		state *State
		want  bool
	}{
		{name: "nil", state: nil, want: true},
		{name: "zero", state: &State{}, want: true},
		{name: "configured", state: &State{ClientConfigured: true}, want: false},
		{name: "login-only", state: &State{Login: &LoginContext{}}, want: false},
		{name: "tokens-only", state: &State{TokenSet: &TokenSet{}}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.IsEmpty())
		})
	}
}
