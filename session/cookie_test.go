// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCookieKey = []byte("0123456789abcdef0123456789abcdef")

func TestNewCookies(t *testing.T) {
	t.Parallel()
	_, err := NewCookies([]byte("short"), false)
	assert.ErrorIs(t, err, ErrInvalidKey)

	c, err := NewCookies(testCookieKey, true)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestNewCookies_maxAge(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		opt  []Option
		want int
	}{
		{name: "default", want: int(DefaultTTL.Seconds())},
		{name: "with-ttl", opt: []Option{WithTTL(time.Hour)}, want: 3600},
		{name: "zero-ttl-ignored", opt: []Option{WithTTL(0)}, want: int(DefaultTTL.Seconds())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			c, err := NewCookies(testCookieKey, false, tt.opt...)
			require.NoError(err)

			w := httptest.NewRecorder()
			_, err = c.ID(w, httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(err)
			cookies := w.Result().Cookies()
			require.Len(cookies, 1)
			assert.Equal(tt.want, cookies[0].MaxAge)
		})
	}
}

func TestCookies_ID(t *testing.T) {
	t.Parallel()

	t.Run("issue-and-reuse", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := NewCookies(testCookieKey, false)
		require.NoError(err)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		id, err := c.ID(w, r)
		require.NoError(err)
		assert.True(strings.HasPrefix(id, "sess_"))

		cookies := w.Result().Cookies()
		require.Len(cookies, 1)
		assert.Equal(DefaultCookieName, cookies[0].Name)
		assert.True(cookies[0].HttpOnly)
		assert.False(cookies[0].Secure)
		assert.Equal(http.SameSiteLaxMode, cookies[0].SameSite)

		w2 := httptest.NewRecorder()
		r2 := httptest.NewRequest(http.MethodGet, "/", nil)
		r2.AddCookie(cookies[0])
		again, err := c.ID(w2, r2)
		require.NoError(err)
		assert.Equal(id, again)
		assert.Empty(w2.Result().Cookies())
	})
	t.Run("secure", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := NewCookies(testCookieKey, true)
		require.NoError(err)
		w := httptest.NewRecorder()
		_, err = c.ID(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(err)
		cookies := w.Result().Cookies()
		require.Len(cookies, 1)
		assert.True(cookies[0].Secure)
	})
	t.Run("tampered", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := NewCookies(testCookieKey, false)
		require.NoError(err)

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "forged"})
		w := httptest.NewRecorder()
		id, err := c.ID(w, r)
		require.NoError(err)
		assert.NotEmpty(id)
		assert.Len(w.Result().Cookies(), 1)
	})
	t.Run("other-key", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		a, err := NewCookies(testCookieKey, false)
		require.NoError(err)
		b, err := NewCookies([]byte("fedcba9876543210fedcba9876543210"), false)
		require.NoError(err)

		w := httptest.NewRecorder()
		id, err := a.ID(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(err)

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(w.Result().Cookies()[0])
		other, err := b.ID(httptest.NewRecorder(), r)
		require.NoError(err)
		assert.NotEqual(id, other)
	})
}

func TestCookies_Clear(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	c, err := NewCookies(testCookieKey, false)
	require.NoError(err)

	w := httptest.NewRecorder()
	_, err = c.ID(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(err)

	r := httptest.NewRequest(http.MethodGet, "/logout", nil)
	r.AddCookie(w.Result().Cookies()[0])
	w2 := httptest.NewRecorder()
	require.NoError(c.Clear(w2, r))
	cookies := w2.Result().Cookies()
	require.Len(cookies, 1)
	assert.Equal(DefaultCookieName, cookies[0].Name)
	assert.True(cookies[0].MaxAge < 0)
}
