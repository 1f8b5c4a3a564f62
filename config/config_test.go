// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWriteFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "oidc-demo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := Load(WithEnvironment(map[string]string{}))
		require.NoError(err)
		assert.Equal(Default(), c)
		assert.Equal("localhost:3000", c.Addr)
		assert.Equal(10*time.Second, c.HTTPTimeout)
		assert.Equal(hclog.Info, c.Level())
	})
	t.Run("env", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := Load(WithEnvironment(map[string]string{
			"OIDC_DISCOVERY_URL":   "https://idp.test/.well-known/openid-configuration",
			"OIDC_CLIENT_ID":       "demo",
			"OIDC_CLIENT_SECRET":   "shh",
			"OIDC_IDP_HINT":        "github",
			"OIDC_IDP_HINT_PARAM":  "idp_hint",
			"OIDC_ADDR":            ":8080",
			"OIDC_SECURE_COOKIES":  "true",
			"OIDC_REDIS_ADDR":      "localhost:6379",
			"OIDC_HTTP_TIMEOUT":    "3s",
			"OIDC_VERIFY_ID_TOKEN": "true",
			"OIDC_CONFIGURE_RATE":  "0.5",
			"OIDC_CONFIGURE_BURST": "2",
			"OIDC_LOG_LEVEL":       "debug",
		}))
		require.NoError(err)
		assert.Equal("https://idp.test/.well-known/openid-configuration", c.DiscoveryURL)
		assert.Equal("demo", c.ClientID)
		assert.Equal("shh", c.ClientSecret)
		assert.Equal("github", c.IdpHint)
		assert.Equal("idp_hint", c.IdpHintParam)
		assert.Equal(":8080", c.Addr)
		assert.True(c.SecureCookies)
		assert.Equal("localhost:6379", c.RedisAddr)
		assert.Equal(3*time.Second, c.HTTPTimeout)
		assert.True(c.VerifyIdToken)
		assert.Equal(0.5, c.ConfigureRate)
		assert.Equal(2, c.ConfigureBurst)
		assert.Equal(hclog.Debug, c.Level())
		// untouched values keep their defaults
		assert.Equal(24*time.Hour, c.SessionTTL)
	})
	t.Run("file", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		path := testWriteFile(t, strings.Join([]string{
			"discovery_url: https://idp.test",
			"client_id: from-file",
			"addr: 0.0.0.0:3000",
			"http_timeout: 5s",
			"login_ttl: 2m",
			"log_level: warn",
		}, "\n"))
		c, err := Load(WithFile(path), WithEnvironment(map[string]string{
			"OIDC_CLIENT_ID": "from-env",
		}))
		require.NoError(err)
		assert.Equal("https://idp.test", c.DiscoveryURL)
		assert.Equal("from-env", c.ClientID)
		assert.Equal("0.0.0.0:3000", c.Addr)
		assert.Equal(5*time.Second, c.HTTPTimeout)
		assert.Equal(2*time.Minute, c.LoginTTL)
		assert.Equal(hclog.Warn, c.Level())
	})
	t.Run("file-from-env", func(t *testing.T) {
		path := testWriteFile(t, "client_id: from-file\n")
		c, err := Load(WithEnvironment(map[string]string{FileEnvVar: path}))
		require.NoError(t, err)
		assert.Equal(t, "from-file", c.ClientID)
	})
	t.Run("empty-file", func(t *testing.T) {
		c, err := Load(WithFile(testWriteFile(t, "")), WithEnvironment(map[string]string{}))
		require.NoError(t, err)
		assert.Equal(t, Default(), c)
	})
	t.Run("missing-file", func(t *testing.T) {
		_, err := Load(WithFile(filepath.Join(t.TempDir(), "nope.yaml")), WithEnvironment(map[string]string{}))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
	t.Run("unknown-field", func(t *testing.T) {
		_, err := Load(WithFile(testWriteFile(t, "client_idd: typo\n")), WithEnvironment(map[string]string{}))
		assert.Error(t, err)
	})
	t.Run("bad-env-value", func(t *testing.T) {
		_, err := Load(WithEnvironment(map[string]string{"OIDC_HTTP_TIMEOUT": "soon"}))
		assert.Error(t, err)
	})
	t.Run("invalid", func(t *testing.T) {
		_, err := Load(WithEnvironment(map[string]string{"OIDC_LOG_LEVEL": "chatty"}))
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr int
	}{
		{name: "defaults", modify: func(*Config) {}},
		{
			name: "long-session-key",
			modify: func(c *Config) {
				c.SessionKey = strings.Repeat("k", 32)
			},
		},
		{
			name: "short-session-key",
			modify: func(c *Config) {
				c.SessionKey = "short"
			},
			wantErr: 1,
		},
		{
			name: "relative-redirect",
			modify: func(c *Config) {
				c.RedirectURI = "/callback"
			},
			wantErr: 1,
		},
		{
			name: "everything-wrong",
			modify: func(c *Config) {
				c.Addr = ""
				c.IdpHintParam = ""
				c.SessionTTL = 0
				c.LoginTTL = -time.Second
				c.HTTPTimeout = 0
				c.ConfigureRate = 0
				c.ConfigureBurst = 0
				c.LogLevel = "loud"
				c.DiscoveryURL = "idp.test"
				c.PostLogoutRedirectURI = "not a url"
			},
			wantErr: 10,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			c := Default()
			tt.modify(c)
			err := c.Validate()
			if tt.wantErr == 0 {
				require.NoError(err)
				return
			}
			require.Error(err)
			assert.ErrorIs(err, ErrInvalidConfig)
			var merr *multierror.Error
			require.True(errors.As(err, &merr))
			assert.Len(merr.Errors, tt.wantErr)
		})
	}
}
