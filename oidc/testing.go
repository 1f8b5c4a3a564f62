// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

// TestGenerateKey will generate a test ECDSA P-256 private key
func TestGenerateKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return privateKey
}

// TestSignJWT will bundle the provided claims into a test signed JWT. The
// provided key must be ECDSA P-256.
func TestSignJWT(t *testing.T, key *ecdsa.PrivateKey, keyID string, claims jwt.Claims, privateClaims map[string]interface{}) string {
	t.Helper()
	raw, err := signJWT(key, keyID, claims, privateClaims)
	require.NoError(t, err)
	return raw
}

func signJWT(key *ecdsa.PrivateKey, keyID string, claims jwt.Claims, privateClaims map[string]interface{}) (string, error) {
	const op = "oidc.signJWT"
	signerOpts := (&jose.SignerOptions{}).WithType("JWT")
	if keyID != "" {
		signerOpts = signerOpts.WithHeader("kid", keyID)
	}
	sig, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.ES256, Key: key},
		signerOpts,
	)
	if err != nil {
		return "", fmt.Errorf("%s: unable to create signer: %w", op, err)
	}
	raw, err := jwt.Signed(sig).
		Claims(claims).
		Claims(privateClaims).
		CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("%s: unable to sign claims: %w", op, err)
	}
	return raw, nil
}
