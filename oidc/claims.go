// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// UnverifiedClaims decodes the claims of a compact JWT without verifying its
// signature.  It's for displaying tokens only and must never feed an
// authentication decision.  Opaque (non-JWT) tokens return ErrMalformedToken.
func UnverifiedClaims(raw string) (map[string]interface{}, error) {
	const op = "oidc.UnverifiedClaims"
	if raw == "" {
		return nil, fmt.Errorf("%s: token is empty: %w", op, ErrInvalidParameter)
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", op, ErrMalformedToken, err)
	}
	return claims, nil
}
