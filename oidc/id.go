// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"

	"github.com/hashicorp/go-uuid"
)

// NewId generates an ID with an optional prefix.  The ID generated is suitable
// for an auth request state, a session id or a nonce.
func NewId(optionalPrefix string) (string, error) {
	const op = "oidc.NewId"
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate id: %w: %s", op, ErrIdGeneratorFailed, err)
	}
	switch {
	case optionalPrefix != "":
		return fmt.Sprintf("%s_%s", optionalPrefix, id), nil
	default:
		return id, nil
	}
}
