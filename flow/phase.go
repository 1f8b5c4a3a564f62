// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package flow

import "github.com/hashicorp/cap-oidc-demo/session"

// Phase is where a session is in the relying-party flow.
type Phase int

const (
	PhaseUnconfigured Phase = iota
	PhaseConfigured
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseUnconfigured:
		return "unconfigured"
	case PhaseConfigured:
		return "configured"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// PhaseOf derives the phase of s.  A token set wins over the configured flag.
func PhaseOf(s *session.State) Phase {
	switch {
	case s == nil:
		return PhaseUnconfigured
	case s.TokenSet != nil:
		return PhaseAuthenticated
	case s.ClientConfigured:
		return PhaseConfigured
	default:
		return PhaseUnconfigured
	}
}
