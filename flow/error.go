// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package flow

import (
	"errors"
	"strings"
)

// Error kinds.  Every error returned by an Engine operation matches exactly one
// of these with errors.Is.
var (
	// ErrConfiguration means discovery or client construction failed.
	ErrConfiguration = errors.New("configuration error")

	// ErrAuthorization means a login was attempted without a configured
	// client.
	ErrAuthorization = errors.New("authorization error")

	// ErrCallback means the provider returned an error, the callback was
	// malformed or the code exchange failed.
	ErrCallback = errors.New("callback error")

	// ErrUserinfo means the userinfo request failed.
	ErrUserinfo = errors.New("userinfo error")

	// ErrSession means the session store failed.
	ErrSession = errors.New("session error")
)

// Error is an Engine failure.  Kind is one of the error kinds above and Err is
// the underlying cause, if any.
type Error struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

func newError(kind error, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap supports errors.Is and errors.As for both the kind and the cause.
func (e *Error) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the kind of err, or nil if err isn't an Engine error.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}
