// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when token validation fails. Concrete
// providers should wrap it so callers can branch on errors.Is.
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo is the identity attached to a request after successful
// token validation. UserID is always populated; Email and Roles depend
// on what the identity provider supplies.
//
// Roles drive two decisions downstream: the provider capability tier
// ("admin", "lead", and "executive" unlock restricted model backends)
// and destructive session operations ("admin" only).
type AuthInfo struct {
	// UserID uniquely identifies the caller. Never empty.
	UserID string

	// Email is the caller's address, when the provider supplies one.
	Email string

	// Roles the caller holds within the organization.
	// Known roles: "admin", "lead", "executive", "member".
	Roles []string
}

// HasRole reports whether the caller holds the given role.
func (a *AuthInfo) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthProvider validates bearer tokens and resolves caller identity.
//
// Implementations must be safe for concurrent use. A hosted deployment
// validates tokens against the organization's identity provider; the
// default NopAuthProvider accepts anything, which is what a local
// single-user install wants.
type AuthProvider interface {
	// Validate checks the token and returns the caller's identity.
	//
	// Inputs:
	//   - ctx: cancellation and timeout control
	//   - token: the bearer token from the Authorization header;
	//     may be empty
	//
	// Outputs:
	//   - *AuthInfo: the caller's identity when the token is valid
	//   - error: ErrUnauthorized (possibly wrapped) when it is not
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// NopAuthProvider accepts every token, including the empty one, and
// reports the caller as a local admin. It is the default for
// deployments with no identity infrastructure.
type NopAuthProvider struct{}

// Validate always succeeds with the local admin identity.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: "local-user",
		Roles:  []string{"admin"},
	}, nil
}

var _ AuthProvider = (*NopAuthProvider)(nil)
