// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
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

// ErrUnauthorized is returned when authentication fails. Provider
// implementations should wrap this error with additional context.
//
// Example:
//
//	if !validToken {
//	    return nil, fmt.Errorf("invalid token format: %w", extensions.ErrUnauthorized)
//	}
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo contains identity information returned after successful
// authentication.
//
// Required fields (always populated):
//   - SubjectID: Unique identifier for the principal
//
// Optional fields (may be empty):
//   - Email: Principal's email address
//   - Roles: List of roles/groups the principal belongs to
//   - Admin: Platform-operator flag; admins bypass seat resolution and
//     see every integrated store
type AuthInfo struct {
	// SubjectID is the unique identifier for the authenticated principal.
	// This is the only required field and must never be empty.
	SubjectID string

	// Email is the principal's email address.
	// May be empty if not provided by the auth provider.
	Email string

	// Roles contains role memberships for authorization decisions.
	// Common roles: "admin", "analyst", "viewer"
	Roles []string

	// Admin marks a platform operator. Admin principals are granted
	// access to every store that has an analytics integration.
	Admin bool
}

// HasRole checks if the principal has a specific role.
//
//	if !authInfo.HasRole("analyst") {
//	    return ErrUnauthorized
//	}
func (a *AuthInfo) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthProvider validates authentication tokens and returns principal
// identity.
//
// Implementations must be safe for concurrent use by multiple goroutines.
//
// The default NopAuthProvider always returns a valid "local-user" with
// admin privileges, which lets local development run without any
// authentication infrastructure. Production deployments use the JWT
// provider in services/insights/middleware.
type AuthProvider interface {
	// Validate checks if the token is valid and returns the principal.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - token: The authentication token (JWT, session ID, API key, etc.)
	//
	// Returns:
	//   - *AuthInfo: Principal identity if valid
	//   - error: ErrUnauthorized (or wrapped) if invalid, other errors
	//     for infrastructure failures
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// NopAuthProvider is the default authentication provider for local use.
//
// It always returns a valid local user with admin privileges. Thread-safe:
// this implementation has no mutable state.
type NopAuthProvider struct{}

// Validate always returns a valid local user with admin privileges.
//
// The token parameter is ignored. This is intentional for local
// single-user deployments.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		SubjectID: "local-user",
		Roles:     []string{"admin"},
		Admin:     true,
	}, nil
}

// StaticAuthProvider validates tokens against a fixed token -> principal
// table. Intended for integration tests and single-tenant deployments
// where a full identity provider is overkill.
//
// Thread-safe: the table is never mutated after construction.
type StaticAuthProvider struct {
	tokens map[string]AuthInfo
}

// NewStaticAuthProvider builds a provider from a token -> principal map.
// The map is copied; later mutation of the argument has no effect.
func NewStaticAuthProvider(tokens map[string]AuthInfo) *StaticAuthProvider {
	copied := make(map[string]AuthInfo, len(tokens))
	for k, v := range tokens {
		copied[k] = v
	}
	return &StaticAuthProvider{tokens: copied}
}

// Validate looks the token up in the static table.
func (p *StaticAuthProvider) Validate(_ context.Context, token string) (*AuthInfo, error) {
	info, ok := p.tokens[token]
	if !ok {
		return nil, ErrUnauthorized
	}
	return &info, nil
}

// Compile-time interface compliance checks.
var (
	_ AuthProvider = (*NopAuthProvider)(nil)
	_ AuthProvider = (*StaticAuthProvider)(nil)
)
