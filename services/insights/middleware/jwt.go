// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wizelai/insights/pkg/extensions"
)

// =============================================================================
// JWT Auth Provider
// =============================================================================

// platformClaims are the registered claims plus the platform's custom
// fields carried in tokens issued by the identity service.
type platformClaims struct {
	jwt.RegisteredClaims
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
	Admin bool     `json:"admin,omitempty"`
}

// JWTAuthProvider validates HS256 bearer tokens issued by the platform
// identity service. The subject claim becomes the principal's
// SubjectID, which the access resolver uses for seat lookup.
//
// # Thread Safety
//
// Safe for concurrent use; the provider is immutable after construction.
type JWTAuthProvider struct {
	secret []byte
	issuer string
}

// NewJWTAuthProvider creates a provider for the given signing secret.
// issuer is optional; when set, tokens from any other issuer are
// rejected.
func NewJWTAuthProvider(secret []byte, issuer string) (*JWTAuthProvider, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("jwt auth provider requires a signing secret")
	}
	return &JWTAuthProvider{secret: secret, issuer: issuer}, nil
}

// Validate parses and verifies a bearer token.
//
// Returns extensions.ErrUnauthorized for every token defect (missing,
// malformed, bad signature, expired, wrong issuer) so callers cannot
// distinguish why a token was rejected.
func (p *JWTAuthProvider) Validate(_ context.Context, token string) (*extensions.AuthInfo, error) {
	if token == "" {
		return nil, extensions.ErrUnauthorized
	}

	var claims platformClaims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, extensions.ErrUnauthorized
	}
	if claims.Subject == "" {
		return nil, extensions.ErrUnauthorized
	}

	return &extensions.AuthInfo{
		SubjectID: claims.Subject,
		Email:     claims.Email,
		Roles:     claims.Roles,
		Admin:     claims.Admin,
	}, nil
}

var _ extensions.AuthProvider = (*JWTAuthProvider)(nil)
