// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package directory exposes the tenant directory: contracts, seats, and
// stores. The insights service resolves which stores a principal may
// analyze from this data.
package directory

import "context"

// PermissionAnalytics is the seat permission gating analytics access.
// Seats without it never contribute stores to the accessible set.
const PermissionAnalytics = "analytics"

// Seat grants a principal capabilities within one contract.
//
// An empty StoreIDs list means the seat covers every store under its
// contract, now and in the future.
type Seat struct {
	SeatID      string   `json:"seat_id"`
	SubjectID   string   `json:"subject_id"`
	ContractID  string   `json:"contract_id"`
	Permissions []string `json:"permissions"`
	StoreIDs    []string `json:"store_ids,omitempty"`
}

// HasPermission reports whether the seat carries the named permission.
func (s Seat) HasPermission(perm string) bool {
	for _, p := range s.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// Store is one tenant storefront.
//
// AnalyticsID is the identifier of the store's analytics integration in
// the columnar store. Empty means the store has no integration and can
// never be queried.
type Store struct {
	PublicID    string `json:"public_id"`
	Name        string `json:"name"`
	ContractID  string `json:"contract_id"`
	AnalyticsID string `json:"analytics_id,omitempty"`
}

// Integrated reports whether the store can be queried.
func (s Store) Integrated() bool {
	return s.AnalyticsID != ""
}

// Directory looks up seats and stores. Implementations must be safe for
// concurrent use.
//
// The production implementation is the HTTP Client in this package; the
// access package tests use an in-memory fake.
type Directory interface {
	// SeatsForPrincipal returns every seat held by the subject,
	// across all contracts. An unknown subject returns an empty
	// slice, not an error.
	SeatsForPrincipal(ctx context.Context, subjectID string) ([]Seat, error)

	// StoresByContract returns every store under the contract,
	// integrated or not.
	StoresByContract(ctx context.Context, contractID string) ([]Store, error)

	// IntegratedStores returns every store on the platform that has
	// an analytics integration. Used for the admin path only.
	IntegratedStores(ctx context.Context) ([]Store, error)
}
