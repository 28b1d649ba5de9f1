// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package access resolves which stores a principal may analyze and maps
// them to analytics identifiers.
//
// Resolution is deny-by-default: only stores reachable through a seat
// with the analytics permission (or the admin path) enter the
// accessible set, and only integrated stores survive to querying.
package access

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/wizelai/insights/pkg/extensions"
	"github.com/wizelai/insights/services/directory"
)

// Resolver computes accessible stores for a principal.
//
// # Thread Safety
//
// Resolver is safe for concurrent use; it holds no mutable state.
type Resolver struct {
	dir    directory.Directory
	logger *slog.Logger
}

// NewResolver creates a Resolver over a directory. A nil logger falls
// back to slog.Default().
func NewResolver(dir directory.Directory, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{dir: dir, logger: logger}
}

// AccessibleStores returns every integrated store the principal may
// analyze, deduplicated by public ID and sorted by name for stable
// output.
//
// Admin principals see every integrated store on the platform. Everyone
// else gets the union of their analytics-permitted seats: a seat with an
// empty store list covers its whole contract, a seat with explicit
// store IDs covers only those. Stores without an analytics integration
// are dropped silently; they cannot be queried.
//
// An empty result is not an error. Callers map it to the
// no-data-source failure, which is distinct from unauthorized.
func (r *Resolver) AccessibleStores(ctx context.Context, principal *extensions.AuthInfo) ([]directory.Store, error) {
	if principal.Admin {
		stores, err := r.dir.IntegratedStores(ctx)
		if err != nil {
			return nil, fmt.Errorf("admin store lookup: %w", err)
		}
		return sortStores(dedupeIntegrated(stores)), nil
	}

	seats, err := r.dir.SeatsForPrincipal(ctx, principal.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("seat lookup for %s: %w", principal.SubjectID, err)
	}

	byID := make(map[string]directory.Store)
	for _, seat := range seats {
		if !seat.HasPermission(directory.PermissionAnalytics) {
			continue
		}
		contractStores, err := r.dir.StoresByContract(ctx, seat.ContractID)
		if err != nil {
			return nil, fmt.Errorf("store lookup for contract %s: %w", seat.ContractID, err)
		}

		allowed := seatStoreFilter(seat)
		for _, store := range contractStores {
			if !store.Integrated() {
				continue
			}
			if allowed != nil && !allowed[store.PublicID] {
				continue
			}
			byID[store.PublicID] = store
		}
	}

	stores := make([]directory.Store, 0, len(byID))
	for _, s := range byID {
		stores = append(stores, s)
	}

	r.logger.Debug("resolved accessible stores",
		"subject", principal.SubjectID,
		"seats", len(seats),
		"stores", len(stores),
	)
	return sortStores(stores), nil
}

// Authorize narrows the accessible set to the requested store IDs.
//
// An empty request targets every accessible store. Any requested ID
// outside the accessible set fails the whole request; the returned
// unauthorized list names each offending ID, sorted, so callers can
// report all of them at once.
func Authorize(requested []string, accessible []directory.Store) (target []directory.Store, unauthorized []string) {
	if len(requested) == 0 {
		return accessible, nil
	}

	byID := make(map[string]directory.Store, len(accessible))
	for _, s := range accessible {
		byID[s.PublicID] = s
	}

	seen := make(map[string]bool, len(requested))
	for _, id := range requested {
		if seen[id] {
			continue
		}
		seen[id] = true
		if store, ok := byID[id]; ok {
			target = append(target, store)
		} else {
			unauthorized = append(unauthorized, id)
		}
	}
	sort.Strings(unauthorized)
	if len(unauthorized) > 0 {
		return nil, unauthorized
	}
	return target, nil
}

// seatStoreFilter returns the allowed-store set for a seat, or nil when
// the seat covers its whole contract.
func seatStoreFilter(seat directory.Seat) map[string]bool {
	if len(seat.StoreIDs) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(seat.StoreIDs))
	for _, id := range seat.StoreIDs {
		allowed[id] = true
	}
	return allowed
}

func dedupeIntegrated(stores []directory.Store) []directory.Store {
	byID := make(map[string]directory.Store, len(stores))
	for _, s := range stores {
		if s.Integrated() {
			byID[s.PublicID] = s
		}
	}
	out := make([]directory.Store, 0, len(byID))
	for _, s := range byID {
		out = append(out, s)
	}
	return out
}

func sortStores(stores []directory.Store) []directory.Store {
	sort.Slice(stores, func(i, j int) bool {
		if stores[i].Name == stores[j].Name {
			return stores[i].PublicID < stores[j].PublicID
		}
		return stores[i].Name < stores[j].Name
	})
	return stores
}
