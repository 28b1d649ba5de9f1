// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package access

import (
	"fmt"

	"github.com/wizelai/insights/services/directory"
)

// IDMapping is the result of translating platform stores to analytics
// identifiers for SQL filtering.
//
// AnalyticsIDs is deduplicated and preserves store order. StoreNames
// parallels the target set and feeds the analyst prompt and response
// metadata. Errors lists stores that could not be mapped; an ID is
// never invented for them.
type IDMapping struct {
	AnalyticsIDs  []string
	StoreNames    []string
	ByAnalyticsID map[string]directory.Store
	Errors        []string
}

// MapToAnalyticsIDs translates stores to their analytics integration
// IDs. Stores without an integration produce an entry in Errors rather
// than a fabricated ID; callers upstream normally filter these out, so
// a non-empty Errors list here indicates a directory inconsistency.
func MapToAnalyticsIDs(stores []directory.Store) IDMapping {
	mapping := IDMapping{
		ByAnalyticsID: make(map[string]directory.Store, len(stores)),
	}
	seen := make(map[string]bool, len(stores))
	for _, store := range stores {
		mapping.StoreNames = append(mapping.StoreNames, store.Name)
		if !store.Integrated() {
			mapping.Errors = append(mapping.Errors,
				fmt.Sprintf("store %s has no analytics integration", store.PublicID))
			continue
		}
		if seen[store.AnalyticsID] {
			continue
		}
		seen[store.AnalyticsID] = true
		mapping.AnalyticsIDs = append(mapping.AnalyticsIDs, store.AnalyticsID)
		mapping.ByAnalyticsID[store.AnalyticsID] = store
	}
	return mapping
}
