// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package access

import (
	"context"
	"errors"
	"testing"

	"github.com/wizelai/insights/pkg/extensions"
	"github.com/wizelai/insights/services/directory"
)

// fakeDirectory is an in-memory directory.Directory for tests.
type fakeDirectory struct {
	seats    map[string][]directory.Seat
	stores   map[string][]directory.Store
	seatErr  error
	storeErr error
}

func (f *fakeDirectory) SeatsForPrincipal(_ context.Context, subjectID string) ([]directory.Seat, error) {
	if f.seatErr != nil {
		return nil, f.seatErr
	}
	return f.seats[subjectID], nil
}

func (f *fakeDirectory) StoresByContract(_ context.Context, contractID string) ([]directory.Store, error) {
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	return f.stores[contractID], nil
}

func (f *fakeDirectory) IntegratedStores(_ context.Context) ([]directory.Store, error) {
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	var all []directory.Store
	for _, stores := range f.stores {
		for _, s := range stores {
			if s.Integrated() {
				all = append(all, s)
			}
		}
	}
	return all, nil
}

var _ directory.Directory = (*fakeDirectory)(nil)

func testDirectory() *fakeDirectory {
	return &fakeDirectory{
		seats: map[string][]directory.Seat{
			"analyst": {
				{SeatID: "seat-1", SubjectID: "analyst", ContractID: "c-1",
					Permissions: []string{directory.PermissionAnalytics}},
			},
			"scoped": {
				{SeatID: "seat-2", SubjectID: "scoped", ContractID: "c-1",
					Permissions: []string{directory.PermissionAnalytics},
					StoreIDs:    []string{"s-candles"}},
			},
			"no-perm": {
				{SeatID: "seat-3", SubjectID: "no-perm", ContractID: "c-1",
					Permissions: []string{"billing"}},
			},
			"two-seats": {
				{SeatID: "seat-4", SubjectID: "two-seats", ContractID: "c-1",
					Permissions: []string{directory.PermissionAnalytics},
					StoreIDs:    []string{"s-candles"}},
				{SeatID: "seat-5", SubjectID: "two-seats", ContractID: "c-2",
					Permissions: []string{directory.PermissionAnalytics}},
			},
		},
		stores: map[string][]directory.Store{
			"c-1": {
				{PublicID: "s-candles", Name: "Candle Co", ContractID: "c-1", AnalyticsID: "kl-candles"},
				{PublicID: "s-soap", Name: "Soap Works", ContractID: "c-1", AnalyticsID: "kl-soap"},
				{PublicID: "s-dark", Name: "No Integration", ContractID: "c-1"},
			},
			"c-2": {
				{PublicID: "s-tea", Name: "Tea House", ContractID: "c-2", AnalyticsID: "kl-tea"},
			},
		},
	}
}

// TestAccessibleStoresContractWideSeat verifies a seat with no store
// list covers every integrated store under its contract.
func TestAccessibleStoresContractWideSeat(t *testing.T) {
	t.Parallel()

	r := NewResolver(testDirectory(), nil)
	stores, err := r.AccessibleStores(context.Background(),
		&extensions.AuthInfo{SubjectID: "analyst"})
	if err != nil {
		t.Fatalf("AccessibleStores() error = %v", err)
	}
	if len(stores) != 2 {
		t.Fatalf("got %d stores, want 2 (non-integrated excluded): %+v", len(stores), stores)
	}
	for _, s := range stores {
		if !s.Integrated() {
			t.Errorf("non-integrated store leaked: %+v", s)
		}
	}
}

// TestAccessibleStoresScopedSeat verifies a seat with explicit store IDs
// covers only those stores.
func TestAccessibleStoresScopedSeat(t *testing.T) {
	t.Parallel()

	r := NewResolver(testDirectory(), nil)
	stores, err := r.AccessibleStores(context.Background(),
		&extensions.AuthInfo{SubjectID: "scoped"})
	if err != nil {
		t.Fatalf("AccessibleStores() error = %v", err)
	}
	if len(stores) != 1 || stores[0].PublicID != "s-candles" {
		t.Errorf("stores = %+v, want only s-candles", stores)
	}
}

// TestAccessibleStoresUnionAcrossSeats verifies multiple seats union
// their grants: a scoped seat plus a contract-wide seat on another
// contract.
func TestAccessibleStoresUnionAcrossSeats(t *testing.T) {
	t.Parallel()

	r := NewResolver(testDirectory(), nil)
	stores, err := r.AccessibleStores(context.Background(),
		&extensions.AuthInfo{SubjectID: "two-seats"})
	if err != nil {
		t.Fatalf("AccessibleStores() error = %v", err)
	}
	got := map[string]bool{}
	for _, s := range stores {
		got[s.PublicID] = true
	}
	if len(got) != 2 || !got["s-candles"] || !got["s-tea"] {
		t.Errorf("stores = %+v, want s-candles and s-tea", stores)
	}
}

// TestAccessibleStoresNoPermission verifies seats without the analytics
// permission contribute nothing. The empty result is not an error;
// callers turn it into the no-data-source failure.
func TestAccessibleStoresNoPermission(t *testing.T) {
	t.Parallel()

	r := NewResolver(testDirectory(), nil)
	stores, err := r.AccessibleStores(context.Background(),
		&extensions.AuthInfo{SubjectID: "no-perm"})
	if err != nil {
		t.Fatalf("AccessibleStores() error = %v", err)
	}
	if len(stores) != 0 {
		t.Errorf("stores = %+v, want empty", stores)
	}
}

// TestAccessibleStoresAdmin verifies the admin path returns every
// integrated store on the platform without consulting seats.
func TestAccessibleStoresAdmin(t *testing.T) {
	t.Parallel()

	r := NewResolver(testDirectory(), nil)
	stores, err := r.AccessibleStores(context.Background(),
		&extensions.AuthInfo{SubjectID: "ops", Admin: true})
	if err != nil {
		t.Fatalf("AccessibleStores() error = %v", err)
	}
	if len(stores) != 3 {
		t.Errorf("got %d stores, want 3", len(stores))
	}
}

// TestAccessibleStoresDirectoryError verifies directory failures
// propagate as errors rather than an empty (deny-all) result.
func TestAccessibleStoresDirectoryError(t *testing.T) {
	t.Parallel()

	dir := testDirectory()
	dir.seatErr = errors.New("directory down")
	r := NewResolver(dir, nil)
	if _, err := r.AccessibleStores(context.Background(),
		&extensions.AuthInfo{SubjectID: "analyst"}); err == nil {
		t.Fatal("expected error")
	}
}

// TestAuthorize verifies requested-store narrowing: empty request means
// everything, one bad ID fails the whole request and names every
// offender.
func TestAuthorize(t *testing.T) {
	t.Parallel()

	accessible := []directory.Store{
		{PublicID: "s-1", Name: "One", AnalyticsID: "kl-1"},
		{PublicID: "s-2", Name: "Two", AnalyticsID: "kl-2"},
	}

	target, unauthorized := Authorize(nil, accessible)
	if len(target) != 2 || unauthorized != nil {
		t.Errorf("empty request: target=%v unauthorized=%v", target, unauthorized)
	}

	target, unauthorized = Authorize([]string{"s-2"}, accessible)
	if len(target) != 1 || target[0].PublicID != "s-2" || unauthorized != nil {
		t.Errorf("single request: target=%v unauthorized=%v", target, unauthorized)
	}

	target, unauthorized = Authorize([]string{"s-2", "s-x", "s-y"}, accessible)
	if target != nil {
		t.Errorf("partial unauthorized request returned target %v", target)
	}
	if len(unauthorized) != 2 || unauthorized[0] != "s-x" || unauthorized[1] != "s-y" {
		t.Errorf("unauthorized = %v, want [s-x s-y]", unauthorized)
	}
}

// TestMapToAnalyticsIDs verifies dedup and that IDs are never invented
// for unintegrated stores.
func TestMapToAnalyticsIDs(t *testing.T) {
	t.Parallel()

	stores := []directory.Store{
		{PublicID: "s-1", Name: "One", AnalyticsID: "kl-1"},
		{PublicID: "s-1b", Name: "One Mirror", AnalyticsID: "kl-1"},
		{PublicID: "s-2", Name: "Two", AnalyticsID: "kl-2"},
		{PublicID: "s-3", Name: "Broken"},
	}
	m := MapToAnalyticsIDs(stores)
	if len(m.AnalyticsIDs) != 2 {
		t.Errorf("AnalyticsIDs = %v, want 2 after dedup", m.AnalyticsIDs)
	}
	if len(m.Errors) != 1 {
		t.Errorf("Errors = %v, want 1 for the unintegrated store", m.Errors)
	}
	if len(m.StoreNames) != 4 {
		t.Errorf("StoreNames = %v", m.StoreNames)
	}
	if _, ok := m.ByAnalyticsID["kl-1"]; !ok {
		t.Error("missing kl-1 in ByAnalyticsID")
	}
}
