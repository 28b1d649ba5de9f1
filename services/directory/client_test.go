// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestClientSeatsForPrincipal verifies the request shape and response
// decoding for seat lookups.
func TestClientSeatsForPrincipal(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/seats" {
			t.Errorf("path = %s, want /v1/seats", r.URL.Path)
		}
		if got := r.URL.Query().Get("subject_id"); got != "user-1" {
			t.Errorf("subject_id = %s, want user-1", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer svc-key" {
			t.Errorf("Authorization = %s", got)
		}
		_ = json.NewEncoder(w).Encode([]Seat{
			{SeatID: "seat-1", SubjectID: "user-1", ContractID: "c-1",
				Permissions: []string{PermissionAnalytics}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "svc-key")
	seats, err := client.SeatsForPrincipal(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("SeatsForPrincipal() error = %v", err)
	}
	if len(seats) != 1 || seats[0].ContractID != "c-1" {
		t.Errorf("seats = %+v", seats)
	}
	if !seats[0].HasPermission(PermissionAnalytics) {
		t.Error("expected analytics permission")
	}
}

// TestClientStoresByContract verifies path construction and decoding.
func TestClientStoresByContract(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/contracts/c-9/stores" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]Store{
			{PublicID: "s-1", Name: "Acme", ContractID: "c-9", AnalyticsID: "kl-1"},
			{PublicID: "s-2", Name: "NoIntegration", ContractID: "c-9"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	stores, err := client.StoresByContract(context.Background(), "c-9")
	if err != nil {
		t.Fatalf("StoresByContract() error = %v", err)
	}
	if len(stores) != 2 {
		t.Fatalf("got %d stores, want 2", len(stores))
	}
	if !stores[0].Integrated() || stores[1].Integrated() {
		t.Errorf("integration flags wrong: %+v", stores)
	}
}

// TestClientErrorStatus verifies non-200 responses surface as errors
// with the status code.
func TestClientErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "directory down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	if _, err := client.IntegratedStores(context.Background()); err == nil {
		t.Fatal("expected error for 502 response")
	}
}
