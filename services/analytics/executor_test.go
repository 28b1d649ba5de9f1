// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analytics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestQueryDecodesRows verifies the JSONEachRow decode path and that
// the format clause is appended exactly once.
func TestQueryDecodesRows(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		statement := string(body)
		if !strings.HasSuffix(statement, "FORMAT JSONEachRow") {
			t.Errorf("statement missing format clause: %q", statement)
		}
		if strings.Count(strings.ToUpper(statement), "JSONEACHROW") != 1 {
			t.Errorf("format clause duplicated: %q", statement)
		}
		if r.URL.Query().Get("database") != "analytics" {
			t.Errorf("database = %s", r.URL.Query().Get("database"))
		}
		if r.Header.Get("X-ClickHouse-User") != "reader" {
			t.Errorf("user header = %s", r.Header.Get("X-ClickHouse-User"))
		}
		fmt.Fprintln(w, `{"campaign_name":"Spring Sale","conversion_value":1250.5}`)
		fmt.Fprintln(w, `{"campaign_name":"Welcome","conversion_value":310}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "analytics", "reader", "secret")
	res, err := client.Query(context.Background(),
		"SELECT campaign_name, conversion_value FROM campaign_statistics WHERE klaviyo_public_id = 'kl-1' LIMIT 10;")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if res.RowCount != 2 || len(res.Rows) != 2 {
		t.Fatalf("RowCount = %d", res.RowCount)
	}
	if res.Rows[0]["campaign_name"] != "Spring Sale" {
		t.Errorf("row = %v", res.Rows[0])
	}
}

// TestQueryEmptyResult verifies zero rows is a success, not an error.
func TestQueryEmptyResult(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	defer server.Close()

	client := NewClient(server.URL, "analytics", "", "")
	res, err := client.Query(context.Background(), "SELECT 1")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if res.RowCount != 0 {
		t.Errorf("RowCount = %d, want 0", res.RowCount)
	}
}

// TestQueryStoreError verifies non-200 responses carry the store's
// message.
func TestQueryStoreError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Code: 47. Unknown identifier: bogus_column", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL, "analytics", "", "")
	_, err := client.Query(context.Background(), "SELECT bogus_column FROM t")
	if err == nil || !strings.Contains(err.Error(), "Unknown identifier") {
		t.Fatalf("err = %v, want store message", err)
	}
}

// TestQueryContextCancel verifies cancellation aborts the request.
func TestQueryContextCancel(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, "analytics", "", "")
	if _, err := client.Query(ctx, "SELECT 1"); err == nil {
		t.Fatal("expected context cancellation error")
	}
}
