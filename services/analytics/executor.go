// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package analytics executes validated read-only queries against the
// columnar analytics store over its HTTP interface.
package analytics

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Row is one result row, column name to value.
type Row map[string]any

// QueryResult is the outcome of one query.
type QueryResult struct {
	Rows     []Row
	RowCount int
	Elapsed  time.Duration
}

// Executor runs validated SQL. The pipeline depends on this interface;
// tests substitute fakes.
type Executor interface {
	// Query executes the statement and returns every row. The
	// statement must already have passed the SQL guard; Executor
	// performs no validation of its own.
	Query(ctx context.Context, sql string) (*QueryResult, error)
}

// Client is the HTTP implementation of Executor.
//
// # Description
//
// Client POSTs statements to the store's HTTP endpoint with
// FORMAT JSONEachRow appended, and decodes one JSON object per line.
// Credentials travel in the store's native auth headers.
//
// # Thread Safety
//
// Safe for concurrent use.
type Client struct {
	baseURL    string
	database   string
	user       string
	password   string
	httpClient *http.Client
}

// NewClient creates an executor client.
//
// Parameters:
//   - baseURL: store HTTP root, e.g. "http://clickhouse:8123"
//   - database: database to query
//   - user, password: store credentials
func NewClient(baseURL, database, user, password string) *Client {
	return &Client{
		baseURL:  baseURL,
		database: database,
		user:     user,
		password: password,
		// Slightly above the caller's per-query deadline so context
		// cancellation, not the transport, decides timeouts.
		httpClient: &http.Client{Timeout: 35 * time.Second},
	}
}

// Query executes the statement.
func (c *Client) Query(ctx context.Context, sql string) (*QueryResult, error) {
	start := time.Now()

	statement := strings.TrimRight(strings.TrimSpace(sql), ";")
	if !strings.Contains(strings.ToUpper(statement), "FORMAT JSONEACHROW") {
		statement += " FORMAT JSONEachRow"
	}

	endpoint := c.baseURL + "/?database=" + c.database
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(statement))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	if c.user != "" {
		req.Header.Set("X-ClickHouse-User", c.user)
		req.Header.Set("X-ClickHouse-Key", c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("store returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	result := &QueryResult{}
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var row Row
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return nil, fmt.Errorf("decode row %d: %w", result.RowCount+1, err)
		}
		result.Rows = append(result.Rows, row)
		result.RowCount++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	result.Elapsed = time.Since(start)
	return result, nil
}

// Compile-time interface compliance check.
var _ Executor = (*Client)(nil)
