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
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// defaultTimeout bounds a single directory lookup.
const defaultTimeout = 10 * time.Second

// Client is the HTTP implementation of Directory against the platform
// directory API.
//
// # Description
//
// Client wraps the directory REST endpoints:
//
//	GET {base}/v1/seats?subject_id=...
//	GET {base}/v1/contracts/{id}/stores
//	GET {base}/v1/stores?integrated=true
//
// Responses are JSON arrays of Seat / Store. Authentication is a static
// service token sent as a Bearer header.
//
// # Thread Safety
//
// Client is safe for concurrent use; it holds no mutable state and
// http.Client is itself concurrency-safe.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

// NewClient creates a directory client.
//
// Parameters:
//   - baseURL: directory API root, e.g. "http://directory:8086"
//   - serviceKey: bearer token for service-to-service auth
func NewClient(baseURL, serviceKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// SeatsForPrincipal returns every seat held by the subject.
func (c *Client) SeatsForPrincipal(ctx context.Context, subjectID string) ([]Seat, error) {
	endpoint := fmt.Sprintf("%s/v1/seats?subject_id=%s", c.baseURL, url.QueryEscape(subjectID))
	var seats []Seat
	if err := c.getJSON(ctx, endpoint, &seats); err != nil {
		return nil, fmt.Errorf("seats for %s: %w", subjectID, err)
	}
	return seats, nil
}

// StoresByContract returns every store under the contract.
func (c *Client) StoresByContract(ctx context.Context, contractID string) ([]Store, error) {
	endpoint := fmt.Sprintf("%s/v1/contracts/%s/stores", c.baseURL, url.PathEscape(contractID))
	var stores []Store
	if err := c.getJSON(ctx, endpoint, &stores); err != nil {
		return nil, fmt.Errorf("stores for contract %s: %w", contractID, err)
	}
	return stores, nil
}

// IntegratedStores returns every store with an analytics integration.
func (c *Client) IntegratedStores(ctx context.Context) ([]Store, error) {
	endpoint := c.baseURL + "/v1/stores?integrated=true"
	var stores []Store
	if err := c.getJSON(ctx, endpoint, &stores); err != nil {
		return nil, fmt.Errorf("integrated stores: %w", err)
	}
	return stores, nil
}

// getJSON performs an authenticated GET and decodes the JSON body.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.serviceKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("directory request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("directory returned %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Compile-time interface compliance check.
var _ Directory = (*Client)(nil)
