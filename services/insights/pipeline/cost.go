// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"strings"
	"sync"

	"github.com/wizelai/insights/services/insights/datatypes"
)

// Model tiers for cost attribution.
const (
	TierFast     = "fast"
	TierCapable  = "capable"
	TierFallback = "fallback"
)

// modelPrice is USD per one million tokens.
type modelPrice struct {
	Input  float64
	Output float64
}

// pricing maps a model-name fragment to its price. Lookup matches by
// substring so vendor prefixes and minor version suffixes don't break
// attribution.
var pricing = map[string]modelPrice{
	"sonnet": {Input: 3.00, Output: 15.00},
	"haiku":  {Input: 0.25, Output: 1.25},
	"gemini": {Input: 1.25, Output: 5.00},
}

// defaultPrice is used for unrecognized models: the most expensive
// known tier, so unknown spend is never underreported.
var defaultPrice = modelPrice{Input: 3.00, Output: 15.00}

// CostEntry is one model invocation in the ledger.
type CostEntry struct {
	Model        string  `json:"model"`
	Tier         string  `json:"tier"`
	Operation    string  `json:"operation"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// CostTracker is the append-only spend ledger for one request. Every
// model invocation lands here, including failed attempts, so partial
// pipelines still report what they spent.
//
// # Thread Safety
//
// Safe for concurrent use; the analysis stage may stream while the
// tracker records.
type CostTracker struct {
	mu      sync.Mutex
	entries []CostEntry
}

// NewCostTracker creates an empty ledger.
func NewCostTracker() *CostTracker {
	return &CostTracker{}
}

// Track appends one invocation, computing its dollar cost from the
// pricing table, and returns the completed entry.
func (t *CostTracker) Track(model, tier, operation string, inputTokens, outputTokens int) CostEntry {
	price := priceFor(model)
	entry := CostEntry{
		Model:        model,
		Tier:         tier,
		Operation:    operation,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD: float64(inputTokens)/1e6*price.Input +
			float64(outputTokens)/1e6*price.Output,
	}

	t.mu.Lock()
	t.entries = append(t.entries, entry)
	t.mu.Unlock()
	return entry
}

// Entries returns a copy of the ledger in append order.
func (t *CostTracker) Entries() []CostEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]CostEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Summary aggregates the ledger for response metadata.
func (t *CostTracker) Summary() *datatypes.CostSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	summary := &datatypes.CostSummary{
		ByModel: make(map[string]float64),
		ByTier:  make(map[string]float64),
		Entries: len(t.entries),
	}
	for _, e := range t.entries {
		summary.TotalUSD += e.CostUSD
		summary.InputTokens += e.InputTokens
		summary.OutputTokens += e.OutputTokens
		summary.ByModel[e.Model] += e.CostUSD
		summary.ByTier[e.Tier] += e.CostUSD
	}
	return summary
}

func priceFor(model string) modelPrice {
	lower := strings.ToLower(model)
	for fragment, price := range pricing {
		if strings.Contains(lower, fragment) {
			return price
		}
	}
	return defaultPrice
}
