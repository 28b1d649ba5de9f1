// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package mode selects the analysis operating configuration for a
// request: single-source deep dive or multi-source portfolio overview.
//
// The mode is a pure function of how many stores the caller pinned,
// decided once per request and immutable afterwards. Everything else in
// the package derives from the selected mode: allowed time range, data
// depth, data requirements, and token budget.
package mode

// Mode is the analysis scope envelope.
type Mode string

const (
	// SingleSource is the deep-dive configuration for exactly one
	// pinned store: long lookback, full per-record depth, daily time
	// series, segment and product breakdowns.
	SingleSource Mode = "single_source"

	// Portfolio is the overview configuration for multi-store
	// analysis: two-week lookback ceiling, summary depth only.
	Portfolio Mode = "portfolio"
)

// DataDepth is how much per-record detail a query may return.
type DataDepth string

const (
	// DepthFull returns individual records.
	DepthFull DataDepth = "full"

	// DepthSummary returns aggregates only.
	DepthSummary DataDepth = "summary"
)

// TokenBudget bounds model context consumption for one request.
type TokenBudget struct {
	MaxTotal  int `json:"max_total"`
	Prompt    int `json:"prompt"`
	Response  int `json:"response"`
	DataBlock int `json:"data_block"`
}

// Config carries the hard ceilings for a mode. The ceilings are hard:
// the derived time range is clamped to MaxDays no matter what the
// question text asks for.
type Config struct {
	Mode              Mode
	DefaultDays       int
	MaxDays           int
	ComparisonEnabled bool
	Depth             DataDepth
	TimeSeries        bool
	Segments          bool
	Products          bool
	MaxRecords        int
	Budget            TokenBudget
}

// modeConfigs holds the two operating configurations.
var modeConfigs = map[Mode]Config{
	SingleSource: {
		Mode:              SingleSource,
		DefaultDays:       90,
		MaxDays:           90,
		ComparisonEnabled: true,
		Depth:             DepthFull,
		TimeSeries:        true,
		Segments:          true,
		Products:          true,
		MaxRecords:        1000,
		Budget: TokenBudget{
			MaxTotal:  50000,
			Prompt:    8000,
			Response:  4000,
			DataBlock: 38000,
		},
	},
	Portfolio: {
		Mode:              Portfolio,
		DefaultDays:       14,
		MaxDays:           14,
		ComparisonEnabled: true,
		Depth:             DepthSummary,
		TimeSeries:        false,
		Segments:          false,
		Products:          false,
		MaxRecords:        100,
		Budget: TokenBudget{
			MaxTotal:  30000,
			Prompt:    5000,
			Response:  3000,
			DataBlock: 22000,
		},
	},
}

// Select returns the mode for the number of stores the caller pinned.
// Exactly one pinned store selects SingleSource; anything else,
// including zero, selects Portfolio.
func Select(pinnedStores int) Mode {
	if pinnedStores == 1 {
		return SingleSource
	}
	return Portfolio
}

// ConfigFor returns the configuration for a mode. Unknown modes fall
// back to Portfolio, the more conservative envelope.
func ConfigFor(m Mode) Config {
	if cfg, ok := modeConfigs[m]; ok {
		return cfg
	}
	return modeConfigs[Portfolio]
}
