// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package mode

import (
	"regexp"
	"strconv"
	"strings"
)

// TimeRange is the lookback window derived from the question text,
// always clamped to the mode maximum.
type TimeRange struct {
	// Days is the lookback length actually used.
	Days int `json:"days"`

	// Requested is the lookback the question asked for, before
	// clamping. Equal to Days unless the mode ceiling cut it.
	Requested int `json:"requested"`

	// Capped reports that the mode ceiling reduced the request.
	Capped bool `json:"capped"`

	// ComparisonDays is the length of the preceding comparison
	// window, equal to Days when the mode enables comparison and the
	// question asks for one, zero otherwise.
	ComparisonDays int `json:"comparison_days,omitempty"`
}

var (
	lastNDays   = regexp.MustCompile(`(?i)\b(?:last|past)\s+(\d{1,3})\s+days?\b`)
	lastNWeeks  = regexp.MustCompile(`(?i)\b(?:last|past)\s+(\d{1,2})\s+weeks?\b`)
	lastWeek    = regexp.MustCompile(`(?i)\b(?:last|past)\s+week\b`)
	lastMonth   = regexp.MustCompile(`(?i)\b(?:last|past)\s+month\b`)
	lastQuarter = regexp.MustCompile(`(?i)\b(?:last|past)\s+quarter\b`)
	comparison  = regexp.MustCompile(`(?i)\b(?:compare|comparison|versus|vs\.?|previous period|prior period)\b`)
)

// ParseTimeRange derives the lookback window from the question under a
// mode configuration. Phrases recognized, first match wins:
//
//	"last/past N days"   -> N
//	"last/past N weeks"  -> 7*N
//	"last/past week"     -> 7
//	"last/past month"    -> 30
//	"last/past quarter"  -> 90
//
// No phrase yields the mode default. The result never exceeds the mode
// maximum; Capped records when the ceiling applied.
func ParseTimeRange(question string, cfg Config) TimeRange {
	requested := cfg.DefaultDays

	switch {
	case lastNDays.MatchString(question):
		requested = atoiMatch(lastNDays.FindStringSubmatch(question)[1])
	case lastNWeeks.MatchString(question):
		requested = 7 * atoiMatch(lastNWeeks.FindStringSubmatch(question)[1])
	case lastWeek.MatchString(question):
		requested = 7
	case lastMonth.MatchString(question):
		requested = 30
	case lastQuarter.MatchString(question):
		requested = 90
	}

	if requested < 1 {
		requested = cfg.DefaultDays
	}

	tr := TimeRange{Days: requested, Requested: requested}
	if requested > cfg.MaxDays {
		tr.Days = cfg.MaxDays
		tr.Capped = true
	}

	if cfg.ComparisonEnabled && wantsComparison(question) {
		// Comparison window is the preceding period of equal length.
		tr.ComparisonDays = tr.Days
	}
	return tr
}

func wantsComparison(question string) bool {
	return comparison.MatchString(question)
}

func atoiMatch(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
