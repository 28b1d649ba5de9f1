// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sqlguard statically validates model-generated SQL before it
// can touch the analytics store.
//
// Validation is fail-closed: read-only single SELECT statements against
// allowlisted tables, with a provable tenant filter naming every
// analytics ID the request resolved to. Anything the guard cannot prove
// is rejected, and rejected SQL is never executed.
package sqlguard

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// AbsoluteMaxRows is the hard LIMIT ceiling regardless of mode.
const AbsoluteMaxRows = 10000

// dangerousKeywords are rejected anywhere in the statement. The list is
// deliberately broad; analytics queries have no business near any of
// these.
var dangerousKeywords = []string{
	"DROP", "DELETE", "TRUNCATE", "ALTER", "CREATE", "REPLACE",
	"INSERT", "UPDATE", "GRANT", "REVOKE", "EXEC", "EXECUTE",
	"INFORMATION_SCHEMA", "SYSTEM", "ADMIN", "USER", "PASSWORD",
}

// injectionPatterns catch the classic escalation shapes even when
// keywords alone look clean.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bunion\s+(?:all\s+)?select\b`),
	regexp.MustCompile(`(?i)\bor\s+1\s*=\s*1\b`),
	regexp.MustCompile(`(?i)\bor\s+'[^']*'\s*=\s*'[^']*'`),
	regexp.MustCompile(`--`),
	regexp.MustCompile(`/\*`),
	regexp.MustCompile(`;\s*\S`), // anything after a statement separator
}

var (
	fromTable  = regexp.MustCompile(`(?i)\b(?:from|join)\s+([a-zA-Z_][a-zA-Z0-9_.]*)`)
	limitEnd   = regexp.MustCompile(`(?i)\blimit\s+(\d+)\s*;?\s*$`)
	wordRegexp = regexp.MustCompile(`(?i)\b[a-z_][a-z0-9_]*\b`)

	// limitPaged matches LIMIT n OFFSET m and LIMIT n, m. ClampLimit
	// cannot rewrite these safely (the count operand moves), so Validate
	// rejects them instead.
	limitPaged = regexp.MustCompile(`(?i)\blimit\s+\d+\s*(?:,|\boffset\b)`)
)

// Result is the outcome of validating one statement.
type Result struct {
	// Valid reports whether the statement may execute.
	Valid bool

	// Reason explains a rejection. Empty when Valid.
	Reason string

	// Warnings are advisory (missing WHERE, missing LIMIT before
	// clamping). They never block execution.
	Warnings []string

	// Tables lists the tables the statement reads from.
	Tables []string
}

// Validate checks a generated statement against the guard rules.
//
// Parameters:
//   - sql: the statement to check
//   - allowedTables: queryable table names (schema.AllowedTables)
//   - analyticsIDs: every analytics ID the request is scoped to
//   - filterColumn: the tenant-scoping column (schema.FilterColumn)
//
// The filter proof is textual: the statement must mention the filter
// column and contain every analytics ID as a quoted literal. That is
// deliberately conservative; a query that scopes correctly in some way
// the check cannot see is still rejected.
func Validate(sql string, allowedTables map[string]bool, analyticsIDs []string, filterColumn string) Result {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return reject("empty statement")
	}

	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return reject("statement must start with SELECT")
	}

	for _, p := range injectionPatterns {
		if p.MatchString(trimmed) {
			return reject("injection pattern detected")
		}
	}

	words := wordSet(trimmed)
	for _, kw := range dangerousKeywords {
		if words[strings.ToLower(kw)] {
			return reject(fmt.Sprintf("forbidden keyword %s", kw))
		}
	}

	res := Result{Valid: true}
	for _, m := range fromTable.FindAllStringSubmatch(trimmed, -1) {
		table := strings.TrimPrefix(m[1], "default.")
		res.Tables = append(res.Tables, table)
		if !allowedTables[table] {
			return reject(fmt.Sprintf("table %s is not queryable", table))
		}
	}
	if len(res.Tables) == 0 {
		return reject("no table reference found")
	}

	lower := strings.ToLower(trimmed)
	if !strings.Contains(lower, strings.ToLower(filterColumn)) {
		return reject(fmt.Sprintf("missing required filter on %s", filterColumn))
	}
	for _, id := range analyticsIDs {
		if !strings.Contains(trimmed, "'"+id+"'") {
			return reject(fmt.Sprintf("filter does not include account %s", id))
		}
	}

	if limitPaged.MatchString(trimmed) {
		return reject("LIMIT with OFFSET is not supported")
	}

	if !strings.Contains(lower, "where") {
		res.Warnings = append(res.Warnings, "query has no WHERE clause")
	}
	if !limitEnd.MatchString(trimmed) {
		res.Warnings = append(res.Warnings, "query has no LIMIT clause")
	}
	return res
}

// ClampLimit ensures the statement ends with a LIMIT no larger than
// min(maxRecords, AbsoluteMaxRows), appending one when absent. The
// input is assumed to have passed Validate.
func ClampLimit(sql string, maxRecords int) string {
	ceiling := maxRecords
	if ceiling <= 0 || ceiling > AbsoluteMaxRows {
		ceiling = AbsoluteMaxRows
	}

	trimmed := strings.TrimRight(strings.TrimSpace(sql), ";")
	if m := limitEnd.FindStringSubmatch(trimmed); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n <= ceiling {
			return trimmed
		}
		return limitEnd.ReplaceAllString(trimmed, fmt.Sprintf("LIMIT %d", ceiling))
	}
	return fmt.Sprintf("%s LIMIT %d", trimmed, ceiling)
}

func reject(reason string) Result {
	return Result{Valid: false, Reason: reason}
}

func wordSet(sql string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range wordRegexp.FindAllString(strings.ToLower(sql), -1) {
		set[w] = true
	}
	return set
}
