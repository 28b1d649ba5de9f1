// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sqlguard

import (
	"strings"
	"testing"
)

var testTables = map[string]bool{
	"campaign_statistics":   true,
	"account_metrics_daily": true,
}

const filterColumn = "klaviyo_public_id"

func validQuery() string {
	return "SELECT campaign_name, conversion_value FROM campaign_statistics " +
		"WHERE klaviyo_public_id IN ('kl-1', 'kl-2') AND date >= today() - 14 " +
		"ORDER BY conversion_value DESC LIMIT 100"
}

// TestValidateAcceptsScopedSelect verifies a well-formed scoped query
// passes with its tables reported.
func TestValidateAcceptsScopedSelect(t *testing.T) {
	t.Parallel()

	res := Validate(validQuery(), testTables, []string{"kl-1", "kl-2"}, filterColumn)
	if !res.Valid {
		t.Fatalf("Validate() rejected valid query: %s", res.Reason)
	}
	if len(res.Tables) != 1 || res.Tables[0] != "campaign_statistics" {
		t.Errorf("Tables = %v", res.Tables)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Warnings = %v", res.Warnings)
	}
}

// TestValidateRejections drives the rejection matrix: non-SELECT,
// dangerous keywords, injection shapes, unknown tables, and missing
// tenant filters.
func TestValidateRejections(t *testing.T) {
	t.Parallel()

	ids := []string{"kl-1"}
	tests := []struct {
		name string
		sql  string
	}{
		{"empty", "   "},
		{"not select", "DROP TABLE campaign_statistics"},
		{"insert", "INSERT INTO campaign_statistics VALUES (1)"},
		{"embedded delete", "SELECT delete FROM campaign_statistics WHERE klaviyo_public_id = 'kl-1'"},
		{"union select", "SELECT date FROM campaign_statistics WHERE klaviyo_public_id = 'kl-1' UNION SELECT name FROM passwords"},
		{"tautology", "SELECT date FROM campaign_statistics WHERE klaviyo_public_id = 'kl-1' OR 1=1"},
		{"comment", "SELECT date FROM campaign_statistics -- WHERE klaviyo_public_id = 'kl-1'"},
		{"second statement", "SELECT date FROM campaign_statistics WHERE klaviyo_public_id = 'kl-1'; SELECT 1"},
		{"second statement newline", "SELECT date FROM campaign_statistics WHERE klaviyo_public_id = 'kl-1';\nSELECT 1"},
		{"unknown table", "SELECT x FROM secret_table WHERE klaviyo_public_id = 'kl-1'"},
		{"information schema", "SELECT table_name FROM information_schema.tables WHERE klaviyo_public_id = 'kl-1'"},
		{"no filter column", "SELECT date FROM campaign_statistics WHERE date >= today()"},
		{"filter without id", "SELECT date FROM campaign_statistics WHERE klaviyo_public_id = 'kl-other'"},
		{"limit with offset", "SELECT date FROM campaign_statistics WHERE klaviyo_public_id = 'kl-1' LIMIT 10 OFFSET 5"},
		{"limit comma form", "SELECT date FROM campaign_statistics WHERE klaviyo_public_id = 'kl-1' LIMIT 5, 10"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := Validate(tt.sql, testTables, ids, filterColumn)
			if res.Valid {
				t.Errorf("Validate(%q) accepted, want rejection", tt.sql)
			}
			if res.Reason == "" {
				t.Error("rejection without reason")
			}
		})
	}
}

// TestValidateRequiresEveryID verifies the filter must name every
// analytics ID in scope, not just one.
func TestValidateRequiresEveryID(t *testing.T) {
	t.Parallel()

	sql := "SELECT date FROM campaign_statistics WHERE klaviyo_public_id = 'kl-1' LIMIT 10"
	res := Validate(sql, testTables, []string{"kl-1", "kl-2"}, filterColumn)
	if res.Valid {
		t.Fatal("accepted query missing kl-2")
	}
	if !strings.Contains(res.Reason, "kl-2") {
		t.Errorf("Reason = %q, want mention of kl-2", res.Reason)
	}
}

// TestValidateWarnings verifies missing WHERE/LIMIT warn without
// blocking. A query with no WHERE still needs the filter mentioned; use
// a PREWHERE-less aggregate shape with the column in HAVING position.
func TestValidateWarnings(t *testing.T) {
	t.Parallel()

	sql := "SELECT klaviyo_public_id, sum(total_revenue) FROM account_metrics_daily " +
		"GROUP BY klaviyo_public_id HAVING klaviyo_public_id IN ('kl-1')"
	res := Validate(sql, testTables, []string{"kl-1"}, filterColumn)
	if !res.Valid {
		t.Fatalf("rejected: %s", res.Reason)
	}
	if len(res.Warnings) != 2 {
		t.Errorf("Warnings = %v, want missing WHERE and missing LIMIT", res.Warnings)
	}
}

// TestClampLimit verifies the LIMIT clamp: absent appended, oversized
// reduced, compliant untouched.
func TestClampLimit(t *testing.T) {
	t.Parallel()

	base := "SELECT date FROM campaign_statistics WHERE klaviyo_public_id = 'kl-1'"

	got := ClampLimit(base, 100)
	if !strings.HasSuffix(got, "LIMIT 100") {
		t.Errorf("ClampLimit append = %q", got)
	}

	got = ClampLimit(base+" LIMIT 50", 100)
	if !strings.HasSuffix(got, "LIMIT 50") {
		t.Errorf("ClampLimit keep = %q", got)
	}

	got = ClampLimit(base+" LIMIT 5000", 100)
	if !strings.HasSuffix(got, "LIMIT 100") {
		t.Errorf("ClampLimit reduce = %q", got)
	}

	// Mode ceiling above the absolute ceiling falls back to it.
	got = ClampLimit(base, 50000)
	if !strings.HasSuffix(got, "LIMIT 10000") {
		t.Errorf("ClampLimit absolute = %q", got)
	}
}
