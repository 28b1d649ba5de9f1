// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package schema describes the analytics-store tables the pipeline may
// query. The same definitions serve two purposes: rendering the table
// documentation block of the generation prompt, and the allowlist the
// SQL guard validates generated queries against.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wizelai/insights/services/insights/mode"
)

// FilterColumn is the tenant-scoping column every query must filter on.
// A generated query that cannot prove this filter never executes.
const FilterColumn = "klaviyo_public_id"

// Column is one column of an analytics table.
type Column struct {
	Name        string
	Type        string
	Description string
}

// Table describes one queryable analytics table.
type Table struct {
	Name        string
	Description string
	DateColumn  string
	Columns     []Column

	// Categories lists which data categories this table serves.
	Categories []mode.DataCategory
}

// tables is the full catalog. Every table carries the tenant filter
// column; the guard rejects queries against anything not listed here.
var tables = []Table{
	{
		Name:        "account_metrics_daily",
		Description: "Daily aggregated account metrics across all channels",
		DateColumn:  "date",
		Categories:  []mode.DataCategory{mode.CategoryRevenue, mode.CategoryTimeSeries},
		Columns: []Column{
			{"date", "Date", "Metric date"},
			{FilterColumn, "String", "Analytics account ID"},
			{"total_orders", "UInt32", "Total orders"},
			{"total_revenue", "Float64", "Total revenue"},
			{"avg_order_value", "Float64", "Average order value"},
			{"unique_customers", "UInt32", "Unique customers"},
			{"new_customers", "UInt32", "New customers"},
			{"returning_customers", "UInt32", "Returning customers"},
			{"campaigns_sent", "UInt32", "Campaigns sent"},
			{"campaign_revenue", "Float64", "Campaign revenue"},
			{"flow_revenue", "Float64", "Flow revenue"},
			{"email_revenue", "Float64", "Email revenue"},
			{"sms_revenue", "Float64", "SMS revenue"},
		},
	},
	{
		Name:        "campaign_statistics",
		Description: "Campaign performance statistics by date and campaign",
		DateColumn:  "date",
		Categories:  []mode.DataCategory{mode.CategoryCampaigns},
		Columns: []Column{
			{"date", "Date", "Campaign date"},
			{FilterColumn, "String", "Analytics account ID"},
			{"campaign_id", "String", "Campaign ID"},
			{"campaign_name", "String", "Campaign name"},
			{"send_channel", "String", "Send channel (email, sms, push)"},
			{"recipients", "UInt32", "Recipients"},
			{"delivered", "UInt32", "Delivered"},
			{"opens_unique", "UInt32", "Unique opens"},
			{"clicks_unique", "UInt32", "Unique clicks"},
			{"conversions", "UInt32", "Conversions"},
			{"conversion_value", "Float64", "Conversion value"},
			{"revenue_per_recipient", "Float64", "Revenue per recipient"},
			{"open_rate", "UInt16", "Open rate (0-10000 = 0-100%)"},
			{"click_rate", "UInt16", "Click rate (0-10000 = 0-100%)"},
			{"conversion_rate", "UInt16", "Conversion rate (0-10000 = 0-100%)"},
			{"bounce_rate", "UInt16", "Bounce rate (0-10000 = 0-100%)"},
			{"unsubscribes", "UInt32", "Unsubscribes"},
		},
	},
	{
		Name:        "flow_statistics",
		Description: "Flow (automation) performance statistics",
		DateColumn:  "date",
		Categories:  []mode.DataCategory{mode.CategoryFlows},
		Columns: []Column{
			{"date", "Date", "Flow date"},
			{FilterColumn, "String", "Analytics account ID"},
			{"flow_id", "String", "Flow ID"},
			{"flow_name", "String", "Flow name"},
			{"send_channel", "String", "Send channel"},
			{"recipients", "UInt32", "Recipients"},
			{"delivered", "UInt32", "Delivered"},
			{"opens_unique", "UInt32", "Unique opens"},
			{"clicks_unique", "UInt32", "Unique clicks"},
			{"conversions", "UInt32", "Conversions"},
			{"conversion_value", "Float64", "Conversion value"},
			{"open_rate", "UInt16", "Open rate (0-10000 = 0-100%)"},
			{"click_rate", "UInt16", "Click rate (0-10000 = 0-100%)"},
		},
	},
	{
		Name:        "klaviyo_orders",
		Description: "Individual order records attributed to marketing",
		DateColumn:  "order_date",
		Categories:  []mode.DataCategory{mode.CategoryRevenue},
		Columns: []Column{
			{"order_date", "Date", "Order date"},
			{FilterColumn, "String", "Analytics account ID"},
			{"order_id", "String", "Order ID"},
			{"order_value", "Float64", "Order value"},
			{"item_count", "UInt32", "Items in order"},
			{"channel", "String", "Attributed channel"},
			{"is_first_order", "UInt8", "First order flag"},
		},
	},
	{
		Name:        "products_master",
		Description: "Product catalog with sales aggregates",
		DateColumn:  "",
		Categories:  []mode.DataCategory{mode.CategoryProducts},
		Columns: []Column{
			{FilterColumn, "String", "Analytics account ID"},
			{"product_id", "String", "Product ID"},
			{"product_name", "String", "Product name"},
			{"sku", "String", "SKU"},
			{"units_sold", "UInt32", "Units sold"},
			{"product_revenue", "Float64", "Product revenue"},
			{"orders_containing", "UInt32", "Orders containing product"},
		},
	},
	{
		Name:        "segment_statistics",
		Description: "Audience segment sizes and engagement",
		DateColumn:  "date",
		Categories:  []mode.DataCategory{mode.CategorySegments},
		Columns: []Column{
			{"date", "Date", "Snapshot date"},
			{FilterColumn, "String", "Analytics account ID"},
			{"segment_id", "String", "Segment ID"},
			{"segment_name", "String", "Segment name"},
			{"member_count", "UInt32", "Members"},
			{"segment_revenue", "Float64", "Revenue from segment"},
		},
	},
}

// AllowedTables returns the set of queryable table names.
func AllowedTables() map[string]bool {
	allowed := make(map[string]bool, len(tables))
	for _, t := range tables {
		allowed[t.Name] = true
	}
	return allowed
}

// RelevantTables returns the tables serving the request's data
// categories, sorted by name for stable prompts. An empty requirement
// set returns the revenue tables, matching the default intent.
func RelevantTables(req mode.DataRequirements) []Table {
	var out []Table
	for _, t := range tables {
		for _, c := range t.Categories {
			if req.Needs(c) {
				out = append(out, t)
				break
			}
		}
	}
	if len(out) == 0 {
		for _, t := range tables {
			if t.Name == "account_metrics_daily" {
				out = append(out, t)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// PromptDoc renders the table documentation block for the generation
// prompt: one section per table with column names, types, and the
// mandatory filter reminder.
func PromptDoc(selected []Table) string {
	var b strings.Builder
	for _, t := range selected {
		fmt.Fprintf(&b, "Table %s: %s\n", t.Name, t.Description)
		for _, c := range t.Columns {
			fmt.Fprintf(&b, "  %s %s -- %s\n", c.Name, c.Type, c.Description)
		}
		if t.DateColumn != "" {
			fmt.Fprintf(&b, "  (date column: %s)\n", t.DateColumn)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Every query MUST filter %s to the provided account IDs.\n", FilterColumn)
	return b.String()
}
