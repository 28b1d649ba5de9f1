// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/wizelai/insights/services/analytics"
	"github.com/wizelai/insights/services/insights/mode"
	"github.com/wizelai/insights/services/insights/schema"
	"github.com/wizelai/insights/services/llm"
)

// generationSystemPrompt instructs the fast model. The ERROR: contract
// gives the model a structured way to refuse instead of inventing SQL.
const generationSystemPrompt = `You are a ClickHouse SQL generator for a marketing analytics platform.

Rules:
- Produce exactly ONE SELECT statement and nothing else. No commentary, no markdown.
- The statement MUST filter the tenant column to the provided account IDs, e.g. klaviyo_public_id IN ('id1','id2').
- Only use the documented tables and columns.
- Rate columns store basis points (0-10000 = 0-100%); divide by 100 for percentages.
- Respect the requested date range using the table's date column.
- Always end with a LIMIT clause.
- If the question cannot be answered from the documented tables, reply with exactly: ERROR: <one-line reason>`

func buildGenerationMessages(question string, analyticsIDs []string, tr mode.TimeRange, tables []schema.Table) []llm.Message {
	quoted := make([]string, len(analyticsIDs))
	for i, id := range analyticsIDs {
		quoted[i] = "'" + id + "'"
	}

	var b strings.Builder
	b.WriteString("Schema:\n\n")
	b.WriteString(schema.PromptDoc(tables))
	fmt.Fprintf(&b, "\nAccount IDs: %s\n", strings.Join(quoted, ", "))
	fmt.Fprintf(&b, "Date range: last %d days\n", tr.Days)
	if tr.ComparisonDays > 0 {
		fmt.Fprintf(&b, "Comparison: also cover the preceding %d days so periods can be compared\n", tr.ComparisonDays)
	}
	fmt.Fprintf(&b, "\nQuestion: %s\n", question)

	return []llm.Message{
		{Role: "system", Content: generationSystemPrompt},
		{Role: "user", Content: b.String()},
	}
}

// analysisVoices tunes the analyst register per expertise level.
var analysisVoices = map[string]string{
	"beginner":     "Explain metrics in plain language and spell out every acronym. Focus on what to do next.",
	"intermediate": "Assume familiarity with email marketing metrics. Lead with findings, then recommendations.",
	"expert":       "Be terse and quantitative. Skip metric definitions entirely.",
}

// analysisTemplates frames the analysis per prompt family.
var analysisTemplates = map[mode.PromptTemplate]string{
	mode.TemplatePortfolio:  "You are analyzing a portfolio of stores. Compare performance across stores, flag outliers in both directions, and note portfolio-level trends. Do not dive into individual records.",
	mode.TemplateAutomation: "You are analyzing marketing automations (flows). Evaluate each flow's funnel performance and identify which automations deserve investment or pruning.",
	mode.TemplateCampaign:   "You are analyzing email/SMS campaigns. Evaluate send performance, engagement, and conversion, and identify what distinguishes the winners.",
	mode.TemplateGeneral:    "You are analyzing marketing performance data. Answer the question directly from the data provided.",
}

func buildAnalysisMessages(question, sql string, rows []analytics.Row, storeNames []string, expertise string, template mode.PromptTemplate, budget mode.TokenBudget) []llm.Message {
	voice, ok := analysisVoices[expertise]
	if !ok {
		voice = analysisVoices["intermediate"]
	}

	system := fmt.Sprintf(`You are a senior marketing analyst. %s

%s

Ground every claim in the data block. If the data cannot answer part of the question, say so instead of guessing. Never mention SQL or internal identifiers in your answer.`,
		analysisTemplates[template], voice)

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", question)
	if len(storeNames) > 0 {
		fmt.Fprintf(&b, "Stores: %s\n\n", strings.Join(storeNames, ", "))
	}
	fmt.Fprintf(&b, "Query used:\n%s\n\n", sql)
	fmt.Fprintf(&b, "Data summary:\n%s\n", summarizeRows(rows))
	fmt.Fprintf(&b, "\nData (%d rows):\n%s\n", len(rows), renderRows(rows, budget.DataBlock))

	return []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: b.String()},
	}
}

// summarizeRows computes per-column statistics for numeric columns so
// the analyst has totals even when the row block gets truncated.
func summarizeRows(rows []analytics.Row) string {
	if len(rows) == 0 {
		return "no rows returned"
	}

	type stats struct {
		count    int
		sum      float64
		min, max float64
	}
	byColumn := make(map[string]*stats)
	for _, row := range rows {
		for col, v := range row {
			f, ok := toFloat(v)
			if !ok {
				continue
			}
			s := byColumn[col]
			if s == nil {
				s = &stats{min: f, max: f}
				byColumn[col] = s
			}
			s.count++
			s.sum += f
			if f < s.min {
				s.min = f
			}
			if f > s.max {
				s.max = f
			}
		}
	}

	columns := make([]string, 0, len(byColumn))
	for col := range byColumn {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	var b strings.Builder
	fmt.Fprintf(&b, "rows: %d\n", len(rows))
	for _, col := range columns {
		s := byColumn[col]
		fmt.Fprintf(&b, "%s: sum=%.2f avg=%.2f min=%.2f max=%.2f\n",
			col, s.sum, s.sum/float64(s.count), s.min, s.max)
	}
	return b.String()
}

// renderRows encodes rows as JSON lines, truncating to the mode's data
// token budget so the prompt never blows the context window.
func renderRows(rows []analytics.Row, dataBudgetTokens int) string {
	budgetBytes := dataBudgetTokens * 4
	var b strings.Builder
	for i, row := range rows {
		encoded, err := json.Marshal(row)
		if err != nil {
			continue
		}
		if b.Len()+len(encoded)+1 > budgetBytes {
			fmt.Fprintf(&b, "... truncated at row %d of %d to fit the token budget\n", i, len(rows))
			break
		}
		b.Write(encoded)
		b.WriteByte('\n')
	}
	return b.String()
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
