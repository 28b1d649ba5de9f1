// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/wizelai/insights/services/insights/mode"
	"github.com/wizelai/insights/services/insights/schema"
	"github.com/wizelai/insights/services/insights/sqlguard"
	"github.com/wizelai/insights/services/llm"
)

// Generation runs cold and short: SQL has one right shape.
const (
	generationTemperature = 0.1
	generationMaxTokens   = 1000

	// maxGenerationAttempts caps guard-rejection regeneration: the
	// first attempt plus one retry with the violation fed back.
	maxGenerationAttempts = 2
)

// GeneratedQuery is the output of the generation stage: a statement
// that has passed the guard and had its LIMIT clamped.
type GeneratedQuery struct {
	SQL      string
	Tables   []string
	Warnings []string
}

// generateSQL asks the fast model for a query and validates the result.
// A guard rejection is fed back to the model for one regeneration
// attempt; rejected SQL never reaches the executor, the stage fails
// instead. A refusal ("ERROR:" reply) is terminal, not retried.
func (o *Orchestrator) generateSQL(ctx context.Context, question string, analyticsIDs []string, tr mode.TimeRange, req mode.DataRequirements, tracker *CostTracker) (*GeneratedQuery, *StageError) {
	tables := schema.RelevantTables(req)
	messages := buildGenerationMessages(question, analyticsIDs, tr, tables)

	ctx, cancel := context.WithTimeout(ctx, o.cfg.GenerationTimeout)
	defer cancel()

	var lastReason string
	for attempt := 1; attempt <= maxGenerationAttempts; attempt++ {
		resp, err := o.llm.Chat(ctx, llm.ChatRequest{
			Model:       o.cfg.GenerationModel,
			Messages:    messages,
			Temperature: generationTemperature,
			MaxTokens:   generationMaxTokens,
		})
		if err != nil {
			return nil, stageErr(KindGenerationFailed, "query generation call failed", err)
		}
		tracker.Track(resp.Model, TierFast, "generate_sql", resp.Usage.InputTokens, resp.Usage.OutputTokens)

		raw := stripMarkdownFences(strings.TrimSpace(resp.Content))
		if reason, refused := strings.CutPrefix(raw, "ERROR:"); refused {
			return nil, stageErr(KindGenerationFailed,
				fmt.Sprintf("model could not answer from available data: %s", strings.TrimSpace(reason)), nil)
		}

		res := sqlguard.Validate(raw, schema.AllowedTables(), analyticsIDs, schema.FilterColumn)
		if res.Valid {
			return &GeneratedQuery{
				SQL:      sqlguard.ClampLimit(raw, req.MaxRecords),
				Tables:   res.Tables,
				Warnings: res.Warnings,
			}, nil
		}

		lastReason = res.Reason
		if attempt < maxGenerationAttempts {
			o.logger.Warn("generated SQL rejected, regenerating",
				"attempt", attempt, "reason", res.Reason)
			messages = append(messages,
				llm.Message{Role: "assistant", Content: resp.Content},
				llm.Message{Role: "user", Content: fmt.Sprintf(
					"That query was rejected: %s. Return a corrected query that follows every rule, or ERROR: if the question cannot be answered.",
					res.Reason)},
			)
		}
	}

	o.logger.Warn("generated SQL rejected", "reason", lastReason)
	return nil, stageErr(KindGenerationFailed,
		fmt.Sprintf("generated query failed validation: %s", lastReason), nil)
}

// stripMarkdownFences removes a ```sql ... ``` wrapper when the model
// adds one despite instructions.
func stripMarkdownFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```sql")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
