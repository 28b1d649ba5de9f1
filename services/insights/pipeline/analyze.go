// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"errors"

	"github.com/wizelai/insights/services/analytics"
	"github.com/wizelai/insights/services/insights/mode"
	"github.com/wizelai/insights/services/llm"
)

// Analysis runs warm and long-form.
const (
	analysisTemperature = 0.7
	analysisMaxTokens   = 4096
)

// analysisResult is the output of the analysis stage.
type analysisResult struct {
	Text         string
	Model        string
	UsedFallback bool
}

// runAnalysis produces the narrative. The primary model gets exactly
// one attempt; any failure triggers exactly one attempt on the fallback
// model, and a second failure fails the stage. There is never a third
// attempt.
//
// When onChunk is non-nil the attempt streams, delivering chunks as
// they arrive. Chunks already delivered from a mid-stream primary
// failure are abandoned; the fallback restarts the narrative.
func (o *Orchestrator) runAnalysis(ctx context.Context, question, sql string, rows []analytics.Row, storeNames []string, expertise string, template mode.PromptTemplate, budget mode.TokenBudget, tracker *CostTracker, onChunk func(string) error) (*analysisResult, *StageError) {
	messages := buildAnalysisMessages(question, sql, rows, storeNames, expertise, template, budget)

	resp, primaryErr := o.analysisAttempt(ctx, o.cfg.AnalysisModel, messages, tracker, onChunk)
	if primaryErr == nil {
		return &analysisResult{Text: resp.Content, Model: resp.Model}, nil
	}
	if ctx.Err() != nil {
		// Caller is gone or out of time; a fallback attempt would
		// fail the same way.
		return nil, stageErr(KindAnalysisFailed, "analysis canceled", primaryErr)
	}
	o.logger.Warn("primary analysis model failed, trying fallback",
		"primary", o.cfg.AnalysisModel,
		"fallback", o.cfg.FallbackModel,
		"error", primaryErr.Error(),
	)

	resp, fallbackErr := o.analysisAttempt(ctx, o.cfg.FallbackModel, messages, tracker, onChunk)
	if fallbackErr == nil {
		return &analysisResult{Text: resp.Content, Model: resp.Model, UsedFallback: true}, nil
	}

	return nil, stageErr(KindAnalysisFailed, "both analysis models failed",
		errors.Join(primaryErr, fallbackErr))
}

// analysisAttempt performs one invocation, buffered or streaming, and
// records it in the ledger even when it fails partway.
func (o *Orchestrator) analysisAttempt(ctx context.Context, model string, messages []llm.Message, tracker *CostTracker, onChunk func(string) error) (*llm.ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.AnalysisTimeout)
	defer cancel()

	req := llm.ChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: analysisTemperature,
		MaxTokens:   analysisMaxTokens,
	}

	tier := TierCapable
	if model == o.cfg.FallbackModel {
		tier = TierFallback
	}

	var resp *llm.ChatResponse
	var err error
	if onChunk != nil {
		resp, err = o.llm.ChatStream(ctx, req, onChunk)
	} else {
		resp, err = o.llm.Chat(ctx, req)
	}
	if err != nil {
		// Failed attempts still consumed prompt tokens.
		tracker.Track(model, tier, "analysis_failed", estimatePromptTokens(messages), 0)
		return nil, err
	}
	tracker.Track(resp.Model, tier, "analysis", resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return resp, nil
}

func estimatePromptTokens(messages []llm.Message) int {
	var total int
	for _, m := range messages {
		total += len(m.Content)
	}
	return total / 4
}
