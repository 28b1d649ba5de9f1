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
	"log/slog"
	"time"

	"github.com/wizelai/insights/pkg/extensions"
	"github.com/wizelai/insights/services/analytics"
	"github.com/wizelai/insights/services/insights/access"
	"github.com/wizelai/insights/services/insights/datatypes"
	"github.com/wizelai/insights/services/insights/mode"
	"github.com/wizelai/insights/services/insights/observability"
	"github.com/wizelai/insights/services/llm"
	"github.com/wizelai/insights/services/sanitizer"
)

// =============================================================================
// Configuration
// =============================================================================

// Config carries the model selection and per-stage deadlines for the
// pipeline. Zero values are filled in by EnsureDefaults.
type Config struct {
	// GenerationModel is the fast model that writes SQL.
	GenerationModel string

	// AnalysisModel is the capable model that writes the narrative.
	AnalysisModel string

	// FallbackModel gets exactly one attempt when AnalysisModel fails.
	FallbackModel string

	// GenerationTimeout bounds the SQL generation call.
	GenerationTimeout time.Duration

	// QueryTimeout bounds the analytics store query.
	QueryTimeout time.Duration

	// AnalysisTimeout bounds each analysis attempt separately, so a
	// slow primary cannot starve the fallback.
	AnalysisTimeout time.Duration
}

// EnsureDefaults fills unset fields with production defaults.
func (c *Config) EnsureDefaults() {
	if c.GenerationModel == "" {
		c.GenerationModel = llm.DefaultGenerationModel
	}
	if c.AnalysisModel == "" {
		c.AnalysisModel = llm.DefaultAnalysisModel
	}
	if c.FallbackModel == "" {
		c.FallbackModel = llm.DefaultFallbackModel
	}
	if c.GenerationTimeout <= 0 {
		c.GenerationTimeout = 60 * time.Second
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 30 * time.Second
	}
	if c.AnalysisTimeout <= 0 {
		c.AnalysisTimeout = 120 * time.Second
	}
}

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator runs the full analysis pipeline: sanitize, resolve
// access, select mode, generate SQL, execute, analyze.
//
// # Description
//
// The same pipeline serves both the buffered and the streaming
// endpoint; the streaming endpoint additionally observes progress
// through an Emitter. Permission resolution happens before any model
// call, so unauthorized and no-data-source requests cost nothing.
//
// # Thread Safety
//
// An Orchestrator is immutable after construction and safe for
// concurrent use. Per-request state lives in the CostTracker and
// Emitter created for each request.
type Orchestrator struct {
	sanitizer *sanitizer.Sanitizer
	resolver  *access.Resolver
	llm       llm.ChatClient
	exec      analytics.Executor
	metrics   *observability.PipelineMetrics
	logger    *slog.Logger
	cfg       Config
}

// NewOrchestrator creates an Orchestrator. metrics may be nil, which
// disables metric recording. A nil logger falls back to slog.Default().
func NewOrchestrator(
	san *sanitizer.Sanitizer,
	resolver *access.Resolver,
	chat llm.ChatClient,
	exec analytics.Executor,
	metrics *observability.PipelineMetrics,
	logger *slog.Logger,
	cfg Config,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.EnsureDefaults()
	return &Orchestrator{
		sanitizer: san,
		resolver:  resolver,
		llm:       chat,
		exec:      exec,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// Request is one analysis request after HTTP binding and validation.
type Request struct {
	Principal      *extensions.AuthInfo
	RequestID      string
	Question       string
	StoreIDs       []string
	ExpertiseLevel string
}

// Outcome is the result of a successful pipeline run.
type Outcome struct {
	Analysis string
	Metadata *datatypes.AnalyzeMetadata
}

// =============================================================================
// Entry Points
// =============================================================================

// Analyze runs the pipeline end to end and returns the buffered result.
//
// The StageError carries everything the failure envelope needs: the
// kind, the failing SQL for execution failures, the offending store IDs
// for authorization failures, and the rows for analysis failures. Spend
// accumulated before the failure is available via tracker.Summary().
func (o *Orchestrator) Analyze(ctx context.Context, req Request, tracker *CostTracker) (*Outcome, *StageError) {
	return o.run(ctx, req, tracker, nil, nil)
}

// AnalyzeStream runs the pipeline and reports progress through the
// emitter: status events per stage, the validated SQL, the row count,
// incremental analysis chunks, then exactly one terminal event.
//
// AnalyzeStream always terminates the stream, including on failure and
// cancellation; the caller only drains em.Events().
func (o *Orchestrator) AnalyzeStream(ctx context.Context, req Request, em *Emitter) {
	tracker := NewCostTracker()

	emit := func(ev datatypes.StreamEvent) {
		em.Emit(ctx, ev)
	}
	onChunk := func(chunk string) error {
		if !em.Emit(ctx, datatypes.ChunkEvent(chunk)) {
			return context.Cause(ctx)
		}
		return nil
	}

	out, stageErr := o.run(ctx, req, tracker, emit, onChunk)
	if stageErr != nil {
		ev := datatypes.ErrorEvent(string(stageErr.Kind), stageErr.Message)
		ev.FailedSQL = stageErr.SQL
		ev.UnauthorizedStores = stageErr.UnauthorizedStores
		ev.Cost = tracker.Summary()
		em.Emit(ctx, ev)
		return
	}
	em.Emit(ctx, datatypes.CompleteEvent(out.Metadata))
}

// =============================================================================
// Pipeline
// =============================================================================

// run executes the stages in order. emit and onChunk are nil for the
// buffered endpoint. Every early return before the generation stage
// guarantees zero model calls and zero ledger entries.
func (o *Orchestrator) run(ctx context.Context, req Request, tracker *CostTracker, emit func(datatypes.StreamEvent), onChunk func(string) error) (*Outcome, *StageError) {
	started := time.Now()
	if emit == nil {
		emit = func(datatypes.StreamEvent) {}
	}
	log := o.logger.With("request_id", req.RequestID)

	// Stage 0: sanitize. A prompt-extraction attempt short-circuits
	// with the canned refusal instead of an error.
	clean := o.sanitizer.Sanitize(req.Question)
	if clean.PromptExtraction {
		log.Warn("prompt extraction attempt refused", "findings", len(clean.Findings))
		return nil, stageErr(KindGenerationFailed, sanitizer.RefusalMessage, nil)
	}
	question := clean.Clean
	storeIDs := o.sanitizer.SanitizeList(req.StoreIDs)

	// Stage 1: resolve access. Runs before any model call.
	emit(datatypes.StatusEvent("resolving_access", "Resolving store access"))
	accessible, err := o.resolver.AccessibleStores(ctx, req.Principal)
	if err != nil {
		return nil, stageErr(KindInternal, "failed to resolve store access", err)
	}
	if len(accessible) == 0 {
		return nil, stageErr(KindNoDataSource, "no integrated data sources are available to this account", nil)
	}

	target, unauthorized := access.Authorize(storeIDs, accessible)
	if len(unauthorized) > 0 {
		log.Warn("request named unauthorized stores", "stores", unauthorized)
		return nil, &StageError{
			Kind:               KindUnauthorized,
			Message:            "request includes stores outside your access",
			UnauthorizedStores: unauthorized,
		}
	}

	mapping := access.MapToAnalyticsIDs(target)
	for _, e := range mapping.Errors {
		log.Warn("store dropped during ID mapping", "error", e)
	}
	if len(mapping.AnalyticsIDs) == 0 {
		return nil, stageErr(KindNoDataSource, "no integrated data sources are available to this account", nil)
	}

	// Stage 2: mode selection. Driven by the pinned count, not the
	// resolved count, so an unpinned single-store account still gets
	// the portfolio envelope.
	m := mode.Select(len(storeIDs))
	cfg := mode.ConfigFor(m)
	tr := mode.ParseTimeRange(question, cfg)
	dataReq := mode.DeriveRequirements(question, cfg)
	template := mode.SelectTemplate(m, dataReq)

	log.Info("analysis mode selected",
		"mode", string(m),
		"stores", len(mapping.AnalyticsIDs),
		"time_range_days", tr.Days,
		"capped", tr.Capped,
	)

	// Stage 3: generate SQL on the fast model.
	emit(datatypes.StatusEvent("generating_query", "Writing the query"))
	genStart := time.Now()
	gen, sErr := o.generateSQL(ctx, question, mapping.AnalyticsIDs, tr, dataReq, tracker)
	o.metrics.RecordStage(observability.StageGeneration, time.Since(genStart))
	if sErr != nil {
		o.finish(log, m, sErr, started, tracker)
		return nil, sErr
	}
	emit(datatypes.SQLEvent(gen.SQL))

	// Stage 4: execute. No retry: a store-side failure surfaces with
	// the SQL attached so it can be audited.
	emit(datatypes.StatusEvent("executing_query", "Running the query"))
	execStart := time.Now()
	execCtx, cancel := context.WithTimeout(ctx, o.cfg.QueryTimeout)
	result, err := o.exec.Query(execCtx, gen.SQL)
	cancel()
	o.metrics.RecordStage(observability.StageExecution, time.Since(execStart))
	if err != nil {
		sErr := &StageError{
			Kind:    KindExecutionFailed,
			Message: "query execution failed",
			SQL:     gen.SQL,
			Err:     err,
		}
		o.finish(log, m, sErr, started, tracker)
		return nil, sErr
	}
	o.metrics.RecordRows(result.RowCount)
	emit(datatypes.QueryCompleteEvent(result.RowCount))

	warnings := gen.Warnings
	if check := mode.ValidateTokenBudget(mode.EstimateTokens(question)+estimateRowTokens(result.Rows), cfg.Budget); check.Warning != "" {
		log.Warn("token budget pressure",
			"utilization_pct", check.UtilizationPct,
			"recommendation", check.Recommendation,
		)
		warnings = append(warnings, check.Warning)
	}

	// Stage 5: analyze, with exactly one fallback attempt.
	emit(datatypes.StatusEvent("analyzing", "Interpreting the results"))
	anStart := time.Now()
	analysis, sErr := o.runAnalysis(ctx, question, gen.SQL, result.Rows, mapping.StoreNames,
		req.ExpertiseLevel, template, cfg.Budget, tracker, onChunk)
	o.metrics.RecordStage(observability.StageAnalysis, time.Since(anStart))
	if sErr != nil {
		sErr.Rows = rowMaps(result.Rows)
		o.finish(log, m, sErr, started, tracker)
		return nil, sErr
	}
	if analysis.UsedFallback {
		o.metrics.RecordFallback()
	}

	meta := &datatypes.AnalyzeMetadata{
		Question:      question,
		Mode:          string(m),
		StoreCount:    len(target),
		Stores:        mapping.StoreNames,
		TimeRangeDays: tr.Days,
		RowCount:      result.RowCount,
		ExecutionTime: fmt.Sprintf("%dms", result.Elapsed.Milliseconds()),
		SQL:           gen.SQL,
		Tables:        gen.Tables,
		Warnings:      warnings,
		ModelUsed:     analysis.Model,
		UsedFallback:  analysis.UsedFallback,
		Cost:          tracker.Summary(),
	}

	o.finish(log, m, nil, started, tracker)
	return &Outcome{Analysis: analysis.Text, Metadata: meta}, nil
}

// finish records the request-level metrics and the closing log line.
func (o *Orchestrator) finish(log *slog.Logger, m mode.Mode, sErr *StageError, started time.Time, tracker *CostTracker) {
	outcome := "success"
	if sErr != nil {
		outcome = string(sErr.Kind)
	}
	elapsed := time.Since(started)
	o.metrics.RecordRequest(string(m), outcome, elapsed)

	summary := tracker.Summary()
	for model, usd := range summary.ByModel {
		o.metrics.RecordCost(model, usd)
	}
	for _, entry := range tracker.Entries() {
		o.metrics.RecordTokens(entry.Model, entry.InputTokens, entry.OutputTokens)
	}

	if sErr != nil {
		log.Error("analysis failed",
			"kind", string(sErr.Kind),
			"error", sErr.Message,
			"elapsed_ms", elapsed.Milliseconds(),
			"cost_usd", summary.TotalUSD,
		)
		return
	}
	log.Info("analysis complete",
		"elapsed_ms", elapsed.Milliseconds(),
		"cost_usd", summary.TotalUSD,
		"tokens_in", summary.InputTokens,
		"tokens_out", summary.OutputTokens,
	)
}

// estimateRowTokens approximates the token load of a result set before
// the analysis prompt is built.
func estimateRowTokens(rows []analytics.Row) int {
	var bytes int
	for _, row := range rows {
		for k, v := range row {
			bytes += len(k) + len(fmt.Sprint(v)) + 6
		}
	}
	return bytes / 4
}

func rowMaps(rows []analytics.Row) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = map[string]any(r)
	}
	return out
}
