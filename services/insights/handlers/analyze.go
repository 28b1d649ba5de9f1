// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers provides HTTP handlers for the insights service.
//
// The package contains the buffered and streaming analysis endpoints,
// health/status endpoints, and the SSE plumbing they share. Handlers
// bind and validate requests, delegate to the pipeline orchestrator,
// and translate stage failures into the stable error envelope.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wizelai/insights/pkg/extensions"
	"github.com/wizelai/insights/services/insights/datatypes"
	"github.com/wizelai/insights/services/insights/middleware"
	"github.com/wizelai/insights/services/insights/observability"
	"github.com/wizelai/insights/services/insights/pipeline"
)

// =============================================================================
// Handler
// =============================================================================

// AnalyzeHandler serves the analysis endpoints.
//
// # Thread Safety
//
// Safe for concurrent use; all per-request state is local.
type AnalyzeHandler struct {
	orch    *pipeline.Orchestrator
	metrics *observability.PipelineMetrics
	auditor extensions.AuditLogger
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewAnalyzeHandler creates the handler. metrics and auditor may be nil;
// a nil auditor discards audit events.
func NewAnalyzeHandler(orch *pipeline.Orchestrator, metrics *observability.PipelineMetrics, auditor extensions.AuditLogger, logger *slog.Logger) *AnalyzeHandler {
	if auditor == nil {
		auditor = &extensions.NopAuditLogger{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyzeHandler{
		orch:    orch,
		metrics: metrics,
		auditor: auditor,
		logger:  logger,
		tracer:  otel.Tracer("wizel.insights.handlers"),
	}
}

// audit records the final outcome of an analysis request. Audit
// failures are logged, never surfaced to the client.
func (h *AnalyzeHandler) audit(ctx context.Context, principal *extensions.AuthInfo, req datatypes.AnalyzeRequest, outcome string, kind string) {
	meta := map[string]any{"request_id": req.RequestID}
	if kind != "" {
		meta["failure_kind"] = kind
	}
	if len(req.StoreIDs) > 0 {
		meta["store_ids"] = req.StoreIDs
	}
	err := h.auditor.Log(ctx, extensions.AuditEvent{
		EventType:    "analyze.request",
		SubjectID:    principal.SubjectID,
		Action:       "analyze",
		ResourceType: "analysis",
		Outcome:      outcome,
		Metadata:     meta,
	})
	if err != nil {
		h.logger.Warn("audit log failed", "error", err, "request_id", req.RequestID)
	}
}

// =============================================================================
// Buffered Endpoint
// =============================================================================

// HandleAnalyze serves POST /v1/analyze.
//
// # Description
//
// Runs the full pipeline and returns a single JSON envelope. Failure
// kinds map to HTTP status codes (403 unauthorized, 400 no data
// source, 502 generation/execution, 500 otherwise); the envelope
// carries the kind so clients can branch without reading status text.
func (h *AnalyzeHandler) HandleAnalyze(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "HandleAnalyze")
	defer span.End()

	principal := middleware.GetAuthInfo(c)
	if principal == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req datatypes.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.EnsureDefaults()
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.String("request.id", req.RequestID),
		attribute.Int("request.store_count", len(req.StoreIDs)),
	)

	tracker := pipeline.NewCostTracker()
	out, stageErr := h.orch.Analyze(ctx, pipeline.Request{
		Principal:      principal,
		RequestID:      req.RequestID,
		Question:       req.Question,
		StoreIDs:       req.StoreIDs,
		ExpertiseLevel: req.ExpertiseLevel,
	}, tracker)
	if stageErr != nil {
		span.SetStatus(codes.Error, string(stageErr.Kind))
		h.audit(ctx, principal, req, "failure", string(stageErr.Kind))
		resp := datatypes.NewErrorResponse(req.RequestID, string(stageErr.Kind), stageErr.Message)
		resp.SQL = stageErr.SQL
		resp.UnauthorizedStores = stageErr.UnauthorizedStores
		resp.Rows = stageErr.Rows
		resp.Cost = tracker.Summary()
		c.JSON(stageErr.Kind.HTTPStatus(), resp)
		return
	}

	h.audit(ctx, principal, req, "success", "")
	c.JSON(http.StatusOK, datatypes.NewAnalyzeResponse(req.RequestID, out.Analysis, out.Metadata))
}
