// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wizelai/insights/services/insights/datatypes"
	"github.com/wizelai/insights/services/insights/middleware"
	"github.com/wizelai/insights/services/insights/pipeline"
)

// Streaming limits.
const (
	// maxStreamDuration is the wall-clock ceiling for one stream. The
	// per-stage deadlines keep any single call shorter; this bounds
	// their sum plus queueing.
	maxStreamDuration = 5 * time.Minute

	// keepAliveInterval is how often an SSE comment goes out while the
	// pipeline works. Below typical load balancer idle timeouts (60s).
	keepAliveInterval = 15 * time.Second
)

// HandleAnalyzeStream serves POST /v1/analyze/stream.
//
// # Description
//
// Runs the same pipeline as HandleAnalyze but delivers progress over
// SSE: status events per stage, the validated SQL, the row count,
// incremental analysis chunks, then exactly one terminal event
// (complete or error). The response status is always 200; failures
// travel in the terminal error event.
//
// # Connection Handling
//
// A keepalive comment goes out every 15 seconds while the pipeline is
// between events. Client disconnects cancel the pipeline context; the
// stream as a whole is capped at five minutes.
func (h *AnalyzeHandler) HandleAnalyzeStream(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "HandleAnalyzeStream")
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

	SetSSEHeaders(c.Writer)
	writer, err := NewSSEWriter(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, maxStreamDuration)
	defer cancel()

	h.metrics.StreamOpened()
	defer h.metrics.StreamClosed()

	em := pipeline.NewEmitter(pipeline.DefaultEmitterBuffer)
	go h.orch.AnalyzeStream(ctx, pipeline.Request{
		Principal:      principal,
		RequestID:      req.RequestID,
		Question:       req.Question,
		StoreIDs:       req.StoreIDs,
		ExpertiseLevel: req.ExpertiseLevel,
	}, em)

	terminal := h.drainStream(ctx, cancel, writer, em, req.RequestID)
	switch {
	case terminal == nil:
		h.audit(context.WithoutCancel(ctx), principal, req, "abandoned", "")
	case terminal.Type == datatypes.EventError:
		h.audit(context.WithoutCancel(ctx), principal, req, "failure", terminal.Kind)
	default:
		h.audit(context.WithoutCancel(ctx), principal, req, "success", "")
	}
}

// drainStream forwards emitter events to the SSE writer, interleaving
// keepalives, until the terminal event or the context ends. Returns the
// terminal event, or nil when the client disconnected before one was
// delivered.
func (h *AnalyzeHandler) drainStream(ctx context.Context, cancel context.CancelFunc, writer SSEWriter, em *pipeline.Emitter, requestID string) *datatypes.StreamEvent {
	log := h.logger.With("request_id", requestID)
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	var terminal *datatypes.StreamEvent
	for {
		select {
		case ev, ok := <-em.Events():
			if !ok {
				// Channel closed after the terminal event.
				if dropped := em.Dropped(); dropped > 0 {
					log.Warn("events dropped after terminal", "count", dropped)
				}
				return terminal
			}
			if err := writer.WriteEvent(ev); err != nil {
				// Client went away. Cancel the pipeline and drain
				// whatever it emits on the way out.
				log.Info("client disconnected mid-stream", "error", err.Error())
				h.metrics.RecordClientDisconnect()
				cancel()
				for range em.Events() {
				}
				return terminal
			}
			if ev.Terminal() {
				delivered := ev
				terminal = &delivered
				if ev.Type == datatypes.EventError {
					log.Warn("stream ended with error", "kind", ev.Kind)
				}
			}

		case <-ticker.C:
			if err := writer.WriteKeepAlive(); err != nil {
				log.Info("client disconnected during keepalive", "error", err.Error())
				h.metrics.RecordClientDisconnect()
				cancel()
				for range em.Events() {
				}
				return terminal
			}

		case <-ctx.Done():
			// Wall-clock ceiling hit before the pipeline terminated.
			// The pipeline sees the same cancellation and emits its
			// terminal error; deliver it if the connection still works.
			for ev := range em.Events() {
				if writer.WriteEvent(ev) != nil {
					break
				}
				if ev.Terminal() {
					delivered := ev
					terminal = &delivered
				}
			}
			return terminal
		}
	}
}
