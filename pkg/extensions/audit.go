// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security-relevant event for compliance logging.
//
// This struct captures the essential information needed for security
// audits, compliance reporting (GDPR, SOC2), and incident investigation.
//
// # Event Categories
//
// Events are categorized by type for filtering and alerting:
//   - Authentication: "auth.failed"
//   - Authorization: "authz.denied"
//   - Analysis: "analyze.request", "analyze.blocked"
//
// # Compliance Fields
//
// For regulatory compliance, always populate:
//   - SubjectID: Required for GDPR right-to-know requests
//   - Timestamp: Required for audit trail integrity
//   - ResourceType/ResourceID: Required for data lineage
type AuditEvent struct {
	// EventType categorizes the event for filtering and alerting.
	// Format: "category.action" (e.g., "authz.denied", "analyze.request")
	EventType string

	// Timestamp is when the event occurred (always UTC).
	// If zero, implementations set it to time.Now().UTC().
	Timestamp time.Time

	// SubjectID identifies who performed the action.
	// Use "system" for automated actions, "anonymous" if unknown.
	SubjectID string

	// Action describes what operation was attempted.
	Action string

	// ResourceType is the category of resource involved.
	// Examples: "store", "analysis", "session"
	ResourceType string

	// ResourceID is the specific resource instance (optional).
	ResourceID string

	// Outcome indicates the result of the action.
	// Values: "success", "failure", "blocked", "error"
	Outcome string

	// Metadata holds additional event-specific data, such as the
	// failure kind, request ID, pinned store IDs, or model spend.
	Metadata map[string]any
}

// AuditLogger records security-relevant events for compliance and
// analysis.
//
// Implementations must be safe for concurrent use. Log should return
// quickly; buffer and flush asynchronously when persistence is slow.
//
// # Local Behavior
//
// NopAuditLogger discards all events. This is appropriate for local
// single-user deployments where audit trails aren't required.
// SlogAuditLogger writes events to the structured log, which suffices
// when log aggregation already provides retention.
//
// # Enterprise Implementation
//
// Hosted deployments send events to SIEM systems or compliance
// databases behind this interface.
type AuditLogger interface {
	// Log records a security-relevant event. Implementations set
	// Timestamp if zero and return quickly.
	Log(ctx context.Context, event AuditEvent) error

	// Flush ensures all buffered events are persisted. Call before
	// shutdown to prevent event loss. Sync implementations no-op.
	Flush(ctx context.Context) error
}

// NopAuditLogger discards all events without recording them.
//
// Thread-safe: this implementation has no mutable state.
type NopAuditLogger struct{}

// Log discards the event without recording it.
func (l *NopAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	return nil
}

// Flush is a no-op since nothing is buffered.
func (l *NopAuditLogger) Flush(ctx context.Context) error {
	return nil
}

var _ AuditLogger = (*NopAuditLogger)(nil)

// SlogAuditLogger writes audit events to a structured logger under the
// "audit" message, one log record per event.
//
// Thread-safe: slog handlers are safe for concurrent use.
type SlogAuditLogger struct {
	logger *slog.Logger
}

// NewSlogAuditLogger creates an audit logger backed by the given
// slog.Logger. A nil logger falls back to slog.Default().
func NewSlogAuditLogger(logger *slog.Logger) *SlogAuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAuditLogger{logger: logger}
}

// Log writes the event as one structured log record.
func (l *SlogAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	attrs := []any{
		"event_type", event.EventType,
		"subject_id", event.SubjectID,
		"action", event.Action,
		"outcome", event.Outcome,
		"timestamp", event.Timestamp.Format(time.RFC3339Nano),
	}
	if event.ResourceType != "" {
		attrs = append(attrs, "resource_type", event.ResourceType)
	}
	if event.ResourceID != "" {
		attrs = append(attrs, "resource_id", event.ResourceID)
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, k, v)
	}
	l.logger.InfoContext(ctx, "audit", attrs...)
	return nil
}

// Flush is a no-op; slog writes synchronously.
func (l *SlogAuditLogger) Flush(ctx context.Context) error {
	return nil
}

var _ AuditLogger = (*SlogAuditLogger)(nil)
