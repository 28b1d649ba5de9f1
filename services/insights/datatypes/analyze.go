// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the insights service.
//
// This file contains request and response types for the analysis
// endpoints. For streaming event types, see events.go.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// =============================================================================
// Limits
// =============================================================================

const (
	// MaxQuestionBytes is the maximum size of a question. Byte length
	// (not rune count) to bound memory before sanitization runs.
	MaxQuestionBytes = 8 * 1024 // 8KB

	// MaxRequestedStores is the maximum number of explicitly pinned
	// stores in a single request.
	MaxRequestedStores = 50
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// analyzeValidate is the validator instance for analysis datatypes.
// Initialized in init() with custom validators.
var analyzeValidate *validator.Validate

func init() {
	analyzeValidate = validator.New()

	_ = analyzeValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes checks that a string field does not exceed
// MaxQuestionBytes. Byte length, not rune count, so multi-byte payloads
// cannot slip past the limit.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxQuestionBytes
}

// =============================================================================
// Analysis Request
// =============================================================================

// AnalyzeRequest represents an analytics question posed by a principal.
//
// # Description
//
// AnalyzeRequest carries the natural-language question plus optional
// source pinning for the POST /v1/analyze and /v1/analyze/stream
// endpoints. Every request includes a unique ID and timestamp for audit
// trails.
//
// # Fields
//
//   - RequestID: Required after EnsureDefaults. Unique identifier (UUID v4)
//     used for tracing and log correlation.
//   - Timestamp: Required after EnsureDefaults. Unix milliseconds (UTC).
//   - Question: Required. The natural-language question, max 8KB. The
//     question is sanitized server-side before any model sees it.
//   - StoreIDs: Optional. Public store identifiers to pin the analysis
//     to. When empty, the analysis covers every store the principal can
//     access. Requesting a store outside the accessible set fails the
//     whole request.
//   - ExpertiseLevel: Optional. Tunes the analyst voice. One of
//     "beginner", "intermediate", "expert". Default: "intermediate".
//
// # Validation
//
// Uses go-playground/validator:
//   - RequestID: required, must be valid UUID v4
//   - Timestamp: required, must be > 0
//   - Question: required, max 8192 bytes
//   - StoreIDs: max 50 elements
//   - ExpertiseLevel: one of the three levels or empty
type AnalyzeRequest struct {
	RequestID      string   `json:"request_id" validate:"required,uuid4"`
	Timestamp      int64    `json:"timestamp" validate:"required,gt=0"`
	Question       string   `json:"question" validate:"required,maxbytes"`
	StoreIDs       []string `json:"store_ids,omitempty" validate:"max=50,dive,min=1,max=128"`
	ExpertiseLevel string   `json:"expertise_level,omitempty" validate:"omitempty,oneof=beginner intermediate expert"`
}

// Validate validates the AnalyzeRequest fields using the validator tags
// and custom validators. Call after binding the JSON request.
func (r *AnalyzeRequest) Validate() error {
	return analyzeValidate.Struct(r)
}

// EnsureDefaults populates RequestID, Timestamp, and ExpertiseLevel when
// the client omitted them.
func (r *AnalyzeRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = uuid.NewString()
	}
	if r.Timestamp == 0 {
		r.Timestamp = time.Now().UnixMilli()
	}
	if r.ExpertiseLevel == "" {
		r.ExpertiseLevel = "intermediate"
	}
}

// =============================================================================
// Analysis Response
// =============================================================================

// AnalyzeResponse is the buffered-endpoint envelope.
//
// Success responses carry the analysis text and full metadata. Failure
// responses use ErrorResponse instead. Cost is attached even when the
// pipeline only partially succeeded upstream of the failure.
type AnalyzeResponse struct {
	ResponseID string           `json:"response_id"`
	RequestID  string           `json:"request_id"`
	Timestamp  int64            `json:"timestamp"`
	Success    bool             `json:"success"`
	Analysis   string           `json:"analysis"`
	Metadata   *AnalyzeMetadata `json:"metadata,omitempty"`
}

// AnalyzeMetadata describes how an analysis was produced.
//
// ExecutionTime is a human-readable duration string ("1842ms") matching
// what clients already render. SQL is included so analysts can audit
// what actually ran against their data.
type AnalyzeMetadata struct {
	Question      string       `json:"question"`
	Mode          string       `json:"mode"`
	StoreCount    int          `json:"store_count"`
	Stores        []string     `json:"stores"`
	TimeRangeDays int          `json:"time_range_days"`
	RowCount      int          `json:"row_count"`
	ExecutionTime string       `json:"execution_time"`
	SQL           string       `json:"sql,omitempty"`
	Tables        []string     `json:"tables,omitempty"`
	Warnings      []string     `json:"warnings,omitempty"`
	ModelUsed     string       `json:"model_used,omitempty"`
	UsedFallback  bool         `json:"used_fallback,omitempty"`
	Cost          *CostSummary `json:"cost,omitempty"`
}

// NewAnalyzeResponse creates a success envelope with generated
// ResponseID and Timestamp.
func NewAnalyzeResponse(requestID, analysis string, meta *AnalyzeMetadata) *AnalyzeResponse {
	return &AnalyzeResponse{
		ResponseID: uuid.NewString(),
		RequestID:  requestID,
		Timestamp:  time.Now().UnixMilli(),
		Success:    true,
		Analysis:   analysis,
		Metadata:   meta,
	}
}

// ErrorResponse is the buffered-endpoint failure envelope.
//
// Kind carries the stable failure taxonomy so clients can branch without
// string-matching messages. SQL is populated only for execution failures;
// UnauthorizedStores only for authorization failures.
type ErrorResponse struct {
	ResponseID         string           `json:"response_id"`
	RequestID          string           `json:"request_id,omitempty"`
	Timestamp          int64            `json:"timestamp"`
	Success            bool             `json:"success"`
	Error              string           `json:"error"`
	Kind               string           `json:"kind"`
	SQL                string           `json:"sql,omitempty"`
	UnauthorizedStores []string         `json:"unauthorized_stores,omitempty"`
	Rows               []map[string]any `json:"rows,omitempty"`
	Cost               *CostSummary     `json:"cost,omitempty"`
}

// NewErrorResponse creates a failure envelope with generated ResponseID
// and Timestamp.
func NewErrorResponse(requestID, kind, message string) *ErrorResponse {
	return &ErrorResponse{
		ResponseID: uuid.NewString(),
		RequestID:  requestID,
		Timestamp:  time.Now().UnixMilli(),
		Success:    false,
		Error:      message,
		Kind:       kind,
	}
}

// =============================================================================
// Cost Summary
// =============================================================================

// CostSummary aggregates the model spend for one request.
//
// Dollar amounts are computed from a static per-model pricing table at
// the moment of each call. Partial pipelines still report the spend that
// happened before the failure.
type CostSummary struct {
	TotalUSD     float64            `json:"total_usd"`
	InputTokens  int                `json:"input_tokens"`
	OutputTokens int                `json:"output_tokens"`
	ByModel      map[string]float64 `json:"by_model,omitempty"`
	ByTier       map[string]float64 `json:"by_tier,omitempty"`
	Entries      int                `json:"entries"`
}
