// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pipeline orchestrates the two-stage analysis: SQL generation
// on a fast model, guarded execution, then narrative analysis on a
// capable model with one deterministic fallback.
package pipeline

import "net/http"

// Kind is the stable failure taxonomy shared by the buffered envelope
// and the streaming error event. Clients branch on Kind, never on
// message text.
type Kind string

const (
	// KindUnauthorized: the request named stores outside the
	// principal's accessible set.
	KindUnauthorized Kind = "unauthorized"

	// KindNoDataSource: the principal has access to zero integrated
	// stores. Distinct from unauthorized: there is nothing to query,
	// not a denied request.
	KindNoDataSource Kind = "no_data_source"

	// KindGenerationFailed: the fast model could not produce a valid
	// query, or what it produced failed the SQL guard.
	KindGenerationFailed Kind = "generation_failed"

	// KindExecutionFailed: the analytics store rejected or failed the
	// validated query. The failing SQL is attached.
	KindExecutionFailed Kind = "execution_failed"

	// KindAnalysisFailed: both the primary analyst model and its
	// fallback failed. Query rows are still attached to the response.
	KindAnalysisFailed Kind = "analysis_failed"

	// KindInternal: infrastructure failure outside the taxonomy.
	KindInternal Kind = "internal_error"
)

// StageError is the Result-style failure a pipeline stage returns.
// Stages return (*T, *StageError); a nil StageError means success.
type StageError struct {
	Kind    Kind
	Message string

	// SQL carries the failing statement for execution failures.
	SQL string

	// UnauthorizedStores names the offending IDs for authorization
	// failures.
	UnauthorizedStores []string

	// Rows carries the already-fetched result set when analysis failed
	// after a successful query, so callers can still surface the data.
	Rows []map[string]any

	// Err is the underlying cause, when one exists.
	Err error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *StageError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps a failure kind to the buffered endpoint's status
// code. The streaming endpoint always answers 200 and carries the kind
// in the terminal error event instead.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthorized:
		return http.StatusForbidden
	case KindNoDataSource:
		return http.StatusBadRequest
	case KindGenerationFailed, KindExecutionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func stageErr(kind Kind, message string, err error) *StageError {
	return &StageError{Kind: kind, Message: message, Err: err}
}
