// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Streaming event types for the SSE analysis endpoint.
//
// A stream is a sequence of progress events followed by exactly one
// terminal event (complete or error). Consumers can rely on the terminal
// event always arriving, and on nothing arriving after it.
package datatypes

// EventType identifies a streaming event.
type EventType string

const (
	// EventStatus reports pipeline progress ("resolving access",
	// "generating query", ...). Zero or more per stream.
	EventStatus EventType = "status"

	// EventSQL carries the validated SQL once, before execution.
	EventSQL EventType = "sql"

	// EventQueryComplete reports the row count after execution.
	EventQueryComplete EventType = "query_complete"

	// EventAnalysisChunk carries one incremental piece of analyst
	// output. Zero or more per stream.
	EventAnalysisChunk EventType = "analysis_chunk"

	// EventComplete is the success terminal event, carrying the full
	// response metadata including cost.
	EventComplete EventType = "complete"

	// EventError is the failure terminal event.
	EventError EventType = "error"
)

// StreamEvent is the typed union flowing from the pipeline to the SSE
// writer. Exactly one field group is populated per Type; the zero values
// of the rest are omitted on the wire.
type StreamEvent struct {
	Type EventType `json:"type"`

	// ID and CreatedAt are assigned by the SSE writer at delivery
	// time, for client-side ordering and deduplication.
	ID        string `json:"id,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`

	// Stage and Message accompany EventStatus.
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message,omitempty"`

	// SQL accompanies EventSQL.
	SQL string `json:"sql,omitempty"`

	// RowCount accompanies EventQueryComplete.
	RowCount int `json:"row_count,omitempty"`

	// Chunk accompanies EventAnalysisChunk.
	Chunk string `json:"chunk,omitempty"`

	// Metadata accompanies EventComplete.
	Metadata *AnalyzeMetadata `json:"metadata,omitempty"`

	// Error fields accompany EventError. Kind uses the same taxonomy
	// as the buffered endpoint.
	Kind               string       `json:"kind,omitempty"`
	Error              string       `json:"error,omitempty"`
	FailedSQL          string       `json:"failed_sql,omitempty"`
	UnauthorizedStores []string     `json:"unauthorized_stores,omitempty"`
	Cost               *CostSummary `json:"cost,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e StreamEvent) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// StatusEvent builds a progress event.
func StatusEvent(stage, message string) StreamEvent {
	return StreamEvent{Type: EventStatus, Stage: stage, Message: message}
}

// SQLEvent builds the generated-SQL event.
func SQLEvent(sql string) StreamEvent {
	return StreamEvent{Type: EventSQL, SQL: sql}
}

// QueryCompleteEvent builds the post-execution event.
func QueryCompleteEvent(rowCount int) StreamEvent {
	return StreamEvent{Type: EventQueryComplete, RowCount: rowCount}
}

// ChunkEvent builds an incremental analysis event.
func ChunkEvent(chunk string) StreamEvent {
	return StreamEvent{Type: EventAnalysisChunk, Chunk: chunk}
}

// CompleteEvent builds the success terminal event.
func CompleteEvent(meta *AnalyzeMetadata) StreamEvent {
	return StreamEvent{Type: EventComplete, Metadata: meta, Cost: meta.Cost}
}

// ErrorEvent builds the failure terminal event.
func ErrorEvent(kind, message string) StreamEvent {
	return StreamEvent{Type: EventError, Kind: kind, Error: message}
}
