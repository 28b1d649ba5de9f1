// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm provides the model-provider transport for the insights
// pipeline.
//
// The pipeline depends only on the ChatClient interface; the OpenRouter
// implementation in openrouter.go is the production transport. Tests
// substitute in-memory fakes.
package llm

import "context"

// Message is one turn of a chat conversation.
type Message struct {
	// Role is "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// ChatRequest describes one model invocation.
type ChatRequest struct {
	// Model is the provider model identifier, e.g.
	// "anthropic/claude-sonnet-4".
	Model string

	// Messages is the conversation, system prompt first.
	Messages []Message

	// Temperature controls sampling randomness. SQL generation runs
	// cold (0.1); analysis runs warmer (0.7).
	Temperature float32

	// MaxTokens bounds the response length.
	MaxTokens int
}

// Usage reports token consumption for one invocation. When the
// provider omits usage data the transport estimates it from text
// length, so cost tracking always has numbers to work with.
type Usage struct {
	InputTokens  int
	OutputTokens int

	// Estimated marks usage derived from text length rather than
	// provider-reported counts.
	Estimated bool
}

// ChatResponse is the result of one model invocation.
type ChatResponse struct {
	// Content is the full response text.
	Content string

	// Model is the model that actually served the request, which may
	// differ from the requested model when the provider routed.
	Model string

	// Usage is the token consumption for this invocation.
	Usage Usage
}

// StreamHandler receives incremental response chunks. Returning an
// error aborts the stream; the transport surfaces that error from
// ChatStream.
type StreamHandler func(chunk string) error

// ChatClient is the model transport the pipeline depends on.
//
// Implementations must be safe for concurrent use and must respect
// context cancellation: a canceled ctx aborts the in-flight request.
type ChatClient interface {
	// Chat performs a buffered invocation.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// ChatStream performs a streaming invocation, delivering chunks
	// to handler as they arrive. The returned ChatResponse carries
	// the concatenated content and final usage.
	ChatStream(ctx context.Context, req ChatRequest, handler StreamHandler) (*ChatResponse, error)
}
