// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// Default model identifiers on OpenRouter. The generation stage runs on
// the fast tier; the analysis stage on the capable tier with the
// deterministic fallback as its second attempt.
const (
	DefaultGenerationModel = "anthropic/claude-3.5-haiku"
	DefaultAnalysisModel   = "anthropic/claude-sonnet-4"
	DefaultFallbackModel   = "google/gemini-2.5-pro"
)

// defaultBaseURL is the OpenRouter OpenAI-compatible endpoint.
const defaultBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterClient implements ChatClient against the OpenRouter API,
// which speaks the OpenAI wire format for every hosted model family.
//
// # Thread Safety
//
// Safe for concurrent use; the underlying client is stateless per call.
type OpenRouterClient struct {
	client *openai.Client
}

// NewOpenRouterClient creates a client for the given API key and base
// URL. Empty arguments fall back to the OPENROUTER_API_KEY and
// OPENROUTER_BASE_URL environment variables, then to the public
// endpoint.
func NewOpenRouterClient(apiKey, baseURL string) (*OpenRouterClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("openrouter: missing API key")
	}
	if baseURL == "" {
		baseURL = os.Getenv("OPENROUTER_BASE_URL")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL
	return &OpenRouterClient{client: openai.NewClientWithConfig(config)}, nil
}

// Chat performs a buffered invocation.
func (c *OpenRouterClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	resp, err := c.client.CreateChatCompletion(ctx, buildRequest(req, false))
	if err != nil {
		return nil, fmt.Errorf("openrouter chat (%s): %w", req.Model, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openrouter chat (%s): empty choices", req.Model)
	}

	content := resp.Choices[0].Message.Content
	out := &ChatResponse{
		Content: content,
		Model:   servedModel(resp.Model, req.Model),
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
	if out.Usage.InputTokens == 0 && out.Usage.OutputTokens == 0 {
		out.Usage = estimateUsage(req, content)
	}
	return out, nil
}

// ChatStream performs a streaming invocation. Chunks reach the handler
// in arrival order; a handler error aborts the stream and is returned.
func (c *OpenRouterClient) ChatStream(ctx context.Context, req ChatRequest, handler StreamHandler) (*ChatResponse, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, buildRequest(req, true))
	if err != nil {
		return nil, fmt.Errorf("openrouter stream (%s): %w", req.Model, err)
	}
	defer stream.Close()

	out := &ChatResponse{Model: req.Model}
	var content []byte
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("openrouter stream (%s): %w", req.Model, err)
		}
		if chunk.Model != "" {
			out.Model = chunk.Model
		}
		if chunk.Usage != nil {
			out.Usage.InputTokens = chunk.Usage.PromptTokens
			out.Usage.OutputTokens = chunk.Usage.CompletionTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		content = append(content, delta...)
		if err := handler(delta); err != nil {
			return nil, fmt.Errorf("stream handler: %w", err)
		}
	}

	out.Content = string(content)
	if out.Usage.InputTokens == 0 && out.Usage.OutputTokens == 0 {
		out.Usage = estimateUsage(req, out.Content)
	}
	return out, nil
}

func buildRequest(req ChatRequest, stream bool) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	out := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
	if stream {
		out.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	}
	return out
}

func servedModel(reported, requested string) string {
	if reported != "" {
		return reported
	}
	return requested
}

// estimateUsage approximates token counts when the provider omits
// usage. Four bytes per token keeps cost tracking populated.
func estimateUsage(req ChatRequest, content string) Usage {
	var promptBytes int
	for _, m := range req.Messages {
		promptBytes += len(m.Content)
	}
	return Usage{
		InputTokens:  promptBytes / 4,
		OutputTokens: len(content) / 4,
		Estimated:    true,
	}
}

// Compile-time interface compliance check.
var _ ChatClient = (*OpenRouterClient)(nil)
