// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizelai/insights/pkg/extensions"
	"github.com/wizelai/insights/services/analytics"
	"github.com/wizelai/insights/services/directory"
	"github.com/wizelai/insights/services/insights/access"
	"github.com/wizelai/insights/services/insights/datatypes"
	"github.com/wizelai/insights/services/insights/middleware"
	"github.com/wizelai/insights/services/insights/pipeline"
	"github.com/wizelai/insights/services/llm"
	"github.com/wizelai/insights/services/sanitizer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =============================================================================
// Fakes
// =============================================================================

const handlerTestSQL = "SELECT campaign_name, recipients FROM campaign_statistics " +
	"WHERE klaviyo_public_id IN ('kl-candles') LIMIT 100"

// scriptedChat returns the canned SQL on the first call and the canned
// narrative on every later call.
type scriptedChat struct {
	calls int
}

func (s *scriptedChat) reply(model string) *llm.ChatResponse {
	s.calls++
	content := handlerTestSQL
	if s.calls > 1 {
		content = "Campaigns look healthy."
	}
	return &llm.ChatResponse{
		Content: content,
		Model:   model,
		Usage:   llm.Usage{InputTokens: 10, OutputTokens: 5},
	}
}

func (s *scriptedChat) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return s.reply(req.Model), nil
}

func (s *scriptedChat) ChatStream(_ context.Context, req llm.ChatRequest, handler llm.StreamHandler) (*llm.ChatResponse, error) {
	resp := s.reply(req.Model)
	for _, word := range strings.SplitAfter(resp.Content, " ") {
		if err := handler(word); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

type fixedExec struct{}

func (fixedExec) Query(_ context.Context, _ string) (*analytics.QueryResult, error) {
	return &analytics.QueryResult{
		Rows:     []analytics.Row{{"campaign_name": "Spring Sale", "recipients": 1200.0}},
		RowCount: 1,
		Elapsed:  8 * time.Millisecond,
	}, nil
}

type oneContractDirectory struct{}

func (oneContractDirectory) SeatsForPrincipal(_ context.Context, subjectID string) ([]directory.Seat, error) {
	if subjectID != "analyst" {
		return nil, nil
	}
	return []directory.Seat{{
		SeatID:      "seat-1",
		SubjectID:   "analyst",
		ContractID:  "c-1",
		Permissions: []string{directory.PermissionAnalytics},
	}}, nil
}

func (oneContractDirectory) StoresByContract(_ context.Context, contractID string) ([]directory.Store, error) {
	if contractID != "c-1" {
		return nil, nil
	}
	return []directory.Store{
		{PublicID: "s-candles", Name: "Candle Co", ContractID: "c-1", AnalyticsID: "kl-candles"},
	}, nil
}

func (d oneContractDirectory) IntegratedStores(ctx context.Context) ([]directory.Store, error) {
	return d.StoresByContract(ctx, "c-1")
}

// =============================================================================
// Helpers
// =============================================================================

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()

	san, err := sanitizer.New(nil)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := access.NewResolver(oneContractDirectory{}, logger)
	orch := pipeline.NewOrchestrator(san, resolver, &scriptedChat{}, fixedExec{}, nil, logger, pipeline.Config{})
	h := NewAnalyzeHandler(orch, nil, nil, logger)

	provider := extensions.NewStaticAuthProvider(map[string]extensions.AuthInfo{
		"analyst-token": {SubjectID: "analyst"},
		"nobody-token":  {SubjectID: "nobody"},
	})

	r := gin.New()
	auth := middleware.AuthMiddleware(provider)
	r.POST("/v1/analyze", auth, h.HandleAnalyze)
	r.POST("/v1/analyze/stream", auth, h.HandleAnalyzeStream)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

// =============================================================================
// Buffered Endpoint
// =============================================================================

func TestHandleAnalyzeSuccess(t *testing.T) {
	t.Parallel()

	r := testRouter(t)
	w := postJSON(t, r, "/v1/analyze", "analyst-token",
		`{"question": "How are my campaigns doing?", "store_ids": ["s-candles"]}`)

	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Campaigns look healthy.", resp.Analysis)
	require.NotNil(t, resp.Metadata)
	assert.Equal(t, "single_source", resp.Metadata.Mode)
	assert.Equal(t, 1, resp.Metadata.RowCount)
	require.NotNil(t, resp.Metadata.Cost)
	assert.Equal(t, 2, resp.Metadata.Cost.Entries)
	assert.NotEmpty(t, resp.ResponseID)
}

func TestHandleAnalyzeUnauthorizedStore(t *testing.T) {
	t.Parallel()

	r := testRouter(t)
	w := postJSON(t, r, "/v1/analyze", "analyst-token",
		`{"question": "How are my campaigns doing?", "store_ids": ["s-other"]}`)

	require.Equal(t, http.StatusForbidden, w.Code)

	var resp datatypes.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "unauthorized", resp.Kind)
	assert.Equal(t, []string{"s-other"}, resp.UnauthorizedStores)
	require.NotNil(t, resp.Cost)
	assert.Zero(t, resp.Cost.Entries)
}

func TestHandleAnalyzeNoDataSource(t *testing.T) {
	t.Parallel()

	r := testRouter(t)
	w := postJSON(t, r, "/v1/analyze", "nobody-token",
		`{"question": "How are my campaigns doing?"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp datatypes.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "no_data_source", resp.Kind)
}

func TestHandleAnalyzeValidation(t *testing.T) {
	t.Parallel()

	r := testRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"missing question", `{"store_ids": ["s-candles"]}`},
		{"oversized question", `{"question": "` + strings.Repeat("a", datatypes.MaxQuestionBytes+1) + `"}`},
		{"bad expertise", `{"question": "hi", "expertise_level": "wizard"}`},
		{"not json", `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, r, "/v1/analyze", "analyst-token", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandleAnalyzeRequiresAuth(t *testing.T) {
	t.Parallel()

	r := testRouter(t)
	w := postJSON(t, r, "/v1/analyze", "", `{"question": "hi"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// =============================================================================
// Streaming Endpoint
// =============================================================================

func TestHandleAnalyzeStreamDeliversTerminalEvent(t *testing.T) {
	t.Parallel()

	r := testRouter(t)
	w := postJSON(t, r, "/v1/analyze/stream", "analyst-token",
		`{"question": "How are my campaigns doing?", "store_ids": ["s-candles"]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	body := w.Body.String()
	assert.Contains(t, body, "event: status")
	assert.Contains(t, body, "event: sql")
	assert.Contains(t, body, "event: query_complete")
	assert.Contains(t, body, "event: analysis_chunk")

	// Exactly one terminal event, and it is the last event in the body.
	assert.Equal(t, 1, strings.Count(body, "event: complete"))
	assert.Zero(t, strings.Count(body, "event: error"))
	frames := strings.Split(strings.TrimSpace(body), "\n\n")
	assert.True(t, strings.HasPrefix(frames[len(frames)-1], "event: complete"))
}

func TestHandleAnalyzeStreamErrorsInBand(t *testing.T) {
	t.Parallel()

	r := testRouter(t)
	w := postJSON(t, r, "/v1/analyze/stream", "analyst-token",
		`{"question": "How are my campaigns doing?", "store_ids": ["s-other"]}`)

	// Stream failures travel in the terminal event, not the HTTP status.
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, 1, strings.Count(body, "event: error"))
	assert.Contains(t, body, `"kind":"unauthorized"`)
	assert.Contains(t, body, `"unauthorized_stores":["s-other"]`)
}

// =============================================================================
// Misc Endpoints
// =============================================================================

func TestHealthCheckReturnsOK(t *testing.T) {
	t.Parallel()

	router := gin.New()
	router.GET("/health", HealthCheck)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
}

func TestStatusHandler(t *testing.T) {
	t.Parallel()

	router := gin.New()
	router.GET("/v1/status", StatusHandler(ServiceStatus{
		Service:         "insights",
		Version:         "1.2.0",
		GenerationModel: llm.DefaultGenerationModel,
	}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var status ServiceStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "insights", status.Service)
	assert.Equal(t, llm.DefaultGenerationModel, status.GenerationModel)
}
