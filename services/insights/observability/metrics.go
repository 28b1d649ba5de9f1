// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the insights service.
//
// # Description
//
// This package implements Prometheus metrics for monitoring the analysis
// pipeline. Metrics include:
//   - Request counters (by mode, outcome)
//   - Token usage (input/output tokens by model)
//   - Stage latency histograms (generation, execution, analysis)
//   - Active stream gauges
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "wizel"

// Subsystem for pipeline metrics
const insightsSubsystem = "insights"

// Stage names for latency histograms.
const (
	StageGeneration = "generation"
	StageExecution  = "execution"
	StageAnalysis   = "analysis"
)

// PipelineMetrics holds all Prometheus metrics for analysis requests.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring pipeline
// performance and LLM spend. Initialize once at startup via InitMetrics().
//
// # Thread Safety
//
// All operations are thread-safe.
type PipelineMetrics struct {
	// RequestsTotal counts analysis requests by mode and outcome.
	// Labels: mode (single_source, portfolio), outcome (success or a
	// failure kind such as unauthorized, generation_failed, ...)
	RequestsTotal *prometheus.CounterVec

	// TokensTotal counts tokens processed by direction and model.
	// Labels: direction (input, output), model
	TokensTotal *prometheus.CounterVec

	// StageDurationSeconds measures per-stage latency.
	// Labels: stage (generation, execution, analysis)
	StageDurationSeconds *prometheus.HistogramVec

	// RequestDurationSeconds measures total request duration.
	// Labels: mode, outcome
	RequestDurationSeconds *prometheus.HistogramVec

	// CostUSDTotal accumulates estimated LLM spend in USD.
	// Labels: model
	CostUSDTotal *prometheus.CounterVec

	// FallbacksTotal counts analysis attempts that fell back to the
	// deterministic fallback model.
	FallbacksTotal prometheus.Counter

	// ActiveStreams tracks currently open SSE connections.
	ActiveStreams prometheus.Gauge

	// ClientDisconnectsTotal counts client disconnections during streaming.
	ClientDisconnectsTotal prometheus.Counter

	// RowsReturned measures result set sizes from the analytics store.
	RowsReturned prometheus.Histogram
}

// DefaultMetrics is the singleton instance of PipelineMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *PipelineMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once at
// application startup.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *PipelineMetrics {
	DefaultMetrics = &PipelineMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: insightsSubsystem,
				Name:      "requests_total",
				Help:      "Total number of analysis requests by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),

		TokensTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: insightsSubsystem,
				Name:      "tokens_total",
				Help:      "Total tokens processed by direction and model",
			},
			[]string{"direction", "model"},
		),

		StageDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: insightsSubsystem,
				Name:      "stage_duration_seconds",
				Help:      "Pipeline stage latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0},
			},
			[]string{"stage"},
		),

		RequestDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: insightsSubsystem,
				Name:      "request_duration_seconds",
				Help:      "Total analysis request duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"mode", "outcome"},
		),

		CostUSDTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: insightsSubsystem,
				Name:      "cost_usd_total",
				Help:      "Estimated LLM spend in USD by model",
			},
			[]string{"model"},
		),

		FallbacksTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: insightsSubsystem,
				Name:      "analysis_fallbacks_total",
				Help:      "Total analysis attempts served by the fallback model",
			},
		),

		ActiveStreams: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: insightsSubsystem,
				Name:      "active_streams",
				Help:      "Number of currently open SSE connections",
			},
		),

		ClientDisconnectsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: insightsSubsystem,
				Name:      "client_disconnects_total",
				Help:      "Total client disconnections during streaming",
			},
		),

		RowsReturned: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: insightsSubsystem,
				Name:      "rows_returned",
				Help:      "Result set sizes returned by the analytics store",
				Buckets:   []float64{0, 1, 10, 50, 100, 250, 500, 1000},
			},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRequest records a completed analysis request.
//
// # Inputs
//
//   - mode: The analysis mode that served the request.
//   - outcome: "success" or the failure kind.
//   - elapsed: Total wall-clock duration of the request.
func (m *PipelineMetrics) RecordRequest(mode, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(mode, outcome).Inc()
	m.RequestDurationSeconds.WithLabelValues(mode, outcome).Observe(elapsed.Seconds())
}

// RecordStage records the latency of a single pipeline stage.
func (m *PipelineMetrics) RecordStage(stage string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.StageDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// RecordTokens records token usage for a single model call.
func (m *PipelineMetrics) RecordTokens(model string, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.TokensTotal.WithLabelValues("input", model).Add(float64(inputTokens))
	m.TokensTotal.WithLabelValues("output", model).Add(float64(outputTokens))
}

// RecordCost records the estimated USD spend of a single model call.
func (m *PipelineMetrics) RecordCost(model string, usd float64) {
	if m == nil {
		return
	}
	m.CostUSDTotal.WithLabelValues(model).Add(usd)
}

// RecordFallback records an analysis attempt served by the fallback model.
func (m *PipelineMetrics) RecordFallback() {
	if m == nil {
		return
	}
	m.FallbacksTotal.Inc()
}

// RecordRows records the size of a result set.
func (m *PipelineMetrics) RecordRows(n int) {
	if m == nil {
		return
	}
	m.RowsReturned.Observe(float64(n))
}

// StreamOpened increments the active stream gauge.
func (m *PipelineMetrics) StreamOpened() {
	if m == nil {
		return
	}
	m.ActiveStreams.Inc()
}

// StreamClosed decrements the active stream gauge.
func (m *PipelineMetrics) StreamClosed() {
	if m == nil {
		return
	}
	m.ActiveStreams.Dec()
}

// RecordClientDisconnect records a client that went away mid-stream.
func (m *PipelineMetrics) RecordClientDisconnect() {
	if m == nil {
		return
	}
	m.ClientDisconnectsTotal.Inc()
}
