// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/wizelai/insights/pkg/extensions"
	"github.com/wizelai/insights/pkg/logging"
	"github.com/wizelai/insights/services/analytics"
	"github.com/wizelai/insights/services/directory"
	"github.com/wizelai/insights/services/insights/access"
	"github.com/wizelai/insights/services/insights/handlers"
	"github.com/wizelai/insights/services/insights/middleware"
	"github.com/wizelai/insights/services/insights/observability"
	"github.com/wizelai/insights/services/insights/pipeline"
	"github.com/wizelai/insights/services/insights/routes"
	"github.com/wizelai/insights/services/llm"
	"github.com/wizelai/insights/services/sanitizer"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const serviceVersion = "1.2.0"

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "wizel-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("insights-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// authProvider picks the auth mode from the environment. A signing
// secret selects JWT auth; without one the service runs open, for
// local development only.
func authProvider() (extensions.AuthProvider, error) {
	secret := os.Getenv("INSIGHTS_JWT_SECRET")
	if secret == "" {
		slog.Warn("INSIGHTS_JWT_SECRET not set, running without authentication (local mode)")
		return &extensions.NopAuthProvider{}, nil
	}
	return middleware.NewJWTAuthProvider([]byte(secret), os.Getenv("INSIGHTS_JWT_ISSUER"))
}

func main() {
	// Local development keeps its settings in .env; production injects
	// real environment variables and has no such file.
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded environment from .env")
	}

	port := os.Getenv("INSIGHTS_PORT")
	if port == "" {
		port = "12310"
	}

	wlog := logging.New(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("INSIGHTS_LOG_LEVEL")),
		LogDir:  os.Getenv("INSIGHTS_LOG_DIR"),
		Service: "insights",
		JSON:    true,
	})
	defer wlog.Close()
	logger := wlog.Slog()
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	metrics := observability.InitMetrics()

	chat, err := llm.NewOpenRouterClient(os.Getenv("OPENROUTER_API_KEY"), os.Getenv("OPENROUTER_BASE_URL"))
	if err != nil {
		log.Fatalf("failed to initialize LLM client: %v", err)
	}

	exec := analytics.NewClient(
		os.Getenv("CLICKHOUSE_URL"),
		os.Getenv("CLICKHOUSE_DATABASE"),
		os.Getenv("CLICKHOUSE_USER"),
		os.Getenv("CLICKHOUSE_PASSWORD"),
	)

	dir := directory.NewClient(
		os.Getenv("DIRECTORY_SERVICE_URL"),
		os.Getenv("DIRECTORY_SERVICE_KEY"),
	)
	resolver := access.NewResolver(dir, logger)

	san, err := sanitizer.New(nil, sanitizer.WithLogger(logger))
	if err != nil {
		log.Fatalf("failed to compile sanitizer rules: %v", err)
	}

	provider, err := authProvider()
	if err != nil {
		log.Fatalf("failed to configure authentication: %v", err)
	}

	cfg := pipeline.Config{
		GenerationModel: os.Getenv("INSIGHTS_GENERATION_MODEL"),
		AnalysisModel:   os.Getenv("INSIGHTS_ANALYSIS_MODEL"),
		FallbackModel:   os.Getenv("INSIGHTS_FALLBACK_MODEL"),
	}
	cfg.EnsureDefaults()

	orch := pipeline.NewOrchestrator(san, resolver, chat, exec, metrics, logger, cfg)
	auditor := extensions.NewSlogAuditLogger(logger)
	analyzeHandler := handlers.NewAnalyzeHandler(orch, metrics, auditor, logger)

	router := gin.Default()
	routes.SetupRoutes(router, analyzeHandler, provider, handlers.ServiceStatus{
		Service:         "insights",
		Version:         serviceVersion,
		GenerationModel: cfg.GenerationModel,
		AnalysisModel:   cfg.AnalysisModel,
		FallbackModel:   cfg.FallbackModel,
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		slog.Info("starting the insights server", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Block until SIGINT/SIGTERM, then drain in-flight streams.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}
