// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/wizelai/insights/pkg/extensions"
	"github.com/wizelai/insights/services/insights/handlers"
	"github.com/wizelai/insights/services/insights/middleware"
)

// SetupRoutes wires the insights endpoints onto the router.
//
// /health and /metrics are unauthenticated for probes and scrapers;
// everything under /v1 requires a valid principal.
func SetupRoutes(router *gin.Engine, analyze *handlers.AnalyzeHandler,
	authProvider extensions.AuthProvider, status handlers.ServiceStatus) {

	router.Use(otelgin.Middleware("insights"))

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(authProvider))
	{
		v1.GET("/status", handlers.StatusHandler(status))
		v1.POST("/analyze", analyze.HandleAnalyze)
		v1.POST("/analyze/stream", analyze.HandleAnalyzeStream)
	}
}
