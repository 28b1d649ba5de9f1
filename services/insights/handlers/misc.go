// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthCheck serves GET /health for load balancer probes.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ServiceStatus reports the build and configuration a deployment is
// running, for the ops dashboard.
type ServiceStatus struct {
	Service         string `json:"service"`
	Version         string `json:"version"`
	GenerationModel string `json:"generation_model"`
	AnalysisModel   string `json:"analysis_model"`
	FallbackModel   string `json:"fallback_model"`
}

// StatusHandler serves GET /v1/status with the given static status.
func StatusHandler(status ServiceStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, status)
	}
}
