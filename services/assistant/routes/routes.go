// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/InitiativeHub/pkg/extensions"
	"github.com/AleutianAI/InitiativeHub/services/assistant/handlers"
	"github.com/AleutianAI/InitiativeHub/services/assistant/middleware"
)

// SetupRoutes wires the assistant API onto the router.
func SetupRoutes(router *gin.Engine, deps *handlers.Deps, authProvider extensions.AuthProvider) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.Readiness(deps))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(authProvider))
	{
		v1.POST("/ask", handlers.HandleAsk(deps))
		v1.POST("/ask/stream", handlers.HandleAskStream(deps))
		v1.GET("/ask/ws", handlers.HandleAskWebSocket(deps))
		v1.POST("/runs/cancel", handlers.HandleCancel(deps))
		v1.GET("/runs/:runId", handlers.GetArchivedRun(deps))
		v1.GET("/providers", handlers.ListProviders(deps))

		// Session administration routes
		sessions := v1.Group("/sessions")
		{
			sessions.GET("/:sessionId/context", handlers.GetSessionContext(deps))
			sessions.PUT("/:sessionId/skills", handlers.SetSessionSkills(deps))
			sessions.GET("/:sessionId/runs", handlers.ListSessionRuns(deps))
			sessions.GET("/:sessionId/active", handlers.ListActiveRuns(deps))
			sessions.DELETE("/:sessionId", handlers.DeleteSession(deps))
		}
	}
}
