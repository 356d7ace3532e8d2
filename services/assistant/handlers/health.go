// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness reports whether the service can actually serve runs: at
// least one provider registered and available.
func Readiness(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var available int
		for _, d := range deps.Gateway.Descriptors() {
			if d.Available {
				available++
			}
		}
		if available == 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "degraded",
				"reason": "no providers available",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"providers": available,
		})
	}
}
