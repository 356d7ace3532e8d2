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

	"github.com/AleutianAI/InitiativeHub/pkg/extensions"
	"github.com/AleutianAI/InitiativeHub/services/assistant/middleware"
)

// skillsRequest replaces a session's active skill set.
type skillsRequest struct {
	Skills []string `json:"skills" binding:"required,min=1,dive,oneof=initiatives goals analytics social"`
}

// GetSessionContext returns the session's recent tool calls and skills.
func GetSessionContext(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, ok := sessionParam(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, deps.Sessions.Get(sessionID))
	}
}

// SetSessionSkills replaces the session's active skill set, narrowing or
// widening the tool surface its future runs see.
func SetSessionSkills(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req skillsRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid skills payload"})
			return
		}

		sessionID, ok := sessionParam(c)
		if !ok {
			return
		}
		deps.Sessions.SetSkills(sessionID, req.Skills)
		deps.audit(c.Request.Context(), extensions.AuditEvent{
			EventType:  "session.skills",
			UserID:     middleware.CallerID(c),
			ResourceID: sessionID,
			Outcome:    "success",
			Metadata:   map[string]any{"skills": req.Skills},
		})
		c.JSON(http.StatusOK, gin.H{
			"session_id": sessionID,
			"skills":     req.Skills,
		})
	}
}

// DeleteSession evicts a session's context. Admin-only; regular callers
// let the TTL janitor handle it.
func DeleteSession(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, ok := sessionParam(c)
		if !ok {
			return
		}
		info := middleware.GetAuthInfo(c)
		if info == nil || !info.HasRole("admin") {
			deps.audit(c.Request.Context(), extensions.AuditEvent{
				EventType:  "session.delete",
				UserID:     middleware.CallerID(c),
				ResourceID: sessionID,
				Outcome:    "denied",
			})
			c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}

		deps.Sessions.Delete(sessionID)
		deps.audit(c.Request.Context(), extensions.AuditEvent{
			EventType:  "session.delete",
			UserID:     info.UserID,
			ResourceID: sessionID,
			Outcome:    "success",
		})
		c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "deleted": true})
	}
}
