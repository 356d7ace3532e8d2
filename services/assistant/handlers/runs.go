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
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/InitiativeHub/pkg/validation"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/runlog"
)

// GetArchivedRun returns the full trace of a terminated run.
func GetArchivedRun(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Archive == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run archive disabled"})
			return
		}

		runID, err := validation.SanitizeID(c.Param("runId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}
		result, err := deps.Archive.Get(runID)
		if errors.Is(err, runlog.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no archived run with that id"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "archive lookup failed"})
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// ListSessionRuns returns the archived runs of one session, oldest
// first.
func ListSessionRuns(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Archive == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run archive disabled"})
			return
		}

		sessionID, ok := sessionParam(c)
		if !ok {
			return
		}
		results, err := deps.Archive.BySession(sessionID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "archive scan failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"session_id": sessionID,
			"runs":       results,
			"count":      len(results),
		})
	}
}

// ListActiveRuns returns the in-flight runs of one session.
func ListActiveRuns(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, ok := sessionParam(c)
		if !ok {
			return
		}
		handles := deps.Runs.BySession(sessionID)
		c.JSON(http.StatusOK, gin.H{
			"session_id": sessionID,
			"active":     handles,
			"count":      len(handles),
		})
	}
}
