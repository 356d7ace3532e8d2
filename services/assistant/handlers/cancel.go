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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/InitiativeHub/pkg/extensions"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/runreg"
	"github.com/AleutianAI/InitiativeHub/services/assistant/datatypes"
	"github.com/AleutianAI/InitiativeHub/services/assistant/middleware"
)

// HandleCancel stops an in-flight run the caller owns. Cancelling an
// already-cancelled run succeeds with cancelled=false; cancelling a
// finished or unknown run answers 404.
func HandleCancel(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CancelRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		caller := middleware.CallerID(c)
		cancelled, err := deps.Runs.Cancel(req.RunID, caller)
		switch {
		case errors.Is(err, runreg.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "no active run with that id"})
			return
		case errors.Is(err, runreg.ErrNotOwner):
			slog.Warn("Cancel denied for foreign run",
				"run_id", req.RunID, "caller", caller)
			deps.audit(c.Request.Context(), extensions.AuditEvent{
				EventType:  "run.cancel",
				UserID:     caller,
				ResourceID: req.RunID,
				Outcome:    "denied",
			})
			c.JSON(http.StatusForbidden, gin.H{"error": "run belongs to another caller"})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cancel failed"})
			return
		}

		deps.audit(c.Request.Context(), extensions.AuditEvent{
			EventType:  "run.cancel",
			UserID:     caller,
			ResourceID: req.RunID,
			Outcome:    "success",
			Metadata:   map[string]any{"already_cancelled": !cancelled},
		})
		c.JSON(http.StatusOK, datatypes.CancelResponse{
			RunID:     req.RunID,
			Cancelled: cancelled,
		})
	}
}
