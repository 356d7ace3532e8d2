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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/InitiativeHub/services/assistant/agent"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/events"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/provider"
	"github.com/AleutianAI/InitiativeHub/services/assistant/datatypes"
	"github.com/AleutianAI/InitiativeHub/services/assistant/middleware"
)

// HandleAsk runs one agent turn to completion and returns the final
// answer with its replayed reasoning steps.
func HandleAsk(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := assistantTracer.Start(c.Request.Context(), "HandleAsk")
		defer span.End()

		var req datatypes.AskRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the ask request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		sessionID, err := sessionOrNew(req.SessionID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
			return
		}
		owner := middleware.CallerID(c)
		handle, runCtx := deps.Runs.Begin(ctx, sessionID, owner)
		defer deps.Runs.End(handle.RunID)

		result, err := deps.Engine.Run(runCtx, agent.RunRequest{
			RunID:      handle.RunID,
			SessionID:  sessionID,
			ProviderID: deps.providerOrDefault(req.Provider),
			CallerTier: middleware.CallerTier(c),
			Question:   req.Query,
			History:    historyToMessages(req.History),
		}, events.Discard)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Agent run rejected", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		archiveRun(deps, result)

		if result.State == agent.StateFailed || result.State == agent.StateCancelled {
			status := http.StatusBadGateway
			msg := "the assistant could not complete the request"
			if result.Err != nil {
				switch result.Err.Code {
				case agent.ErrCodePermission:
					status = http.StatusForbidden
					msg = "the selected model is not available for your role"
				case agent.ErrCodeCancelled:
					status = http.StatusConflict
					msg = "the run was cancelled"
				}
			}
			c.JSON(status, gin.H{"error": msg, "run_id": result.RunID})
			return
		}

		c.JSON(http.StatusOK, datatypes.AskResponse{
			Answer:        result.Answer,
			RunID:         result.RunID,
			SessionID:     sessionID,
			State:         string(result.State),
			Iterations:    result.Iterations,
			ExecutionTime: result.ExecutionTime.String(),
			Provider:      result.Provider,
			Steps:         stepsFromScratchpad(result.Scratchpad),
		})
	}
}

// archiveRun stores a terminal result, tolerating archive absence.
func archiveRun(deps *Deps, result *agent.RunResult) {
	if deps.Archive == nil || result == nil {
		return
	}
	if err := deps.Archive.Put(result); err != nil {
		slog.Warn("Failed to archive run",
			"run_id", result.RunID, "error", err)
	}
}

func historyToMessages(turns []datatypes.Turn) []provider.Message {
	out := make([]provider.Message, 0, len(turns))
	for _, t := range turns {
		role := "assistant"
		if t.IsUser {
			role = "user"
		}
		out = append(out, provider.Message{Role: role, Content: t.Text})
	}
	return out
}

func stepsFromScratchpad(entries []agent.Entry) []datatypes.Step {
	var out []datatypes.Step
	for _, e := range entries {
		step := datatypes.Step{Iteration: e.Iteration, Thought: e.Thought}
		if e.Action != nil {
			step.Tool = e.Action.Name
			step.Args = e.Action.Arguments
		}
		if e.Observation != nil {
			step.Observation = e.Observation.Summary()
		}
		if e.FinalAnswer != "" {
			// The final answer is already the response body.
			continue
		}
		out = append(out, step)
	}
	return out
}
