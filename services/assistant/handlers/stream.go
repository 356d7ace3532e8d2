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
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/InitiativeHub/services/assistant/agent"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/events"
	"github.com/AleutianAI/InitiativeHub/services/assistant/datatypes"
	"github.com/AleutianAI/InitiativeHub/services/assistant/middleware"
)

// keepAliveInterval is how often an SSE comment is sent while the agent
// works. Chosen under the common 60s proxy idle timeout.
const keepAliveInterval = 15 * time.Second

// HandleAskStream runs one agent turn while streaming intermediate
// events over SSE. A client disconnect cancels the run through the
// request context.
func HandleAskStream(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := assistantTracer.Start(c.Request.Context(), "HandleAskStream")
		defer span.End()

		var req datatypes.AskRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		sessionID, err := sessionOrNew(req.SessionID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
			return
		}

		SetSSEHeaders(c.Writer)
		writer, err := NewSSEWriter(c.Writer)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
			return
		}

		if err := writer.WriteConnected(); err != nil {
			slog.Warn("Client gone before stream start", "error", err)
			return
		}

		owner := middleware.CallerID(c)

		// The run context descends from the request context, so a
		// dropped connection cancels the run without any polling.
		handle, runCtx := deps.Runs.Begin(ctx, sessionID, owner)
		defer deps.Runs.End(handle.RunID)

		if err := writer.WriteSessionStarted(sessionID, handle.RunID); err != nil {
			slog.Warn("Client gone before run start", "run_id", handle.RunID)
			return
		}

		// Keep-alive pings until the run finishes.
		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(keepAliveInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := writer.WriteKeepAlive(); err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		result, err := deps.Engine.Run(runCtx, agent.RunRequest{
			RunID:      handle.RunID,
			SessionID:  sessionID,
			ProviderID: deps.providerOrDefault(req.Provider),
			CallerTier: middleware.CallerTier(c),
			Question:   req.Query,
			History:    historyToMessages(req.History),
		}, streamEmitter(writer))
		if err != nil {
			span.RecordError(err)
			_ = writer.WriteError("invalid request")
			return
		}

		archiveRun(deps, result)
		_ = writer.WriteClose(sessionID)
	}
}

// streamEmitter bridges loop events onto the SSE writer. Write failures
// are logged, not propagated; run teardown happens through the request
// context when the client is gone.
func streamEmitter(writer SSEWriter) events.Emitter {
	return events.EmitterFunc(func(e events.Event) {
		ev := datatypes.StreamEvent{
			RunId:     e.RunID,
			SessionId: e.SessionID,
			Iteration: e.Iteration,
			Tool:      e.Tool,
			Args:      e.Args,
			Content:   e.Content,
			Error:     e.Error,
		}
		switch e.Type {
		case events.TypeSessionStarted:
			// Already announced by the handler with the run handle.
			return
		case events.TypeThought:
			ev.Type = datatypes.StreamThought
		case events.TypeAction:
			ev.Type = datatypes.StreamAction
		case events.TypeObservation:
			ev.Type = datatypes.StreamObservation
		case events.TypeFinalAnswer:
			ev.Type = datatypes.StreamFinalAnswer
		case events.TypeError:
			ev.Type = datatypes.StreamError
		default:
			return
		}
		if err := writer.WriteEvent(ev); err != nil {
			slog.Debug("Dropped stream event", "type", ev.Type, "error", err)
		}
	})
}
