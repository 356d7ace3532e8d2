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
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/InitiativeHub/services/assistant/agent"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/events"
	"github.com/AleutianAI/InitiativeHub/services/assistant/datatypes"
	"github.com/AleutianAI/InitiativeHub/services/assistant/middleware"
)

// WSRequest is one question over the websocket channel.
type WSRequest struct {
	Query    string           `json:"query"`
	History  []datatypes.Turn `json:"history,omitempty"`
	Provider string           `json:"provider,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

func sendJSON(ws *websocket.Conn, v any) error {
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// HandleAskWebSocket serves a persistent chat channel. Each inbound
// message starts one agent run whose events stream back as JSON frames;
// closing the socket cancels the active run.
func HandleAskWebSocket(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := sessionOrNew(c.Query("session_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()

		owner := middleware.CallerID(c)
		tier := middleware.CallerTier(c)

		if sendJSON(ws, datatypes.StreamEvent{
			Type:      datatypes.StreamConnected,
			SessionId: sessionID,
		}) != nil {
			return
		}

		for {
			var req WSRequest
			if err := ws.ReadJSON(&req); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Warn("WebSocket closed unexpectedly", "error", err)
				}
				return
			}
			if req.Query == "" {
				sendJSON(ws, datatypes.StreamEvent{
					Type:  datatypes.StreamError,
					Error: "empty query",
				})
				continue
			}

			handle, runCtx := deps.Runs.Begin(c.Request.Context(), sessionID, owner)
			sendJSON(ws, datatypes.StreamEvent{
				Type:      datatypes.StreamSessionStarted,
				SessionId: sessionID,
				RunId:     handle.RunID,
			})

			result, err := deps.Engine.Run(runCtx, agent.RunRequest{
				RunID:      handle.RunID,
				SessionID:  sessionID,
				ProviderID: deps.providerOrDefault(req.Provider),
				CallerTier: tier,
				Question:   req.Query,
				History:    historyToMessages(req.History),
			}, wsEmitter(ws))
			deps.Runs.End(handle.RunID)
			if err != nil {
				sendJSON(ws, datatypes.StreamEvent{
					Type:  datatypes.StreamError,
					Error: "invalid request",
				})
				continue
			}

			archiveRun(deps, result)
		}
	}
}

// wsEmitter mirrors streamEmitter for the websocket framing. No hash
// chain here; the socket itself preserves ordering.
func wsEmitter(ws *websocket.Conn) events.Emitter {
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
		sendJSON(ws, ev)
	})
}
