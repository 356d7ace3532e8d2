// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the wire types of the assistant service.
package datatypes

// Turn is one prior conversation turn as the client renders it.
type Turn struct {
	Text   string `json:"text" binding:"required"`
	IsUser bool   `json:"is_user"`
}

// AskRequest is the one-shot question payload shared by /ask and
// /ask/stream.
type AskRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query" binding:"required,min=1,max=8000"`
	History   []Turn `json:"history,omitempty" binding:"max=100,dive"`
	Provider  string `json:"provider,omitempty"`
}

// Step is one intermediate reasoning step replayed in a one-shot
// response.
type Step struct {
	Iteration   int            `json:"iteration"`
	Thought     string         `json:"thought,omitempty"`
	Tool        string         `json:"tool,omitempty"`
	Args        map[string]any `json:"args,omitempty"`
	Observation string         `json:"observation,omitempty"`
}

// AskResponse is the one-shot answer payload.
type AskResponse struct {
	Answer        string `json:"answer"`
	RunID         string `json:"run_id"`
	SessionID     string `json:"session_id"`
	State         string `json:"state"`
	Iterations    int    `json:"iterations"`
	ExecutionTime string `json:"execution_time"`
	Provider      string `json:"provider,omitempty"`
	Steps         []Step `json:"steps,omitempty"`
}

// CancelRequest asks to stop an in-flight run.
type CancelRequest struct {
	RunID string `json:"run_id" binding:"required"`
}

// CancelResponse reports the cancellation outcome.
type CancelResponse struct {
	RunID     string `json:"run_id"`
	Cancelled bool   `json:"cancelled"`
}

// StreamEvent is the SSE payload. Id, CreatedAt, Hash, and PrevHash are
// populated by the writer; each event's hash chains to the previous one
// so a client can verify the stream was not reordered or truncated.
type StreamEvent struct {
	Type      string         `json:"type"`
	Content   string         `json:"content,omitempty"`
	Message   string         `json:"message,omitempty"`
	Error     string         `json:"error,omitempty"`
	SessionId string         `json:"session_id,omitempty"`
	RunId     string         `json:"run_id,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	Iteration int            `json:"iteration,omitempty"`

	Id        string `json:"id,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`
	Hash      string `json:"hash,omitempty"`
	PrevHash  string `json:"prev_hash,omitempty"`
}

// Stream event type strings.
const (
	StreamConnected      = "connected"
	StreamSessionStarted = "session_started"
	StreamThought        = "thought"
	StreamAction         = "action"
	StreamObservation    = "observation"
	StreamFinalAnswer    = "final_answer"
	StreamError          = "error"
	StreamClose          = "close"
)
