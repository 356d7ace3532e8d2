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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/InitiativeHub/services/assistant/datatypes"
)

// SSEWriter writes agent progress events in SSE wire format.
//
// # Description
//
// Each event is assigned an Id (UUID v4), a CreatedAt millisecond
// timestamp, a SHA-256 Hash of its content, and the PrevHash of the
// preceding event. The hash chain lets a client verify the stream was
// neither reordered nor truncated mid-flight.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; the keep-alive
// ticker writes from a different goroutine than the run loop.
type SSEWriter interface {
	// WriteEvent writes one event and flushes immediately.
	WriteEvent(event datatypes.StreamEvent) error

	// WriteConnected announces the stream is open.
	WriteConnected() error

	// WriteSessionStarted hands the client the run id it needs to
	// cancel the run out of band.
	WriteSessionStarted(sessionID, runID string) error

	// WriteError reports a run-fatal failure. The message must already
	// be sanitized; internal details stay in the server log.
	WriteError(errMsg string) error

	// WriteClose terminates the stream.
	WriteClose(sessionID string) error

	// WriteKeepAlive sends an SSE comment line to hold the connection
	// open through load-balancer idle timeouts. Comments are not events
	// and do not advance the hash chain.
	WriteKeepAlive() error
}

// sseWriter implements SSEWriter over an http.ResponseWriter.
type sseWriter struct {
	writer   http.ResponseWriter
	flusher  http.Flusher
	prevHash string
	mu       sync.Mutex
}

// SetSSEHeaders sets the response headers required before streaming.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// NewSSEWriter creates an SSEWriter for the given ResponseWriter. The
// caller must have set SSE headers first.
func NewSSEWriter(w http.ResponseWriter) (SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}
	return &sseWriter{writer: w, flusher: flusher}, nil
}

func (w *sseWriter) WriteEvent(event datatypes.StreamEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	event.Id = uuid.New().String()
	event.CreatedAt = time.Now().UnixMilli()
	event.PrevHash = w.prevHash
	event.Hash = computeEventHash(event)
	w.prevHash = event.Hash

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(w.writer, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	w.flusher.Flush()
	return nil
}

func (w *sseWriter) WriteConnected() error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:    datatypes.StreamConnected,
		Message: "connected",
	})
}

func (w *sseWriter) WriteSessionStarted(sessionID, runID string) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:      datatypes.StreamSessionStarted,
		SessionId: sessionID,
		RunId:     runID,
	})
}

func (w *sseWriter) WriteError(errMsg string) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:  datatypes.StreamError,
		Error: errMsg,
	})
}

func (w *sseWriter) WriteClose(sessionID string) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:      datatypes.StreamClose,
		SessionId: sessionID,
	})
}

func (w *sseWriter) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprint(w.writer, ": ping\n\n"); err != nil {
		return fmt.Errorf("write keep-alive: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// computeEventHash hashes the event's content fields. Called with the
// Hash field still empty.
func computeEventHash(event datatypes.StreamEvent) string {
	argsJSON := ""
	if len(event.Args) > 0 {
		if data, err := json.Marshal(event.Args); err == nil {
			argsJSON = string(data)
		}
	}

	hashInput := fmt.Sprintf("%s|%s|%d|%s|%s|%s|%s|%s|%s|%s|%d|%s",
		event.Id,
		event.Type,
		event.CreatedAt,
		event.PrevHash,
		event.Content,
		event.Message,
		event.Error,
		event.SessionId,
		event.RunId,
		event.Tool,
		event.Iteration,
		argsJSON,
	)

	hash := sha256.Sum256([]byte(hashInput))
	return hex.EncodeToString(hash[:])
}
