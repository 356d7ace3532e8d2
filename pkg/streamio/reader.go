// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package streamio reads the assistant's SSE stream on the client side
// and verifies its event hash chain.
package streamio

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Event mirrors the server's stream event wire shape.
type Event struct {
	Type      string         `json:"type"`
	Content   string         `json:"content,omitempty"`
	Message   string         `json:"message,omitempty"`
	Error     string         `json:"error,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	Iteration int            `json:"iteration,omitempty"`

	Id        string `json:"id,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`
	Hash      string `json:"hash,omitempty"`
	PrevHash  string `json:"prev_hash,omitempty"`
}

// Result is the complete outcome of one streamed run.
type Result struct {
	Answer    string
	SessionID string
	RunID     string
	Events    []Event
	// ChainOK reports whether every event's PrevHash matched its
	// predecessor and every Hash verified against the event content.
	ChainOK bool
}

// Handler observes events as they arrive. Any callback may be nil.
type Handler struct {
	OnThought     func(content string)
	OnAction      func(tool string, args map[string]any)
	OnObservation func(content, errMsg string)
	OnRunStarted  func(sessionID, runID string)
	OnError       func(errMsg string)
}

// Process consumes an SSE body until the close event or EOF.
//
// The hash chain is verified as events arrive: a broken link does not
// stop processing, but the final Result reports ChainOK=false so the
// caller can warn that the stream may have been tampered with or
// truncated by an intermediary.
func Process(reader io.Reader, h Handler) (*Result, error) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	result := &Result{ChainOK: true}
	prevHash := ""

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, ":") {
			// Blank separators and keep-alive comments.
			continue
		}
		if strings.HasPrefix(line, "event: ") {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var event Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			return nil, fmt.Errorf("malformed stream event: %w", err)
		}
		result.Events = append(result.Events, event)

		if event.PrevHash != prevHash || event.Hash != computeHash(event) {
			result.ChainOK = false
		}
		prevHash = event.Hash

		switch event.Type {
		case "session_started":
			result.SessionID = event.SessionID
			result.RunID = event.RunID
			if h.OnRunStarted != nil {
				h.OnRunStarted(event.SessionID, event.RunID)
			}
		case "thought":
			if h.OnThought != nil {
				h.OnThought(event.Content)
			}
		case "action":
			if h.OnAction != nil {
				h.OnAction(event.Tool, event.Args)
			}
		case "observation":
			if h.OnObservation != nil {
				h.OnObservation(event.Content, event.Error)
			}
		case "final_answer":
			result.Answer = event.Content
		case "error":
			if h.OnError != nil {
				h.OnError(event.Error)
			}
			return result, fmt.Errorf("run failed: %s", event.Error)
		case "close":
			return result, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("read stream: %w", err)
	}
	// EOF without a close event: connection dropped mid-run.
	result.ChainOK = false
	return result, nil
}

// computeHash mirrors the server's event hashing.
func computeHash(event Event) string {
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
		event.SessionID,
		event.RunID,
		event.Tool,
		event.Iteration,
		argsJSON,
	)

	hash := sha256.Sum256([]byte(hashInput))
	return hex.EncodeToString(hash[:])
}
