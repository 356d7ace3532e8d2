// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package events defines the intermediate progress events an agent run
// emits while it executes. Transports (SSE, WebSocket, one-shot) consume
// these through the Emitter seam; the loop never touches HTTP.
package events

import "time"

// Type identifies one kind of progress event.
type Type string

const (
	// TypeSessionStarted carries the run identifier a client needs to
	// cancel the run out of band.
	TypeSessionStarted Type = "session_started"

	// TypeThought is the model's reasoning text for one iteration.
	TypeThought Type = "thought"

	// TypeAction announces a tool invocation before it executes.
	TypeAction Type = "action"

	// TypeObservation carries a tool result, or a degraded note when the
	// tool failed recoverably.
	TypeObservation Type = "observation"

	// TypeFinalAnswer is the synthesized user-facing answer.
	TypeFinalAnswer Type = "final_answer"

	// TypeError reports a run-fatal failure. The stream closes after it.
	TypeError Type = "error"
)

// Event is one progress event. Only the fields relevant to its Type are
// populated.
type Event struct {
	Type      Type           `json:"type"`
	RunID     string         `json:"run_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Iteration int            `json:"iteration,omitempty"`
	Content   string         `json:"content,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	Error     string         `json:"error,omitempty"`
	At        time.Time      `json:"at"`
}

// Emitter receives events in loop order. Implementations must not block
// indefinitely; a slow consumer stalls the run.
type Emitter interface {
	Emit(event Event)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(Event)

// Emit calls f.
func (f EmitterFunc) Emit(event Event) { f(event) }

// Discard is an Emitter that drops every event. One-shot callers that
// only want the final result use it.
var Discard Emitter = EmitterFunc(func(Event) {})

// Multi fans one event out to several emitters in order.
func Multi(emitters ...Emitter) Emitter {
	return EmitterFunc(func(e Event) {
		for _, em := range emitters {
			if em != nil {
				em.Emit(e)
			}
		}
	})
}

// Collector accumulates events in memory. Intended for tests and for the
// one-shot handler, which replays intermediate steps into the response.
type Collector struct {
	Events []Event
}

// Emit appends the event.
func (c *Collector) Emit(event Event) {
	c.Events = append(c.Events, event)
}

// ByType returns the collected events of one type, in emission order.
func (c *Collector) ByType(t Type) []Event {
	var out []Event
	for _, e := range c.Events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
