// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/tools"
)

// Observation is the recorded outcome of one tool invocation.
type Observation struct {
	OK      bool   `json:"ok"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Entry is one append-only scratchpad record. An entry holds either a
// tool step (Action plus Observation) or a final answer, never both.
type Entry struct {
	Iteration   int              `json:"iteration"`
	Thought     string           `json:"thought,omitempty"`
	Action      *tools.ToolCall  `json:"action,omitempty"`
	Observation *Observation     `json:"observation,omitempty"`
	FinalAnswer string           `json:"final_answer,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}

// Scratchpad is the append-only trace of one run. It is owned by a
// single loop goroutine and needs no locking.
type Scratchpad struct {
	entries []Entry
}

// Append records an entry with the current timestamp.
func (s *Scratchpad) Append(e Entry) {
	e.Timestamp = time.Now()
	s.entries = append(s.entries, e)
}

// Entries returns a copy of the trace.
func (s *Scratchpad) Entries() []Entry {
	return append([]Entry(nil), s.entries...)
}

// Len returns the number of recorded entries.
func (s *Scratchpad) Len() int { return len(s.entries) }

// maxObservationDigest bounds how much of a tool payload is replayed
// into the next provider prompt.
const maxObservationDigest = 4000

// Digest renders the trace into the textual history the provider sees on
// the next iteration. Oversized observations are truncated so one large
// payload cannot crowd the prompt.
func (s *Scratchpad) Digest() string {
	var b strings.Builder
	for _, e := range s.entries {
		if e.Thought != "" {
			fmt.Fprintf(&b, "Thought: %s\n", e.Thought)
		}
		if e.Action != nil {
			args, _ := json.Marshal(e.Action.Arguments)
			fmt.Fprintf(&b, "Action: %s\nAction Input: %s\n", e.Action.Name, args)
		}
		if e.Observation != nil {
			b.WriteString("Observation: ")
			b.WriteString(renderObservation(e.Observation))
			b.WriteByte('\n')
		}
		if e.FinalAnswer != "" {
			fmt.Fprintf(&b, "Final Answer: %s\n", e.FinalAnswer)
		}
	}
	return b.String()
}

// Summary renders the observation the same way the scratchpad digest
// does: the JSON payload (truncated when oversized) for a successful
// call, or the failure message otherwise.
func (o *Observation) Summary() string {
	return renderObservation(o)
}

func renderObservation(o *Observation) string {
	if !o.OK {
		return fmt.Sprintf("tool failed: %s", o.Error)
	}
	data, err := json.Marshal(o.Payload)
	if err != nil {
		return fmt.Sprintf("%v", o.Payload)
	}
	out := string(data)
	if len(out) > maxObservationDigest {
		out = out[:maxObservationDigest] + "... (truncated)"
	}
	return out
}
