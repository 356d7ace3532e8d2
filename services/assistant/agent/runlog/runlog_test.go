// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package runlog

import (
	"errors"
	"testing"
	"time"

	"github.com/AleutianAI/InitiativeHub/services/assistant/agent"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func terminated(runID, sessionID string, state agent.RunState) *agent.RunResult {
	return &agent.RunResult{
		RunID:         runID,
		SessionID:     sessionID,
		Answer:        "answer for " + runID,
		Iterations:    2,
		State:         state,
		Provider:      "local",
		ExecutionTime: 1200 * time.Millisecond,
	}
}

func TestPutGet_RoundTrip(t *testing.T) {
	a := openTestArchive(t)

	want := terminated("run-1", "sess-1", agent.StateDone)
	want.Scratchpad = []agent.Entry{{Iteration: 1, FinalAnswer: "answer for run-1"}}
	if err := a.Put(want); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := a.Get("run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Answer != want.Answer || got.State != agent.StateDone {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if len(got.Scratchpad) != 1 || got.Scratchpad[0].FinalAnswer != "answer for run-1" {
		t.Fatalf("scratchpad lost in archive: %+v", got.Scratchpad)
	}
}

func TestPut_RejectsNonTerminalRun(t *testing.T) {
	a := openTestArchive(t)

	live := terminated("run-1", "sess-1", agent.StateThinking)
	if err := a.Put(live); err == nil {
		t.Fatal("expected rejection of non-terminal run")
	}
}

func TestGet_UnknownRun(t *testing.T) {
	a := openTestArchive(t)

	if _, err := a.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBySession_ReturnsOnlyThatSession(t *testing.T) {
	a := openTestArchive(t)

	for _, r := range []*agent.RunResult{
		terminated("run-1", "sess-1", agent.StateDone),
		terminated("run-2", "sess-1", agent.StateCancelled),
		terminated("run-3", "sess-2", agent.StateDone),
	} {
		if err := a.Put(r); err != nil {
			t.Fatalf("put %s: %v", r.RunID, err)
		}
	}

	got, err := a.BySession("sess-1")
	if err != nil {
		t.Fatalf("by session: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 runs for sess-1, got %d", len(got))
	}
	for _, r := range got {
		if r.SessionID != "sess-1" {
			t.Errorf("foreign session run %s leaked in", r.RunID)
		}
	}
}
