// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package runreg

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCancel_PropagatesToRunContext(t *testing.T) {
	r := NewRegistry(nil)
	h, runCtx := r.Begin(context.Background(), "sess-1", "alice")

	ok, err := r.Cancel(h.RunID, "alice")
	if err != nil || !ok {
		t.Fatalf("expected successful cancel, got ok=%v err=%v", ok, err)
	}

	select {
	case <-runCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("run context not cancelled")
	}
}

func TestCancel_SecondCallReportsFalse(t *testing.T) {
	r := NewRegistry(nil)
	h, _ := r.Begin(context.Background(), "sess-1", "alice")

	if ok, err := r.Cancel(h.RunID, "alice"); !ok || err != nil {
		t.Fatalf("first cancel: ok=%v err=%v", ok, err)
	}
	if ok, err := r.Cancel(h.RunID, "alice"); ok || err != nil {
		t.Fatalf("second cancel should be a no-op without error, got ok=%v err=%v", ok, err)
	}
}

func TestCancel_RejectsNonOwner(t *testing.T) {
	r := NewRegistry(nil)
	h, runCtx := r.Begin(context.Background(), "sess-1", "alice")

	ok, err := r.Cancel(h.RunID, "mallory")
	if ok || !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got ok=%v err=%v", ok, err)
	}
	select {
	case <-runCtx.Done():
		t.Fatal("non-owner cancel must not stop the run")
	default:
	}
}

func TestCancel_UnknownRun(t *testing.T) {
	r := NewRegistry(nil)
	ok, err := r.Cancel("no-such-run", "alice")
	if ok || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got ok=%v err=%v", ok, err)
	}
}

func TestEnd_RemovesRunAndReleasesContext(t *testing.T) {
	r := NewRegistry(nil)
	h, runCtx := r.Begin(context.Background(), "sess-1", "alice")

	r.End(h.RunID)

	if _, ok := r.Lookup(h.RunID); ok {
		t.Fatal("run still visible after End")
	}
	if r.Active() != 0 {
		t.Fatalf("expected 0 active runs, got %d", r.Active())
	}
	select {
	case <-runCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("End should release the run context")
	}

	if _, err := r.Cancel(h.RunID, "alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cancel after End should report ErrNotFound, got %v", err)
	}
}

func TestBySession_FiltersHandles(t *testing.T) {
	r := NewRegistry(nil)
	r.Begin(context.Background(), "sess-1", "alice")
	r.Begin(context.Background(), "sess-1", "alice")
	r.Begin(context.Background(), "sess-2", "bob")

	if got := len(r.BySession("sess-1")); got != 2 {
		t.Fatalf("expected 2 handles for sess-1, got %d", got)
	}
	if got := len(r.BySession("sess-3")); got != 0 {
		t.Fatalf("expected 0 handles for sess-3, got %d", got)
	}
}
