// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package runreg tracks in-flight agent runs and lets their owners cancel
// them out of band.
package runreg

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates no active run exists for the identifier.
var ErrNotFound = errors.New("run not found")

// ErrNotOwner indicates the caller does not own the run it tried to cancel.
var ErrNotOwner = errors.New("run owned by another caller")

// Handle describes one in-flight run.
type Handle struct {
	RunID     string    `json:"run_id"`
	SessionID string    `json:"session_id"`
	Owner     string    `json:"owner"`
	StartedAt time.Time `json:"started_at"`
}

type activeRun struct {
	handle    Handle
	cancel    context.CancelFunc
	cancelled bool
}

// Registry maps run identifiers to their cancellation functions.
//
// Description:
//
//	Begin derives a cancellable context for a new run and records it
//	under a fresh UUID. Cancel stops a run if the caller owns it; the
//	first cancel wins and later cancels on the same run report false.
//	End removes a run once its loop terminates for any reason.
//
// Thread Safety: Registry is safe for concurrent use.
type Registry struct {
	mu     sync.Mutex
	runs   map[string]*activeRun
	logger *slog.Logger
}

// NewRegistry creates an empty run registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		runs:   make(map[string]*activeRun),
		logger: logger.With(slog.String("component", "run_registry")),
	}
}

// Begin registers a new run owned by the caller and returns its handle
// together with a context the loop must run under.
func (r *Registry) Begin(ctx context.Context, sessionID, owner string) (Handle, context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	h := Handle{
		RunID:     uuid.NewString(),
		SessionID: sessionID,
		Owner:     owner,
		StartedAt: time.Now(),
	}

	r.mu.Lock()
	r.runs[h.RunID] = &activeRun{handle: h, cancel: cancel}
	r.mu.Unlock()

	r.logger.Info("Run registered",
		slog.String("run_id", h.RunID),
		slog.String("session_id", sessionID))
	return h, runCtx
}

// Cancel stops a run the caller owns.
//
// Outputs:
//   - bool: true when this call performed the cancellation; false when
//     the run was already cancelled.
//   - error: ErrNotFound when no such active run exists, ErrNotOwner
//     when the caller does not own it.
func (r *Registry) Cancel(runID, caller string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[runID]
	if !ok {
		return false, ErrNotFound
	}
	if run.handle.Owner != caller {
		return false, ErrNotOwner
	}
	if run.cancelled {
		return false, nil
	}
	run.cancelled = true
	run.cancel()

	r.logger.Info("Run cancelled",
		slog.String("run_id", runID),
		slog.String("caller", caller))
	return true, nil
}

// End removes a terminated run and releases its context resources.
func (r *Registry) End(runID string) {
	r.mu.Lock()
	run, ok := r.runs[runID]
	if ok {
		delete(r.runs, runID)
	}
	r.mu.Unlock()

	if ok {
		run.cancel()
	}
}

// Lookup returns the handle for an active run.
func (r *Registry) Lookup(runID string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runID]
	if !ok {
		return Handle{}, false
	}
	return run.handle, true
}

// Active returns the number of in-flight runs.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

// BySession returns handles of active runs for a session.
func (r *Registry) BySession(sessionID string) []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Handle
	for _, run := range r.runs {
		if run.handle.SessionID == sessionID {
			out = append(out, run.handle)
		}
	}
	return out
}
