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
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/events"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/provider"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/sessionctx"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/tools"
)

// scriptedInvoker returns canned decisions in order, repeating the last
// one when the script runs out.
type scriptedInvoker struct {
	calls     atomic.Int64
	decisions []*provider.Response
	errs      []error
}

func (s *scriptedInvoker) Invoke(_ context.Context, _ string, _ provider.Tier, _ provider.Request) (*provider.Response, error) {
	n := int(s.calls.Add(1)) - 1
	if n >= len(s.decisions) {
		n = len(s.decisions) - 1
	}
	if n < len(s.errs) && s.errs[n] != nil {
		return nil, s.errs[n]
	}
	return s.decisions[n], nil
}

func testRegistry(t *testing.T) (*tools.Registry, *tools.Dispatcher) {
	t.Helper()
	store := tools.NewMemStore()
	store.Initiatives = []tools.Initiative{
		{ID: "init-1", Title: "Churn Reduction", Status: "active", Likes: 4},
	}
	reg := tools.BuiltinCatalog(store)
	return reg, tools.NewDispatcher(reg)
}

func newTestEngine(t *testing.T, inv Invoker, cfg EngineConfig) (*Engine, *sessionctx.Store) {
	t.Helper()
	reg, disp := testRegistry(t)
	sessions := sessionctx.NewStore()
	t.Cleanup(sessions.Close)
	if cfg.DefaultSkills == nil {
		cfg.DefaultSkills = tools.AllSkills
	}
	eng, err := NewEngine(inv, reg, disp, sessions, cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return eng, sessions
}

func baseRequest() RunRequest {
	return RunRequest{
		RunID:      "run-1",
		SessionID:  "sess-1",
		ProviderID: "local",
		CallerTier: provider.TierStandard,
		Question:   "what initiatives are active?",
	}
}

func TestRun_SingleRoundTripDone(t *testing.T) {
	inv := &scriptedInvoker{decisions: []*provider.Response{
		{Thought: "list first", ToolCall: &tools.ToolCall{Name: "list_initiatives", Arguments: map[string]any{}}},
		{Thought: "enough data", Answer: "One active initiative: Churn Reduction."},
	}}
	eng, _ := newTestEngine(t, inv, EngineConfig{})

	var col events.Collector
	res, err := eng.Run(context.Background(), baseRequest(), &col)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if res.State != StateDone {
		t.Fatalf("expected DONE, got %s", res.State)
	}
	if res.Iterations != 2 {
		t.Fatalf("expected 2 iterations, got %d", res.Iterations)
	}
	if res.Answer != "One active initiative: Churn Reduction." {
		t.Fatalf("unexpected answer %q", res.Answer)
	}

	// Scratchpad: thought+action, observation, final answer.
	var sawAction, sawObservation, sawFinal bool
	for _, e := range res.Scratchpad {
		if e.Action != nil {
			sawAction = true
		}
		if e.Observation != nil {
			if !e.Observation.OK {
				t.Errorf("observation reported failure: %s", e.Observation.Error)
			}
			sawObservation = true
		}
		if e.FinalAnswer != "" {
			sawFinal = true
		}
	}
	if !sawAction || !sawObservation || !sawFinal {
		t.Fatalf("incomplete scratchpad: action=%v observation=%v final=%v",
			sawAction, sawObservation, sawFinal)
	}

	if got := len(col.ByType(events.TypeFinalAnswer)); got != 1 {
		t.Fatalf("expected one final_answer event, got %d", got)
	}
}

func TestRun_MaxIterationsReached(t *testing.T) {
	// Model never finalizes: every decision requests another tool call.
	inv := &scriptedInvoker{decisions: []*provider.Response{
		{Thought: "need more data", ToolCall: &tools.ToolCall{Name: "list_initiatives", Arguments: map[string]any{}}},
	}}
	eng, _ := newTestEngine(t, inv, EngineConfig{MaxIterations: 3})

	res, err := eng.Run(context.Background(), baseRequest(), events.Discard)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if res.State != StateMaxIterations {
		t.Fatalf("expected MAX_ITERATIONS_REACHED, got %s", res.State)
	}
	if res.Iterations != 3 {
		t.Fatalf("expected exactly 3 iterations, got %d", res.Iterations)
	}
	if got := inv.calls.Load(); got != 3 {
		t.Fatalf("expected 3 provider calls, got %d", got)
	}
	if res.Answer == "" {
		t.Fatal("expected a best-effort answer, got empty")
	}
}

func TestRun_CancellationStopsBeforeNextStep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inv := &scriptedInvoker{decisions: []*provider.Response{
		{Thought: "looping", ToolCall: &tools.ToolCall{Name: "list_initiatives", Arguments: map[string]any{}}},
	}}
	// Cancel during the first provider call.
	firstCall := make(chan struct{}, 1)
	gate := EmitterThatCancels(cancel, firstCall)

	eng, _ := newTestEngine(t, inv, EngineConfig{MaxIterations: 10})
	res, err := eng.Run(ctx, baseRequest(), gate)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if res.State != StateCancelled {
		t.Fatalf("expected CANCELLED, got %s", res.State)
	}
	if res.Err == nil || res.Err.Code != ErrCodeCancelled {
		t.Fatalf("expected cancelled run error, got %+v", res.Err)
	}
	if res.Iterations > 2 {
		t.Fatalf("loop kept going after cancellation: %d iterations", res.Iterations)
	}
}

// EmitterThatCancels triggers cancel on the first action event, modeling
// a client that aborts as soon as work starts.
func EmitterThatCancels(cancel context.CancelFunc, once chan struct{}) events.Emitter {
	return events.EmitterFunc(func(e events.Event) {
		if e.Type == events.TypeAction {
			select {
			case once <- struct{}{}:
				cancel()
			default:
			}
		}
	})
}

func TestRun_RunTimeoutMovesToTimedOut(t *testing.T) {
	slow := &slowInvoker{delay: 50 * time.Millisecond}
	eng, _ := newTestEngine(t, slow, EngineConfig{MaxIterations: 10, RunTimeout: 10 * time.Millisecond})

	res, err := eng.Run(context.Background(), baseRequest(), events.Discard)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.State != StateTimedOut {
		t.Fatalf("expected TIMED_OUT, got %s", res.State)
	}
	if res.Err == nil || res.Err.Code != ErrCodeTimeout {
		t.Fatalf("expected timeout error, got %+v", res.Err)
	}
}

type slowInvoker struct{ delay time.Duration }

func (s *slowInvoker) Invoke(ctx context.Context, _ string, _ provider.Tier, _ provider.Request) (*provider.Response, error) {
	select {
	case <-time.After(s.delay):
		return &provider.Response{Answer: "late"}, nil
	case <-ctx.Done():
		return nil, &provider.InvokeError{Reason: "context done", Err: ctx.Err()}
	}
}

func TestRun_TransientProviderErrorContinuesDegraded(t *testing.T) {
	transient := &provider.InvokeError{Reason: "connection reset", Permanent: false, Err: errors.New("reset")}
	inv := &scriptedInvoker{
		decisions: []*provider.Response{
			nil,
			{Thought: "recovered", Answer: "done anyway"},
		},
		errs: []error{transient, nil},
	}
	eng, _ := newTestEngine(t, inv, EngineConfig{MaxIterations: 5})

	res, err := eng.Run(context.Background(), baseRequest(), events.Discard)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.State != StateDone {
		t.Fatalf("expected DONE after transient failure, got %s (err %+v)", res.State, res.Err)
	}
	if res.Answer != "done anyway" {
		t.Fatalf("unexpected answer %q", res.Answer)
	}
	// The degraded iteration leaves a failed observation behind.
	var degraded bool
	for _, e := range res.Scratchpad {
		if e.Observation != nil && !e.Observation.OK {
			degraded = true
		}
	}
	if !degraded {
		t.Fatal("expected a degraded observation in the scratchpad")
	}
}

func TestRun_PermanentProviderErrorFailsRun(t *testing.T) {
	permanent := &provider.InvokeError{Reason: "provider not permitted", Permanent: true, Err: provider.ErrNotPermitted}
	inv := &scriptedInvoker{decisions: []*provider.Response{nil}, errs: []error{permanent}}
	eng, _ := newTestEngine(t, inv, EngineConfig{})

	var col events.Collector
	res, err := eng.Run(context.Background(), baseRequest(), &col)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.State != StateFailed {
		t.Fatalf("expected FAILED, got %s", res.State)
	}
	if res.Err == nil || res.Err.Code != ErrCodePermission {
		t.Fatalf("expected permission error code, got %+v", res.Err)
	}
	if got := len(col.ByType(events.TypeError)); got != 1 {
		t.Fatalf("expected one error event, got %d", got)
	}
	if got := len(col.ByType(events.TypeFinalAnswer)); got != 0 {
		t.Fatalf("failed run must not emit final_answer, got %d", got)
	}
}

func TestRun_BestEffortAnswerMergesRepeatedObservations(t *testing.T) {
	// The model repeats the same lookup until the iteration budget is
	// spent; the best-effort answer must report the result once, not
	// once per iteration.
	inv := &scriptedInvoker{decisions: []*provider.Response{
		{Thought: "need more data", ToolCall: &tools.ToolCall{Name: "list_initiatives", Arguments: map[string]any{}}},
	}}
	eng, _ := newTestEngine(t, inv, EngineConfig{MaxIterations: 3})

	res, err := eng.Run(context.Background(), baseRequest(), events.Discard)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.State != StateMaxIterations {
		t.Fatalf("expected MAX_ITERATIONS_REACHED, got %s", res.State)
	}
	if !strings.Contains(res.Answer, "Churn Reduction") {
		t.Fatalf("best-effort answer dropped the tool result: %q", res.Answer)
	}
	if got := strings.Count(res.Answer, "init-1"); got != 1 {
		t.Fatalf("expected the repeated lookup de-duplicated to one row, found %d: %q", got, res.Answer)
	}
}

// promptCapturingInvoker records each request's system prompt before
// delegating to the scripted decisions.
type promptCapturingInvoker struct {
	scripted *scriptedInvoker
	mu       sync.Mutex
	systems  []string
}

func (p *promptCapturingInvoker) Invoke(ctx context.Context, id string, tier provider.Tier, req provider.Request) (*provider.Response, error) {
	p.mu.Lock()
	p.systems = append(p.systems, req.System)
	p.mu.Unlock()
	return p.scripted.Invoke(ctx, id, tier, req)
}

func TestRun_SecondRunSeesPriorSessionCalls(t *testing.T) {
	inv := &promptCapturingInvoker{scripted: &scriptedInvoker{decisions: []*provider.Response{
		{ToolCall: &tools.ToolCall{Name: "list_initiatives", Arguments: map[string]any{}}},
		{Answer: "one active initiative"},
	}}}
	eng, _ := newTestEngine(t, inv, EngineConfig{})

	if _, err := eng.Run(context.Background(), baseRequest(), events.Discard); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if strings.Contains(inv.systems[0], "Tool calls from earlier in this session") {
		t.Fatal("first run started with a non-empty session digest")
	}

	second := baseRequest()
	second.RunID = "run-2"
	second.Question = "which of those has the most likes?"
	if _, err := eng.Run(context.Background(), second, events.Discard); err != nil {
		t.Fatalf("second run: %v", err)
	}

	sys := inv.systems[len(inv.systems)-1]
	if !strings.Contains(sys, "Tool calls from earlier in this session") {
		t.Fatalf("second run prompt missing the session history section:\n%s", sys)
	}
	if !strings.Contains(sys, "list_initiatives") || !strings.Contains(sys, "Churn Reduction") {
		t.Fatalf("session digest missing the prior call and its result:\n%s", sys)
	}
}

func TestRun_SessionRingRecordsToolCalls(t *testing.T) {
	inv := &scriptedInvoker{decisions: []*provider.Response{
		{ToolCall: &tools.ToolCall{Name: "list_initiatives", Arguments: map[string]any{}}},
		{Answer: "ok"},
	}}
	eng, sessions := newTestEngine(t, inv, EngineConfig{})

	if _, err := eng.Run(context.Background(), baseRequest(), events.Discard); err != nil {
		t.Fatalf("run: %v", err)
	}

	snap := sessions.Get("sess-1")
	if len(snap.RecentCalls) != 1 {
		t.Fatalf("expected 1 recorded call, got %d", len(snap.RecentCalls))
	}
	if snap.RecentCalls[0].Call.Name != "list_initiatives" {
		t.Fatalf("unexpected recorded call %q", snap.RecentCalls[0].Call.Name)
	}
}
