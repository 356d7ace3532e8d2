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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/events"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/provider"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/sessionctx"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/tools"
)

// Invoker is the slice of the provider gateway the loop needs. The
// gateway satisfies it; tests substitute scripted decisions.
type Invoker interface {
	Invoke(ctx context.Context, providerID string, callerTier provider.Tier, req provider.Request) (*provider.Response, error)
}

// Finalizer turns a raw answer and its run trace into the user-facing
// response. The synthesize package provides the production
// implementation; a nil Finalizer passes the raw answer through.
type Finalizer interface {
	Finalize(ctx context.Context, answer string, entries []Entry) string
}

// RunRequest describes one question to answer.
type RunRequest struct {
	RunID      string
	SessionID  string
	ProviderID string
	CallerTier provider.Tier
	Question   string
	History    []provider.Message
}

// Engine drives the reason-act loop.
//
// Description:
//
//	Each iteration sends the question, conversation history, permitted
//	tool schemas, and the scratchpad digest to the provider gateway,
//	then either executes the requested tool or finalizes the answer.
//	Cancellation and timeout are cooperative: the engine checks the run
//	context before each provider call and each tool dispatch, so an
//	in-flight step completes or aborts via its own context but no new
//	step starts after the run is stopped.
//
// Thread Safety: Engine is safe for concurrent Run calls; all per-run
// state lives on the stack.
type Engine struct {
	invoker    Invoker
	registry   *tools.Registry
	dispatcher *tools.Dispatcher
	sessions   *sessionctx.Store
	finalizer  Finalizer
	cfg        EngineConfig
	logger     *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithFinalizer installs a response synthesizer.
func WithFinalizer(f Finalizer) EngineOption {
	return func(e *Engine) { e.finalizer = f }
}

// WithEngineLogger sets the logger. Defaults to slog.Default().
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates a loop engine. Config zero values are defaulted.
func NewEngine(invoker Invoker, registry *tools.Registry, dispatcher *tools.Dispatcher, sessions *sessionctx.Store, cfg EngineConfig, opts ...EngineOption) (*Engine, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if invoker == nil || registry == nil || dispatcher == nil || sessions == nil {
		return nil, errors.New("engine requires invoker, registry, dispatcher, and session store")
	}

	e := &Engine{
		invoker:    invoker,
		registry:   registry,
		dispatcher: dispatcher,
		sessions:   sessions,
		cfg:        cfg,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(slog.String("component", "react_engine"))
	return e, nil
}

// Run executes one agent run to a terminal state. The returned result is
// never nil; run-fatal failures surface in result.Err rather than the
// error return, which is reserved for programmer mistakes (empty
// question, missing run id).
func (e *Engine) Run(ctx context.Context, req RunRequest, emit events.Emitter) (*RunResult, error) {
	if req.Question == "" {
		return nil, errors.New("empty question")
	}
	if req.RunID == "" || req.SessionID == "" {
		return nil, errors.New("run id and session id are required")
	}
	if emit == nil {
		emit = events.Discard
	}

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.RunTimeout)
	defer cancel()

	start := time.Now()
	result := &RunResult{
		RunID:     req.RunID,
		SessionID: req.SessionID,
		Provider:  req.ProviderID,
		State:     StateInit,
	}
	var pad Scratchpad

	logger := e.logger.With(
		slog.String("run_id", req.RunID),
		slog.String("session_id", req.SessionID))
	logger.Info("Run started", slog.String("provider", req.ProviderID))

	emit.Emit(events.Event{
		Type:      events.TypeSessionStarted,
		RunID:     req.RunID,
		SessionID: req.SessionID,
		At:        time.Now(),
	})

	skills := e.sessions.Skills(req.SessionID, e.cfg.DefaultSkills)
	schemas := e.registry.SchemasForSkills(skills)
	sessionNote := sessionDigest(e.sessions.Get(req.SessionID).RecentCalls)

	e.iterate(runCtx, req, schemas, sessionNote, &pad, result, emit, logger)

	e.finalize(runCtx, result, &pad, emit, logger)
	result.Scratchpad = pad.Entries()
	result.ExecutionTime = time.Since(start)

	observeRun(result)
	logger.Info("Run finished",
		slog.String("state", string(result.State)),
		slog.Int("iterations", result.Iterations),
		slog.Duration("duration", result.ExecutionTime))
	return result, nil
}

// iterate runs think/act cycles until a terminal condition. It sets
// result.State to the terminal state and result.Answer when the model
// produced one.
func (e *Engine) iterate(ctx context.Context, req RunRequest, schemas []tools.Schema, sessionNote string, pad *Scratchpad, result *RunResult, emit events.Emitter, logger *slog.Logger) {
	for iter := 1; iter <= e.cfg.MaxIterations; iter++ {
		if stopped := e.checkStopped(ctx, result); stopped {
			return
		}

		result.State = StateThinking
		result.Iterations = iter

		decision, err := e.invoker.Invoke(ctx, req.ProviderID, req.CallerTier, provider.Request{
			System:   e.systemPrompt(pad, sessionNote),
			Messages: append(append([]provider.Message(nil), req.History...), provider.Message{Role: "user", Content: req.Question}),
			Tools:    schemas,
		})
		if err != nil {
			if e.checkStopped(ctx, result) {
				return
			}
			observeProviderError(req.ProviderID, provider.IsPermanent(err))
			if provider.IsPermanent(err) {
				e.fail(result, classifyProviderError(err), err)
				return
			}
			// Transient failure becomes a degraded observation so the
			// model can retry or wrap up with what it has.
			logger.Warn("Provider call failed, continuing degraded",
				slog.Int("iteration", iter), slog.String("error", err.Error()))
			obs := &Observation{OK: false, Error: "provider temporarily unavailable: " + err.Error()}
			pad.Append(Entry{Iteration: iter, Observation: obs})
			emit.Emit(events.Event{Type: events.TypeObservation, RunID: req.RunID, Iteration: iter, Error: obs.Error, At: time.Now()})
			continue
		}

		if decision.Thought != "" {
			emit.Emit(events.Event{Type: events.TypeThought, RunID: req.RunID, Iteration: iter, Content: decision.Thought, At: time.Now()})
		}

		if decision.IsFinal() {
			pad.Append(Entry{Iteration: iter, Thought: decision.Thought, FinalAnswer: decision.Answer})
			result.Answer = decision.Answer
			result.State = StateDone
			return
		}

		call := *decision.ToolCall
		pad.Append(Entry{Iteration: iter, Thought: decision.Thought, Action: &call})
		emit.Emit(events.Event{Type: events.TypeAction, RunID: req.RunID, Iteration: iter, Tool: call.Name, Args: call.Arguments, At: time.Now()})

		if stopped := e.checkStopped(ctx, result); stopped {
			return
		}

		result.State = StateActingOnTool
		if !e.registry.Allowed(call.Name, skillsOf(schemas)) {
			// The model asked for a tool outside the session's surface.
			// Observe the refusal instead of failing the run.
			obs := &Observation{OK: false, Error: fmt.Sprintf("tool %q is not available in this session", call.Name)}
			pad.Append(Entry{Iteration: iter, Observation: obs})
			emit.Emit(events.Event{Type: events.TypeObservation, RunID: req.RunID, Iteration: iter, Tool: call.Name, Error: obs.Error, At: time.Now()})
			observeToolCall(call.Name, false)
			continue
		}

		toolRes := e.dispatcher.Dispatch(ctx, call)
		observeToolCall(call.Name, toolRes.OK)

		result.State = StateObserving
		obs := &Observation{OK: toolRes.OK, Payload: toolRes.Payload, Error: toolRes.Reason}
		pad.Append(Entry{Iteration: iter, Observation: obs})
		e.sessions.Append(req.SessionID, call, toolRes)

		ev := events.Event{Type: events.TypeObservation, RunID: req.RunID, Iteration: iter, Tool: call.Name, At: time.Now()}
		if toolRes.OK {
			ev.Content = renderObservation(obs)
		} else {
			ev.Error = toolRes.Reason
		}
		emit.Emit(ev)
	}

	if !result.State.IsTerminal() {
		result.State = StateMaxIterations
	}
}

// finalize runs the best-effort synthesis step and emits the closing
// event for the run.
func (e *Engine) finalize(ctx context.Context, result *RunResult, pad *Scratchpad, emit events.Emitter, logger *slog.Logger) {
	switch result.State {
	case StateDone:
		// fall through to synthesis below
	case StateMaxIterations, StateTimedOut:
		// Best effort: surface what the run learned before it was
		// stopped, without inventing a conclusion.
		result.Answer = bestEffortAnswer(pad)
	case StateCancelled:
		emit.Emit(events.Event{Type: events.TypeError, RunID: result.RunID, Error: "run cancelled", At: time.Now()})
		result.Err = &RunError{Code: ErrCodeCancelled, Message: "run cancelled by caller", Recoverable: false}
		return
	case StateFailed:
		emit.Emit(events.Event{Type: events.TypeError, RunID: result.RunID, Error: result.Err.Message, At: time.Now()})
		return
	}

	if result.State == StateDone && e.finalizer != nil {
		prev := result.State
		result.State = StateFinalizing
		result.Answer = e.finalizer.Finalize(ctx, result.Answer, pad.Entries())
		result.State = prev
	}

	emit.Emit(events.Event{
		Type:      events.TypeFinalAnswer,
		RunID:     result.RunID,
		SessionID: result.SessionID,
		Content:   result.Answer,
		At:        time.Now(),
	})
	logger.Debug("Answer emitted", slog.Int("length", len(result.Answer)))
}

// checkStopped inspects the run context and moves the result to
// CANCELLED or TIMED_OUT when it is done. Reports whether the loop must
// stop.
func (e *Engine) checkStopped(ctx context.Context, result *RunResult) bool {
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			result.State = StateTimedOut
			result.Err = &RunError{Code: ErrCodeTimeout, Message: "run exceeded its time budget", Recoverable: false}
		} else {
			result.State = StateCancelled
		}
		return true
	default:
		return false
	}
}

// fail moves the result to FAILED with a classified error.
func (e *Engine) fail(result *RunResult, code string, err error) {
	result.State = StateFailed
	result.Err = &RunError{Code: code, Message: err.Error(), Recoverable: false}
}

// systemPrompt composes the base instruction with the session's recent
// tool activity and the current scratchpad digest.
func (e *Engine) systemPrompt(pad *Scratchpad, sessionNote string) string {
	prompt := e.cfg.SystemPrompt
	if prompt == "" {
		prompt = "You are an assistant for an organizational initiative tracker. Answer using the available tools."
	}
	if sessionNote != "" {
		prompt += "\n\nTool calls from earlier in this session:\n" + sessionNote
	}
	if pad.Len() == 0 {
		return prompt
	}
	return prompt + "\n\nThis is your reasoning so far:\n" + pad.Digest()
}

// sessionDigest renders prior tool calls from the session ring in the
// same Action/Observation form the scratchpad digest uses, so follow-up
// runs see what earlier runs already looked up.
func sessionDigest(calls []sessionctx.CallRecord) string {
	if len(calls) == 0 {
		return ""
	}
	var b strings.Builder
	for _, rec := range calls {
		args, _ := json.Marshal(rec.Call.Arguments)
		fmt.Fprintf(&b, "Action: %s\nAction Input: %s\n", rec.Call.Name, args)
		obs := Observation{OK: rec.Result.OK, Payload: rec.Result.Payload, Error: rec.Result.Reason}
		fmt.Fprintf(&b, "Observation: %s\n", renderObservation(&obs))
	}
	return b.String()
}

func classifyProviderError(err error) string {
	if errors.Is(err, provider.ErrNotPermitted) {
		return ErrCodePermission
	}
	return ErrCodeProvider
}

func skillsOf(schemas []tools.Schema) []string {
	seen := make(map[string]struct{}, len(schemas))
	var out []string
	for _, s := range schemas {
		if _, ok := seen[s.Skill]; ok {
			continue
		}
		seen[s.Skill] = struct{}{}
		out = append(out, s.Skill)
	}
	return out
}

// bestEffortAnswer extracts a usable partial answer from the trace when
// the loop stopped before the model finalized. Every successful
// observation contributes; list payloads are merged and de-duplicated so
// a run that repeated the same lookup does not repeat itself in the
// answer.
func bestEffortAnswer(pad *Scratchpad) string {
	var payloads []any
	for _, entry := range pad.Entries() {
		if entry.Observation != nil && entry.Observation.OK {
			payloads = append(payloads, entry.Observation.Payload)
		}
	}
	if len(payloads) == 0 {
		return "I could not complete the request within the allotted steps. Try narrowing the question."
	}
	obs := Observation{OK: true, Payload: MergeListPayloads(payloads...)}
	return "I ran out of steps before finishing. Here is what I found so far:\n" + renderObservation(&obs)
}
