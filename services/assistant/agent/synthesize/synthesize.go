// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package synthesize polishes a run's raw answer into the user-facing
// response. Synthesis is strictly best effort: any failure falls back to
// the unmodified answer, never to an error the caller must handle.
package synthesize

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/InitiativeHub/services/assistant/agent"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/provider"
)

// DefaultTimeout bounds one synthesis call. A stalled polish pass must
// not hold up an otherwise finished run.
const DefaultTimeout = 15 * time.Second

// rewritePrompt instructs the model to clean up without adding facts.
const rewritePrompt = `Rewrite the draft answer below so it reads clearly for a business user.
Keep every fact, number, and name exactly as given. Do not add information.
Reply with the rewritten answer only.`

// Synthesizer rewrites final answers through a provider, falling back to
// the raw answer on any failure.
//
// Thread Safety: safe for concurrent use.
type Synthesizer struct {
	invoker    Invoker
	providerID string
	tier       provider.Tier
	timeout    time.Duration
	logger     *slog.Logger
}

// Invoker is the provider gateway slice synthesis needs.
type Invoker interface {
	Invoke(ctx context.Context, providerID string, callerTier provider.Tier, req provider.Request) (*provider.Response, error)
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithTimeout overrides the per-call synthesis budget.
func WithTimeout(d time.Duration) Option {
	return func(s *Synthesizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synthesizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Synthesizer that rewrites through the named provider.
func New(invoker Invoker, providerID string, tier provider.Tier, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		invoker:    invoker,
		providerID: providerID,
		tier:       tier,
		timeout:    DefaultTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "synthesizer"))
	return s
}

// Finalize rewrites the answer. On any failure the raw answer is
// returned unchanged.
func (s *Synthesizer) Finalize(ctx context.Context, answer string, entries []agent.Entry) string {
	if strings.TrimSpace(answer) == "" {
		return answer
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.invoker.Invoke(callCtx, s.providerID, s.tier, provider.Request{
		System: rewritePrompt,
		Messages: []provider.Message{
			{Role: "user", Content: "Draft answer:\n" + answer},
		},
	})
	if err != nil {
		s.logger.Warn("Synthesis failed, returning raw answer",
			slog.String("error", err.Error()))
		return answer
	}

	polished := strings.TrimSpace(resp.Answer)
	if polished == "" {
		// The model answered with a tool request or empty text; the
		// draft is the safer output.
		return answer
	}
	return polished
}
