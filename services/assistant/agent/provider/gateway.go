// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package provider

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// DefaultMaxOutstanding bounds concurrent in-flight backend calls across
// all runs, so discarded results from cancelled runs cannot stack into
// unbounded backend pressure.
const DefaultMaxOutstanding = 16

// Gateway is the uniform entry point to all reasoning backends.
//
// Description:
//
//	The gateway owns provider selection (tier gating against the caller's
//	role tier), a global outstanding-calls semaphore, per-provider rate
//	limits, and normalization of raw backend output into a Response.
//	Backend and network errors are returned as InvokeError values; nothing
//	below this boundary raises past it.
//
// Thread Safety: Gateway is safe for concurrent use.
type Gateway struct {
	mu          sync.RWMutex
	descriptors map[string]Descriptor
	backends    map[string]Backend
	limits      map[string]*rate.Limiter

	outstanding *semaphore.Weighted
	logger      *slog.Logger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithMaxOutstanding overrides the global in-flight backend call bound.
func WithMaxOutstanding(n int64) GatewayOption {
	return func(g *Gateway) {
		if n > 0 {
			g.outstanding = semaphore.NewWeighted(n)
		}
	}
}

// WithGatewayLogger sets the logger. Defaults to slog.Default().
func WithGatewayLogger(logger *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGateway creates an empty gateway. Register providers before use.
func NewGateway(opts ...GatewayOption) *Gateway {
	g := &Gateway{
		descriptors: make(map[string]Descriptor),
		backends:    make(map[string]Backend),
		limits:      make(map[string]*rate.Limiter),
		outstanding: semaphore.NewWeighted(DefaultMaxOutstanding),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With(slog.String("component", "provider_gateway"))
	return g
}

// Register adds a provider with its backend implementation and an optional
// requests-per-second cap (0 = unlimited).
func (g *Gateway) Register(desc Descriptor, backend Backend, rps float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.descriptors[desc.ID] = desc
	g.backends[desc.ID] = backend
	if rps > 0 {
		g.limits[desc.ID] = rate.NewLimiter(rate.Limit(rps), 1)
	}

	g.logger.Info("Provider registered",
		slog.String("provider", desc.ID),
		slog.String("tier", string(desc.Tier)),
		slog.Bool("available", desc.Available),
	)
}

// SetAvailability flips a provider's availability flag, e.g. from config
// hot reload.
func (g *Gateway) SetAvailability(id string, available bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	desc, ok := g.descriptors[id]
	if !ok {
		return
	}
	desc.Available = available
	g.descriptors[id] = desc
}

// Descriptors returns a snapshot of all registered providers, for the
// models listing endpoint.
func (g *Gateway) Descriptors() []Descriptor {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Descriptor, 0, len(g.descriptors))
	for _, d := range g.descriptors {
		out = append(out, d)
	}
	return out
}

// permitted reports whether a caller tier may select a provider tier.
// Elevated callers may use everything; standard callers only standard.
func permitted(caller, provider Tier) bool {
	if provider != TierElevated {
		return true
	}
	return caller == TierElevated
}

// Invoke selects a provider, applies gating and limits, calls the backend,
// and normalizes its output.
//
// Description:
//
//	Fails closed before any network call when the provider is unknown,
//	disabled, or restricted to a higher tier than the caller's. Transient
//	backend failures (network, empty or malformed output) come back as
//	non-permanent InvokeErrors so the loop can degrade instead of dying.
//
// Inputs:
//
//	ctx - Context for cancellation; honored while queued on the limiter.
//	providerID - The provider to invoke.
//	callerTier - The caller's role tier.
//	req - The normalized request.
//
// Outputs:
//
//	*Response - The backend decision on success.
//	error - *InvokeError on any failure.
//
// Thread Safety: Safe for concurrent use.
func (g *Gateway) Invoke(ctx context.Context, providerID string, callerTier Tier, req Request) (*Response, error) {
	g.mu.RLock()
	desc, ok := g.descriptors[providerID]
	backend := g.backends[providerID]
	limiter := g.limits[providerID]
	g.mu.RUnlock()

	if !ok || backend == nil {
		return nil, &InvokeError{Reason: ErrNotFound.Error(), Permanent: true, Err: ErrNotFound}
	}
	if !permitted(callerTier, desc.Tier) {
		g.logger.Warn("Provider selection denied",
			slog.String("provider", providerID),
			slog.String("caller_tier", string(callerTier)),
		)
		return nil, &InvokeError{Reason: ErrNotPermitted.Error(), Permanent: true, Err: ErrNotPermitted}
	}
	if !desc.Available {
		return nil, &InvokeError{Reason: ErrUnavailable.Error(), Permanent: true, Err: ErrUnavailable}
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, &InvokeError{Reason: "rate limit wait aborted", Err: err}
		}
	}
	if err := g.outstanding.Acquire(ctx, 1); err != nil {
		return nil, &InvokeError{Reason: "outstanding call limit wait aborted", Err: err}
	}
	defer g.outstanding.Release(1)

	raw, err := backend.Complete(ctx, req)
	if err != nil {
		g.logger.Error("Backend call failed",
			slog.String("provider", providerID),
			slog.String("error", err.Error()),
		)
		return nil, &InvokeError{Reason: "backend call failed", Err: err}
	}

	resp, err := ParseDecision(raw)
	if err != nil {
		g.logger.Warn("Backend output unparseable",
			slog.String("provider", providerID),
			slog.String("error", err.Error()),
		)
		return nil, &InvokeError{Reason: "unparseable backend output", Err: err}
	}
	return resp, nil
}
