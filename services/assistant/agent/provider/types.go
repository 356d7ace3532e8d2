// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package provider gives the reasoning loop a uniform interface over
// external reasoning backends: capability-tier selection, rate and
// concurrency limiting, and normalization of backend output into either a
// final answer or a single tool request.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/tools"
)

// Tier is a provider capability tier. Elevated-tier providers are
// restricted to elevated-privilege callers.
type Tier string

const (
	TierStandard Tier = "standard"
	TierElevated Tier = "elevated"
)

// Descriptor is the static configuration of one reasoning backend.
type Descriptor struct {
	// ID is the provider identifier callers select by.
	ID string `json:"id" yaml:"id"`

	// Tier gates which caller roles may select this provider.
	Tier Tier `json:"capability_tier" yaml:"capability_tier"`

	// Available marks the provider as selectable. Unavailable providers
	// fail closed without a network call.
	Available bool `json:"availability" yaml:"availability"`
}

// Message is one turn of the running conversation sent to a backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the normalized request shape for any backend.
type Request struct {
	// System carries the system instructions, including the rendered
	// scratchpad digest and tool usage protocol.
	System string

	// Messages is the running conversation, oldest first.
	Messages []Message

	// Tools is the schema catalog visible to this run. Backends use it to
	// decide whether to request a tool call.
	Tools []tools.Schema
}

// Response is the normalized backend decision: exactly one of Answer or
// ToolCall is set.
type Response struct {
	// Thought is the backend's stated rationale, when it produced one.
	Thought string

	// Answer is the final answer text (terminal).
	Answer string

	// ToolCall is the single requested tool invocation for this turn.
	ToolCall *tools.ToolCall
}

// IsFinal reports whether the response carries a final answer.
func (r *Response) IsFinal() bool {
	return r.ToolCall == nil
}

// Backend produces a raw completion for a request. Implementations wrap
// one wire protocol (OpenAI-compatible, Ollama, ...).
type Backend interface {
	// Name identifies the backend for logging.
	Name() string

	// Complete returns the raw model output for the request.
	Complete(ctx context.Context, req Request) (string, error)
}

// Sentinel failures the gateway returns. All are permanent for the
// requesting run: retrying with the same inputs cannot succeed.
var (
	ErrNotPermitted = errors.New("provider not permitted for role")
	ErrNotFound     = errors.New("provider not found")
	ErrUnavailable  = errors.New("provider unavailable")
)

// InvokeError wraps a gateway failure with a permanence classification.
//
// Description:
//
//	Permanent failures (permission denied, unknown provider, provider
//	disabled) promote the run to its failed terminal state. Transient
//	failures (network errors, unparseable output) are recorded as degraded
//	observations and the loop may continue.
type InvokeError struct {
	Reason    string
	Permanent bool
	Err       error
}

func (e *InvokeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *InvokeError) Unwrap() error { return e.Err }

// IsPermanent reports whether err is a permanent gateway failure.
func IsPermanent(err error) bool {
	var ie *InvokeError
	if errors.As(err, &ie) {
		return ie.Permanent
	}
	return false
}
