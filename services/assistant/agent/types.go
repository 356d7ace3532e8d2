// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agent implements the reason-act loop that answers user
// questions over organizational initiative data. The Engine drives a
// language model through bounded think/act/observe iterations, dispatches
// tool calls through the registry, and reports progress through the
// events seam.
package agent

import (
	"fmt"
	"time"
)

// RunState is the lifecycle state of one agent run.
type RunState string

const (
	StateInit          RunState = "INIT"
	StateThinking      RunState = "THINKING"
	StateActingOnTool  RunState = "ACTING_ON_TOOL"
	StateObserving     RunState = "OBSERVING"
	StateFinalizing    RunState = "FINALIZING"
	StateDone          RunState = "DONE"
	StateMaxIterations RunState = "MAX_ITERATIONS_REACHED"
	StateTimedOut      RunState = "TIMED_OUT"
	StateFailed        RunState = "FAILED"
	StateCancelled     RunState = "CANCELLED"
)

// IsTerminal reports whether the state ends a run. A terminal state is
// never left once entered.
func (s RunState) IsTerminal() bool {
	switch s {
	case StateDone, StateMaxIterations, StateTimedOut, StateFailed, StateCancelled:
		return true
	}
	return false
}

// RunError carries the classified failure of a run.
type RunError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

// Error implements the error interface.
func (e *RunError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes attached to RunError.
const (
	ErrCodeProvider   = "provider_error"
	ErrCodePermission = "permission_denied"
	ErrCodeParse      = "parse_error"
	ErrCodeCancelled  = "cancelled"
	ErrCodeTimeout    = "timeout"
	ErrCodeInternal   = "internal_error"
)

// RunResult is the complete outcome of one agent run.
type RunResult struct {
	RunID         string        `json:"run_id"`
	SessionID     string        `json:"session_id"`
	Answer        string        `json:"answer"`
	Scratchpad    []Entry       `json:"scratchpad"`
	Iterations    int           `json:"iterations"`
	State         RunState      `json:"state"`
	Provider      string        `json:"provider"`
	ExecutionTime time.Duration `json:"execution_time"`
	Err           *RunError     `json:"error,omitempty"`
}

// EngineConfig bounds a run's execution.
type EngineConfig struct {
	// MaxIterations caps think/act cycles per run.
	MaxIterations int `yaml:"max_iterations"`

	// RunTimeout bounds a whole run's wall-clock time.
	RunTimeout time.Duration `yaml:"run_timeout"`

	// DefaultSkills is the tool surface a session sees when it has no
	// skills of its own.
	DefaultSkills []string `yaml:"default_skills"`

	// SystemPrompt is the base instruction prepended to every provider
	// request.
	SystemPrompt string `yaml:"system_prompt"`
}

// Default engine bounds.
const (
	DefaultMaxIterations = 8
	DefaultRunTimeout    = 2 * time.Minute
)

// ApplyDefaults fills zero-valued fields.
func (c *EngineConfig) ApplyDefaults() {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = DefaultRunTimeout
	}
}

// Validate rejects configurations that could never complete a run.
func (c *EngineConfig) Validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", c.MaxIterations)
	}
	if c.RunTimeout <= 0 {
		return fmt.Errorf("run_timeout must be positive, got %s", c.RunTimeout)
	}
	return nil
}
