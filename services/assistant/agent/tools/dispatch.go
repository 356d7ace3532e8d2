// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultToolTimeout bounds a single tool execution.
const DefaultToolTimeout = 8 * time.Second

// Dispatcher validates and executes tool calls against the registry.
//
// Description:
//
//	Dispatch is the only entry point the loop engine uses. It guarantees:
//	unknown names and invalid arguments are rejected before any handler
//	runs; handler errors and panics are converted to Failure results; and
//	every call completes within the configured per-call timeout.
//
// Thread Safety: Dispatcher is safe for concurrent use.
type Dispatcher struct {
	registry *Registry
	timeout  time.Duration
	logger   *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithToolTimeout overrides the per-call timeout.
func WithToolTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// WithDispatchLogger sets the logger. Defaults to slog.Default().
func WithDispatchLogger(logger *slog.Logger) DispatcherOption {
	return func(disp *Dispatcher) {
		if logger != nil {
			disp.logger = logger
		}
	}
}

// NewDispatcher creates a dispatcher over a registry.
func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		timeout:  DefaultToolTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(slog.String("component", "tool_dispatcher"))
	return d
}

// Dispatch validates and executes one tool call.
//
// Description:
//
//	Returns Failure("unknown tool: ...") without invoking anything when the
//	name is unregistered, Failure("invalid arguments: ...") on a schema
//	violation, Failure("tool timeout") when the handler exceeds the per-call
//	budget, and otherwise wraps the handler outcome. Never panics and never
//	returns a Go error: the loop engine consumes failures as observations.
//
// Thread Safety: Safe for concurrent use.
func (d *Dispatcher) Dispatch(ctx context.Context, call ToolCall) ToolResult {
	tool, ok := d.registry.Get(call.Name)
	if !ok {
		d.logger.Warn("Unknown tool requested", slog.String("tool", call.Name))
		return Failure("unknown tool: %s", call.Name)
	}

	args, err := coerceArguments(tool.Schema, call.Arguments)
	if err != nil {
		d.logger.Warn("Tool argument validation failed",
			slog.String("tool", call.Name),
			slog.String("error", err.Error()),
		)
		return Failure("invalid arguments: %s", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	result := d.execute(callCtx, tool, args)

	d.logger.Info("Tool dispatched",
		slog.String("tool", call.Name),
		slog.Bool("ok", result.OK),
		slog.Duration("elapsed", time.Since(start)),
	)
	return result
}

// execute runs the handler with panic containment and timeout enforcement.
func (d *Dispatcher) execute(ctx context.Context, tool Tool, args map[string]any) ToolResult {
	type outcome struct {
		payload any
		err     error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		payload, err := tool.Handler(ctx, args)
		done <- outcome{payload: payload, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return Failure("%s", out.err.Error())
		}
		return Success(out.payload)
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return Failure("tool timeout")
		}
		return Failure("tool cancelled")
	}
}

// coerceArguments checks required fields and coerces values to the declared
// parameter types. Unknown argument keys are dropped rather than rejected;
// backends routinely invent extras.
func coerceArguments(schema Schema, raw map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(schema.Parameters))
	var missing []string

	for _, p := range schema.Parameters {
		v, present := raw[p.Name]
		if !present || v == nil {
			if p.Required {
				missing = append(missing, p.Name)
			}
			continue
		}

		coerced, err := coerceValue(p.Type, v)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %s", p.Name, err)
		}
		out[p.Name] = coerced
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required parameter(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}

func coerceValue(t ParamType, v any) (any, error) {
	switch t {
	case ParamString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return s, nil
	case ParamInt:
		switch n := v.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case float64:
			// JSON numbers arrive as float64.
			if n != float64(int(n)) {
				return nil, fmt.Errorf("expected integer, got %v", n)
			}
			return int(n), nil
		default:
			return nil, fmt.Errorf("expected integer, got %T", v)
		}
	case ParamBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean, got %T", v)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported parameter type %q", t)
	}
}
