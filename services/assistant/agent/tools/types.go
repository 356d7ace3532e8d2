// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools provides the fixed catalog of read-only data-query tools
// the assistant's reasoning loop may invoke, plus the dispatcher that
// validates and executes them.
//
// Tools never mutate business state. Every failure is returned as a
// ToolResult value; no error or panic crosses the dispatcher boundary.
package tools

import (
	"context"
	"fmt"
)

// ToolCall is a request to execute a named tool with arguments.
type ToolCall struct {
	// Name is the tool identifier. Must be a member of the registry.
	Name string `json:"name"`

	// Arguments is the argument map, validated against the tool's schema.
	Arguments map[string]any `json:"arguments"`
}

// ToolResult is the outcome of a dispatch: success with a payload, or a
// failure with a reason. It is a value type; failures are data, not errors.
type ToolResult struct {
	// OK is true when the tool executed and produced a payload.
	OK bool `json:"ok"`

	// Payload is the tool-specific result (list, scalar, or object).
	Payload any `json:"payload,omitempty"`

	// Reason describes the failure when OK is false.
	Reason string `json:"reason,omitempty"`
}

// Success wraps a payload in a successful ToolResult.
func Success(payload any) ToolResult {
	return ToolResult{OK: true, Payload: payload}
}

// Failure wraps a reason in a failed ToolResult.
func Failure(format string, args ...any) ToolResult {
	return ToolResult{OK: false, Reason: fmt.Sprintf(format, args...)}
}

// ParamType is the declared type of a tool parameter.
type ParamType string

const (
	ParamString ParamType = "string"
	ParamInt    ParamType = "integer"
	ParamBool   ParamType = "boolean"
)

// ParamSpec declares one parameter of a tool's contract.
type ParamSpec struct {
	// Name is the argument key.
	Name string `json:"name"`

	// Type is the expected value type. Integers accept JSON numbers.
	Type ParamType `json:"type"`

	// Required marks the parameter as mandatory.
	Required bool `json:"required"`

	// Description is surfaced to the reasoning backend.
	Description string `json:"description"`
}

// Schema is the provider-facing declaration of one tool.
//
// Description:
//
//	Schemas are what the reasoning backend sees when choosing an action.
//	The Skill field gates visibility: a tool is only exposed to a run
//	whose active skill set contains it.
type Schema struct {
	// Name is the unique tool identifier.
	Name string `json:"name"`

	// Description tells the backend what the tool does.
	Description string `json:"description"`

	// Skill is the capability flag gating this tool's visibility.
	Skill string `json:"skill"`

	// Parameters declares the argument contract.
	Parameters []ParamSpec `json:"parameters"`
}

// Handler executes a validated tool call against the persistence
// collaborator. Arguments have already passed schema validation; handlers
// may still fail on data access and should return an error, which the
// dispatcher wraps as a Failure result.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Tool pairs a schema with its handler implementation.
type Tool struct {
	Schema  Schema
	Handler Handler
}
