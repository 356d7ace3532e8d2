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
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/tools"
)

// Backends answer in one of two shapes: a JSON decision object
//
//	{"type": "tool_call", "thought": "...", "tool": "...", "args": {...}}
//	{"type": "answer", "thought": "...", "content": "..."}
//
// or ReAct-style structured text
//
//	Thought: ...
//	Action: tool_name
//	Action Input: {"param": "value"}
//
//	Thought: ...
//	Final Answer: ...
//
// ParseDecision tries strict JSON, then one lenient recovery pass that
// strips known wrapping markers, then the text form.

type jsonDecision struct {
	Type    string         `json:"type"`
	Thought string         `json:"thought,omitempty"`
	Content string         `json:"content,omitempty"`
	Tool    string         `json:"tool,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
}

var (
	// fencePattern matches a fenced code block, with or without a language tag.
	fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

	thoughtPattern     = regexp.MustCompile(`(?i)Thought\s*:\s*(.+?)(?:\n(?:Action|Final Answer)|$)`)
	actionPattern      = regexp.MustCompile(`(?i)Action\s*:\s*(\S+)`)
	actionInputPattern = regexp.MustCompile(`(?is)Action\s+Input\s*:\s*(\{.*?\})(?:\n|$)`)
	finalAnswerPattern = regexp.MustCompile(`(?is)Final\s+Answer\s*:\s*(.+)$`)
)

// ParseDecision normalizes raw backend output into a Response.
//
// Description:
//
//	Attempts, in order: strict JSON decision object; JSON after stripping
//	fenced-code wrappers (the one lenient recovery pass); ReAct structured
//	text. Free text with neither structure is accepted as a final answer,
//	because refusing it would fail runs on stylistic drift alone.
//
// Outputs:
//
//	*Response - The parsed decision. Never nil on success.
//	error - Non-nil only when the output is empty or a tool call is
//	malformed beyond recovery.
//
// Thread Safety: Pure function, safe for concurrent use.
func ParseDecision(raw string) (*Response, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, fmt.Errorf("empty backend output")
	}

	if resp, ok := parseJSONDecision(text); ok {
		return resp, nil
	}
	if m := fencePattern.FindStringSubmatch(text); len(m) > 1 {
		if resp, ok := parseJSONDecision(strings.TrimSpace(m[1])); ok {
			return resp, nil
		}
	}

	return parseReActText(text)
}

func parseJSONDecision(text string) (*Response, bool) {
	if !strings.HasPrefix(text, "{") {
		return nil, false
	}
	var d jsonDecision
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		return nil, false
	}

	switch d.Type {
	case "tool_call":
		if d.Tool == "" {
			return nil, false
		}
		args := d.Args
		if args == nil {
			args = map[string]any{}
		}
		return &Response{
			Thought:  d.Thought,
			ToolCall: &tools.ToolCall{Name: d.Tool, Arguments: args},
		}, true
	case "answer", "final_answer":
		return &Response{Thought: d.Thought, Answer: d.Content}, true
	default:
		return nil, false
	}
}

func parseReActText(text string) (*Response, error) {
	resp := &Response{}

	if m := thoughtPattern.FindStringSubmatch(text); len(m) > 1 {
		resp.Thought = strings.TrimSpace(m[1])
	}

	if m := finalAnswerPattern.FindStringSubmatch(text); len(m) > 1 {
		resp.Answer = strings.TrimSpace(m[1])
		return resp, nil
	}

	if m := actionPattern.FindStringSubmatch(text); len(m) > 1 {
		call := &tools.ToolCall{Name: strings.TrimSpace(m[1]), Arguments: map[string]any{}}
		if im := actionInputPattern.FindStringSubmatch(text); len(im) > 1 {
			if err := json.Unmarshal([]byte(im[1]), &call.Arguments); err != nil {
				return nil, fmt.Errorf("malformed action input: %w", err)
			}
		}
		resp.ToolCall = call
		return resp, nil
	}

	// Neither structure: treat the whole output as the final answer.
	resp.Answer = text
	return resp, nil
}
