// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package provider

import (
	"strings"
	"testing"
)

func TestParseDecision_ReActAction(t *testing.T) {
	input := `Thought: I should look up the initiative first.
Action: get_initiative
Action Input: {"id": "ini-42"}`

	resp, err := ParseDecision(input)
	if err != nil {
		t.Fatal(err)
	}
	if resp.IsFinal() {
		t.Fatal("expected a tool request")
	}
	if resp.ToolCall.Name != "get_initiative" {
		t.Errorf("tool = %q", resp.ToolCall.Name)
	}
	if resp.ToolCall.Arguments["id"] != "ini-42" {
		t.Errorf("arguments = %v", resp.ToolCall.Arguments)
	}
	if resp.Thought == "" {
		t.Error("expected thought to be parsed")
	}
}

func TestParseDecision_ReActFinalAnswer(t *testing.T) {
	input := `Thought: I have everything I need.
Final Answer: There are 12 active initiatives in the Retail domain.`

	resp, err := ParseDecision(input)
	if err != nil {
		t.Fatal(err)
	}
	if !resp.IsFinal() {
		t.Fatal("expected final answer")
	}
	if !strings.Contains(resp.Answer, "12 active initiatives") {
		t.Errorf("answer = %q", resp.Answer)
	}
}

func TestParseDecision_JSONToolCall(t *testing.T) {
	input := `{"type": "tool_call", "thought": "check stats", "tool": "initiative_stats", "args": {"domain_id": "d1"}}`

	resp, err := ParseDecision(input)
	if err != nil {
		t.Fatal(err)
	}
	if resp.IsFinal() || resp.ToolCall.Name != "initiative_stats" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestParseDecision_FencedJSONRecovery(t *testing.T) {
	input := "Here is my decision:\n```json\n{\"type\": \"answer\", \"content\": \"All done.\"}\n```"

	resp, err := ParseDecision(input)
	if err != nil {
		t.Fatal(err)
	}
	if !resp.IsFinal() || resp.Answer != "All done." {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestParseDecision_MalformedActionInput(t *testing.T) {
	input := "Action: list_goals\nAction Input: {broken json}"

	if _, err := ParseDecision(input); err == nil {
		t.Fatal("expected error for malformed action input")
	}
}

func TestParseDecision_FreeTextFallsBackToAnswer(t *testing.T) {
	resp, err := ParseDecision("The Retail domain currently tracks three goals.")
	if err != nil {
		t.Fatal(err)
	}
	if !resp.IsFinal() {
		t.Fatal("free text should be treated as a final answer")
	}
}

func TestParseDecision_Empty(t *testing.T) {
	if _, err := ParseDecision("   \n "); err == nil {
		t.Fatal("expected error for empty output")
	}
}

func TestParseDecision_CaseInsensitiveMarkers(t *testing.T) {
	resp, err := ParseDecision("thought: hm\naction: list_domains\naction input: {}")
	if err != nil {
		t.Fatal(err)
	}
	if resp.IsFinal() || resp.ToolCall.Name != "list_domains" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}
