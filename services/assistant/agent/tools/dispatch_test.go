// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func countingTool(name string, calls *atomic.Int64, handler Handler) Tool {
	return Tool{
		Schema: Schema{
			Name:  name,
			Skill: SkillInitiatives,
			Parameters: []ParamSpec{
				{Name: "id", Type: ParamString, Required: true},
				{Name: "limit", Type: ParamInt},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			calls.Add(1)
			if handler != nil {
				return handler(ctx, args)
			}
			return "ok", nil
		},
	}
}

func TestDispatch_UnknownTool(t *testing.T) {
	var calls atomic.Int64
	r := NewRegistry()
	if err := r.Register(countingTool("known", &calls, nil)); err != nil {
		t.Fatal(err)
	}
	d := NewDispatcher(r)

	res := d.Dispatch(context.Background(), ToolCall{Name: "nope", Arguments: map[string]any{}})
	if res.OK {
		t.Fatal("expected failure for unknown tool")
	}
	if !strings.Contains(res.Reason, "unknown tool") {
		t.Errorf("reason = %q, want unknown tool marker", res.Reason)
	}
	if calls.Load() != 0 {
		t.Errorf("handler invoked %d times for unknown tool, want 0", calls.Load())
	}
}

func TestDispatch_MissingRequiredArgument(t *testing.T) {
	var calls atomic.Int64
	r := NewRegistry()
	if err := r.Register(countingTool("lookup", &calls, nil)); err != nil {
		t.Fatal(err)
	}
	d := NewDispatcher(r)

	res := d.Dispatch(context.Background(), ToolCall{Name: "lookup", Arguments: map[string]any{}})
	if res.OK {
		t.Fatal("expected failure for missing required argument")
	}
	if !strings.Contains(res.Reason, "invalid arguments") {
		t.Errorf("reason = %q, want invalid arguments marker", res.Reason)
	}
	if calls.Load() != 0 {
		t.Errorf("handler invoked %d times on validation failure, want 0", calls.Load())
	}
}

func TestDispatch_TypeCoercion(t *testing.T) {
	var calls atomic.Int64
	var seen map[string]any
	r := NewRegistry()
	err := r.Register(countingTool("lookup", &calls, func(_ context.Context, args map[string]any) (any, error) {
		seen = args
		return "ok", nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	d := NewDispatcher(r)

	// JSON decodes numbers as float64; the dispatcher must coerce.
	res := d.Dispatch(context.Background(), ToolCall{
		Name:      "lookup",
		Arguments: map[string]any{"id": "i-1", "limit": float64(7), "extra": "dropped"},
	})
	if !res.OK {
		t.Fatalf("dispatch failed: %s", res.Reason)
	}
	if seen["limit"] != 7 {
		t.Errorf("limit = %v (%T), want int 7", seen["limit"], seen["limit"])
	}
	if _, ok := seen["extra"]; ok {
		t.Error("undeclared argument should have been dropped")
	}
}

func TestDispatch_HandlerErrorBecomesFailure(t *testing.T) {
	var calls atomic.Int64
	r := NewRegistry()
	err := r.Register(countingTool("lookup", &calls, func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("store unavailable")
	}))
	if err != nil {
		t.Fatal(err)
	}
	d := NewDispatcher(r)

	res := d.Dispatch(context.Background(), ToolCall{Name: "lookup", Arguments: map[string]any{"id": "x"}})
	if res.OK {
		t.Fatal("expected failure")
	}
	if res.Reason != "store unavailable" {
		t.Errorf("reason = %q", res.Reason)
	}
}

func TestDispatch_PanicContained(t *testing.T) {
	var calls atomic.Int64
	r := NewRegistry()
	err := r.Register(countingTool("lookup", &calls, func(context.Context, map[string]any) (any, error) {
		panic("boom")
	}))
	if err != nil {
		t.Fatal(err)
	}
	d := NewDispatcher(r)

	res := d.Dispatch(context.Background(), ToolCall{Name: "lookup", Arguments: map[string]any{"id": "x"}})
	if res.OK {
		t.Fatal("expected failure from panicking handler")
	}
	if !strings.Contains(res.Reason, "panic") {
		t.Errorf("reason = %q, want panic marker", res.Reason)
	}
}

func TestDispatch_Timeout(t *testing.T) {
	var calls atomic.Int64
	r := NewRegistry()
	err := r.Register(countingTool("slow", &calls, func(ctx context.Context, _ map[string]any) (any, error) {
		select {
		case <-time.After(5 * time.Second):
			return "late", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}))
	if err != nil {
		t.Fatal(err)
	}
	d := NewDispatcher(r, WithToolTimeout(30*time.Millisecond))

	res := d.Dispatch(context.Background(), ToolCall{Name: "slow", Arguments: map[string]any{"id": "x"}})
	if res.OK {
		t.Fatal("expected timeout failure")
	}
	if res.Reason != "tool timeout" {
		t.Errorf("reason = %q, want %q", res.Reason, "tool timeout")
	}
}

func TestRegistry_SkillFiltering(t *testing.T) {
	store := NewMemStore()
	r := BuiltinCatalog(store)

	all := r.SchemasForSkills(AllSkills)
	if len(all) != r.Count() {
		t.Errorf("full skill set exposes %d of %d tools", len(all), r.Count())
	}

	social := r.SchemasForSkills([]string{SkillSocial})
	for _, s := range social {
		if s.Skill != SkillSocial {
			t.Errorf("schema %q leaked from skill %q", s.Name, s.Skill)
		}
	}
	if len(social) == 0 {
		t.Error("social skill should expose at least one tool")
	}

	if got := r.SchemasForSkills(nil); len(got) != 0 {
		t.Errorf("empty skill set must expose nothing, got %d", len(got))
	}

	if r.Allowed("search_use_cases", []string{SkillSocial}) {
		t.Error("search_use_cases must not be allowed under social skill only")
	}
	if !r.Allowed("search_use_cases", []string{SkillInitiatives}) {
		t.Error("search_use_cases should be allowed under initiatives skill")
	}
}

func TestBuiltinCatalog_SearchUseCases(t *testing.T) {
	store := NewMemStore()
	store.UseCases = []UseCase{
		{ID: "uc-1", Title: "Customer Churn Predictor"},
		{ID: "uc-2", Title: "Inventory Forecaster"},
	}
	r := BuiltinCatalog(store)
	d := NewDispatcher(r)

	res := d.Dispatch(context.Background(), ToolCall{
		Name:      "search_use_cases",
		Arguments: map[string]any{"term": "customer churn predictor"},
	})
	if !res.OK {
		t.Fatalf("dispatch failed: %s", res.Reason)
	}
	hits, ok := res.Payload.([]ScoredUseCase)
	if !ok {
		t.Fatalf("payload type %T", res.Payload)
	}
	if len(hits) == 0 || hits[0].UseCase.ID != "uc-1" || hits[0].Score != 100 {
		t.Fatalf("unexpected hits: %+v", hits)
	}
}
