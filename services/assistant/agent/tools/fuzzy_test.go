// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"reflect"
	"testing"
)

func TestScoreUseCase_ExactNormalizedMatch(t *testing.T) {
	candidate := UseCase{ID: "uc-1", Title: "Customer Churn Predictor"}

	terms := []string{
		"customer churn predictor",
		"Customer Churn Predictor",
		"customer-churn predictor",
		"CUSTOMER CHURN, PREDICTOR!",
	}
	for _, term := range terms {
		if got := ScoreUseCase(term, candidate); got != 100 {
			t.Errorf("ScoreUseCase(%q) = %v, want 100", term, got)
		}
	}
}

func TestScoreUseCase_Substring(t *testing.T) {
	candidate := UseCase{ID: "uc-1", Title: "Customer Churn Predictor"}

	if got := ScoreUseCase("churn predictor", candidate); got != 90 {
		t.Errorf("substring score = %v, want 90", got)
	}
}

func TestScoreUseCase_TokenOverlapWeighting(t *testing.T) {
	titleHit := UseCase{ID: "a", Title: "churn dashboard", Description: "metrics"}
	descHit := UseCase{ID: "b", Title: "metrics viewer", Description: "churn dashboard"}

	// The term overlaps both candidates on the "churn" token only; the
	// title-field hit must outrank the description-field hit.
	term := "churn model"
	st := ScoreUseCase(term, titleHit)
	sd := ScoreUseCase(term, descHit)
	if st <= sd {
		t.Errorf("title hit %v should outrank description hit %v", st, sd)
	}
	if st >= 90 || sd >= 90 {
		t.Errorf("token scores must stay below the substring tier, got %v and %v", st, sd)
	}
}

func TestScoreUseCase_NoMatch(t *testing.T) {
	candidate := UseCase{ID: "uc-1", Title: "Inventory Forecaster"}
	if got := ScoreUseCase("zzz qqq", candidate); got != 0 {
		t.Errorf("score = %v, want 0", got)
	}
}

func TestRankUseCases_DeterministicOrder(t *testing.T) {
	candidates := []UseCase{
		{ID: "3", Title: "Churn Alerts", Description: "notify on churn risk"},
		{ID: "1", Title: "Customer Churn Predictor"},
		{ID: "2", Title: "Revenue Planner", Problem: "customer churn hurts revenue"},
	}

	first := RankUseCases("customer churn predictor", candidates, 10)
	if len(first) == 0 || first[0].UseCase.ID != "1" {
		t.Fatalf("expected exact-match candidate first, got %+v", first)
	}
	if first[0].Score != 100 {
		t.Errorf("top score = %v, want 100", first[0].Score)
	}

	for i := 0; i < 20; i++ {
		again := RankUseCases("customer churn predictor", candidates, 10)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("ranking not deterministic on run %d:\n%+v\nvs\n%+v", i, first, again)
		}
	}
}

func TestRankUseCases_TopKTruncation(t *testing.T) {
	candidates := []UseCase{
		{ID: "1", Title: "churn one"},
		{ID: "2", Title: "churn two"},
		{ID: "3", Title: "churn three"},
	}
	got := RankUseCases("churn", candidates, 2)
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}
