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
	"sort"
	"strings"
	"unicode"
)

// Ranked text matching over a bounded candidate set. The scoring function
// is pure and deterministic so it can be tested without a database.
const (
	// scoreExactMatch is awarded when the normalized term equals the title.
	scoreExactMatch = 100.0

	// scoreSubstring is awarded when one normalized string contains the other.
	scoreSubstring = 90.0

	// tokenScoreCap keeps accumulated token scores below the substring tier.
	tokenScoreCap = 85.0

	// exactTokenPoints is the base award for an exact token match in a field.
	exactTokenPoints = 10.0

	// partialTokenPoints is the base award for a prefix/containment token match.
	partialTokenPoints = 4.0

	// minPartialTokenLen avoids noise from very short partial matches.
	minPartialTokenLen = 3
)

// fieldWeight scales token awards by the field they matched in. Title
// dominates; the long-form fields contribute fractionally.
var fieldWeights = []struct {
	weight float64
	get    func(UseCase) string
}{
	{1.0, func(u UseCase) string { return u.Title }},
	{0.5, func(u UseCase) string { return u.Description }},
	{0.35, func(u UseCase) string { return u.Problem }},
	{0.35, func(u UseCase) string { return u.Solution }},
}

// ScoredUseCase is one ranked search hit.
type ScoredUseCase struct {
	UseCase UseCase `json:"use_case"`
	Score   float64 `json:"score"`
}

// normalizeText lowercases, maps punctuation to spaces, and collapses
// whitespace so "Customer-Churn  Predictor!" and "customer churn predictor"
// normalize identically.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// ScoreUseCase computes the deterministic relevance score of one candidate
// for a search term.
//
// Description:
//
//	Exact normalized title match scores 100. Substring containment in
//	either direction scores 90. Otherwise per-word token overlap scores
//	accumulate, weighted by field, capped below the substring tier.
//
// Thread Safety: Pure function, safe for concurrent use.
func ScoreUseCase(term string, candidate UseCase) float64 {
	nt := normalizeText(term)
	if nt == "" {
		return 0
	}
	title := normalizeText(candidate.Title)

	if nt == title {
		return scoreExactMatch
	}
	if title != "" && (strings.Contains(title, nt) || strings.Contains(nt, title)) {
		return scoreSubstring
	}

	queryTokens := strings.Fields(nt)
	score := 0.0
	for _, fw := range fieldWeights {
		fieldTokens := strings.Fields(normalizeText(fw.get(candidate)))
		if len(fieldTokens) == 0 {
			continue
		}
		for _, qt := range queryTokens {
			best := 0.0
			for _, ft := range fieldTokens {
				switch {
				case qt == ft:
					best = exactTokenPoints
				case best < partialTokenPoints &&
					len(qt) >= minPartialTokenLen && len(ft) >= minPartialTokenLen &&
					(strings.HasPrefix(ft, qt) || strings.HasPrefix(qt, ft)):
					best = partialTokenPoints
				}
				if best == exactTokenPoints {
					break
				}
			}
			score += best * fw.weight
		}
	}

	if score > tokenScoreCap {
		score = tokenScoreCap
	}
	return score
}

// RankUseCases scores every candidate and returns the top-K hits in
// descending score order.
//
// Description:
//
//	Ties break on normalized title, then ID, so repeated invocations over
//	the same candidate set always return the identical ranked order.
//
// Inputs:
//
//	term - The search term.
//	candidates - The bounded candidate set.
//	topK - Maximum hits to return (<= 0 means all).
//
// Thread Safety: Pure function, safe for concurrent use.
func RankUseCases(term string, candidates []UseCase, topK int) []ScoredUseCase {
	ranked := make([]ScoredUseCase, 0, len(candidates))
	for _, c := range candidates {
		if s := ScoreUseCase(term, c); s > 0 {
			ranked = append(ranked, ScoredUseCase{UseCase: c, Score: s})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		ti, tj := normalizeText(ranked[i].UseCase.Title), normalizeText(ranked[j].UseCase.Title)
		if ti != tj {
			return ti < tj
		}
		return ranked[i].UseCase.ID < ranked[j].UseCase.ID
	})

	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}
