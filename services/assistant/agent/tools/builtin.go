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
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Skill names gating catalog visibility.
const (
	SkillInitiatives = "initiatives"
	SkillGoals       = "goals"
	SkillAnalytics   = "analytics"
	SkillSocial      = "social"
)

// AllSkills is the full capability set, used when a session has no
// explicit skill configuration.
var AllSkills = []string{SkillInitiatives, SkillGoals, SkillAnalytics, SkillSocial}

const (
	defaultListLimit      = 25
	defaultSearchTopK     = 5
	maxListLimit          = 100
	candidateCacheTTL     = 30 * time.Second
	candidateFetchTimeout = 10 * time.Second
)

// candidateCache serves fuzzy-search candidate sets with a short TTL and
// singleflight de-duplication: sequential lookups inside the TTL reuse
// the last fetch, and overlapping runs searching the same domain do not
// stampede the store.
type candidateCache struct {
	store  Store
	flight singleflight.Group

	mu   sync.Mutex
	sets map[string]cachedCandidates
}

type cachedCandidates struct {
	items   []UseCase
	fetched time.Time
}

func newCandidateCache(store Store) *candidateCache {
	return &candidateCache{store: store, sets: make(map[string]cachedCandidates)}
}

func (c *candidateCache) get(ctx context.Context, domainID string) ([]UseCase, error) {
	c.mu.Lock()
	if cached, ok := c.sets[domainID]; ok && time.Since(cached.fetched) < candidateCacheTTL {
		c.mu.Unlock()
		return cached.items, nil
	}
	c.mu.Unlock()

	v, err, _ := c.flight.Do(domainID, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), candidateFetchTimeout)
		defer cancel()
		items, err := c.store.UseCaseCandidates(fetchCtx, domainID)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.sets[domainID] = cachedCandidates{items: items, fetched: time.Now()}
		c.mu.Unlock()
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]UseCase), nil
}

// BuiltinCatalog assembles the fixed initiative-domain tool catalog.
//
// Description:
//
//	Every tool is a read-only query against the store, optionally scoped
//	by a domain identifier. The catalog is the complete set of operations
//	the reasoning loop may take; nothing here mutates persisted state.
func BuiltinCatalog(store Store) *Registry {
	r := NewRegistry()
	cache := newCandidateCache(store)

	mustRegister := func(t Tool) {
		if err := r.Register(t); err != nil {
			panic(fmt.Sprintf("builtin catalog: %v", err))
		}
	}

	mustRegister(Tool{
		Schema: Schema{
			Name:        "list_initiatives",
			Description: "List initiatives, optionally filtered by domain and status.",
			Skill:       SkillInitiatives,
			Parameters: []ParamSpec{
				{Name: "domain_id", Type: ParamString, Description: "Restrict to one domain."},
				{Name: "status", Type: ParamString, Description: "Filter by status (e.g. active, done)."},
				{Name: "limit", Type: ParamInt, Description: "Maximum rows to return."},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return store.ListInitiatives(ctx, InitiativeFilter{
				DomainID: stringArg(args, "domain_id"),
				Status:   stringArg(args, "status"),
				Limit:    limitArg(args, "limit", defaultListLimit),
			})
		},
	})

	mustRegister(Tool{
		Schema: Schema{
			Name:        "get_initiative",
			Description: "Fetch one initiative by its identifier.",
			Skill:       SkillInitiatives,
			Parameters: []ParamSpec{
				{Name: "id", Type: ParamString, Required: true, Description: "Initiative identifier."},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			ini, err := store.GetInitiative(ctx, stringArg(args, "id"))
			if err != nil {
				return nil, err
			}
			if ini == nil {
				return nil, fmt.Errorf("initiative not found")
			}
			return ini, nil
		},
	})

	mustRegister(Tool{
		Schema: Schema{
			Name:        "search_use_cases",
			Description: "Fuzzy search use cases by title, description, problem, and solution text.",
			Skill:       SkillInitiatives,
			Parameters: []ParamSpec{
				{Name: "term", Type: ParamString, Required: true, Description: "Search term."},
				{Name: "domain_id", Type: ParamString, Description: "Restrict candidates to one domain."},
				{Name: "limit", Type: ParamInt, Description: "Maximum ranked hits."},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			candidates, err := cache.get(ctx, stringArg(args, "domain_id"))
			if err != nil {
				return nil, err
			}
			return RankUseCases(stringArg(args, "term"), candidates, limitArg(args, "limit", defaultSearchTopK)), nil
		},
	})

	mustRegister(Tool{
		Schema: Schema{
			Name:        "list_goals",
			Description: "List organizational goals, optionally scoped to a domain.",
			Skill:       SkillGoals,
			Parameters: []ParamSpec{
				{Name: "domain_id", Type: ParamString, Description: "Restrict to one domain."},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return store.ListGoals(ctx, stringArg(args, "domain_id"))
		},
	})

	mustRegister(Tool{
		Schema: Schema{
			Name:        "list_domains",
			Description: "List all organizational domains.",
			Skill:       SkillGoals,
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return store.ListDomains(ctx)
		},
	})

	mustRegister(Tool{
		Schema: Schema{
			Name:        "list_tasks",
			Description: "List tasks attached to an initiative.",
			Skill:       SkillInitiatives,
			Parameters: []ParamSpec{
				{Name: "initiative_id", Type: ParamString, Required: true, Description: "Initiative identifier."},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return store.ListTasks(ctx, stringArg(args, "initiative_id"))
		},
	})

	mustRegister(Tool{
		Schema: Schema{
			Name:        "initiative_stats",
			Description: "Count initiatives grouped by status, optionally scoped to a domain.",
			Skill:       SkillAnalytics,
			Parameters: []ParamSpec{
				{Name: "domain_id", Type: ParamString, Description: "Restrict to one domain."},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return store.CountInitiativesByStatus(ctx, stringArg(args, "domain_id"))
		},
	})

	mustRegister(Tool{
		Schema: Schema{
			Name:        "top_liked_initiatives",
			Description: "List the initiatives with the most likes.",
			Skill:       SkillSocial,
			Parameters: []ParamSpec{
				{Name: "limit", Type: ParamInt, Description: "Maximum rows to return."},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return store.TopLikedInitiatives(ctx, limitArg(args, "limit", defaultListLimit))
		},
	})

	mustRegister(Tool{
		Schema: Schema{
			Name:        "recent_comments",
			Description: "List the most recent comments on an initiative.",
			Skill:       SkillSocial,
			Parameters: []ParamSpec{
				{Name: "initiative_id", Type: ParamString, Required: true, Description: "Initiative identifier."},
				{Name: "limit", Type: ParamInt, Description: "Maximum rows to return."},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return store.ListComments(ctx, stringArg(args, "initiative_id"), limitArg(args, "limit", defaultListLimit))
		},
	})

	return r
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func limitArg(args map[string]any, key string, def int) int {
	n, ok := args[key].(int)
	if !ok || n <= 0 {
		return def
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}
