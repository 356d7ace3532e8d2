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
	"sort"
	"sync"
)

// MemStore is an in-memory Store used for tests and for running the
// service in lightweight mode without a database.
//
// Thread Safety: MemStore is safe for concurrent use.
type MemStore struct {
	mu          sync.RWMutex
	Initiatives []Initiative
	UseCases    []UseCase
	Goals       []Goal
	Domains     []Domain
	Tasks       []Task
	Comments    []Comment
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// ListInitiatives implements Store.
func (m *MemStore) ListInitiatives(_ context.Context, filter InitiativeFilter) ([]Initiative, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Initiative, 0, len(m.Initiatives))
	for _, ini := range m.Initiatives {
		if filter.DomainID != "" && ini.DomainID != filter.DomainID {
			continue
		}
		if filter.Status != "" && ini.Status != filter.Status {
			continue
		}
		out = append(out, ini)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// GetInitiative implements Store. Returns (nil, nil) when absent.
func (m *MemStore) GetInitiative(_ context.Context, id string) (*Initiative, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ini := range m.Initiatives {
		if ini.ID == id {
			cp := ini
			return &cp, nil
		}
	}
	return nil, nil
}

// ListGoals implements Store.
func (m *MemStore) ListGoals(_ context.Context, domainID string) ([]Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Goal, 0, len(m.Goals))
	for _, g := range m.Goals {
		if domainID != "" && g.DomainID != domainID {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

// ListDomains implements Store.
func (m *MemStore) ListDomains(_ context.Context) ([]Domain, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Domain(nil), m.Domains...), nil
}

// ListTasks implements Store.
func (m *MemStore) ListTasks(_ context.Context, initiativeID string) ([]Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Task
	for _, t := range m.Tasks {
		if t.InitiativeID == initiativeID {
			out = append(out, t)
		}
	}
	return out, nil
}

// ListComments implements Store. Most recent first.
func (m *MemStore) ListComments(_ context.Context, initiativeID string, limit int) ([]Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Comment
	for _, c := range m.Comments {
		if c.InitiativeID == initiativeID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountInitiativesByStatus implements Store.
func (m *MemStore) CountInitiativesByStatus(_ context.Context, domainID string) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int)
	for _, ini := range m.Initiatives {
		if domainID != "" && ini.DomainID != domainID {
			continue
		}
		counts[ini.Status]++
	}
	return counts, nil
}

// TopLikedInitiatives implements Store.
func (m *MemStore) TopLikedInitiatives(_ context.Context, limit int) ([]Initiative, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := append([]Initiative(nil), m.Initiatives...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Likes > out[j].Likes })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UseCaseCandidates implements Store.
func (m *MemStore) UseCaseCandidates(_ context.Context, domainID string) ([]UseCase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]UseCase, 0, len(m.UseCases))
	for _, uc := range m.UseCases {
		if domainID != "" && uc.DomainID != domainID {
			continue
		}
		out = append(out, uc)
	}
	return out, nil
}
