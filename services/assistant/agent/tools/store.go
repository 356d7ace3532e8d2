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

import "context"

// Initiative is one tracked initiative row as read from the store.
type Initiative struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	DomainID    string `json:"domain_id,omitempty"`
	Likes       int    `json:"likes"`
}

// UseCase is a candidate for the fuzzy search tool. Problem and Solution
// carry the free-text fields the ranker weighs fractionally.
type UseCase struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Problem     string `json:"problem"`
	Solution    string `json:"solution"`
	DomainID    string `json:"domain_id,omitempty"`
}

// Goal is an organizational goal row.
type Goal struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	DomainID string `json:"domain_id,omitempty"`
	Progress int    `json:"progress"`
}

// Domain is an organizational domain (business area) row.
type Domain struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Task is a work item attached to an initiative.
type Task struct {
	ID           string `json:"id"`
	InitiativeID string `json:"initiative_id"`
	Title        string `json:"title"`
	Done         bool   `json:"done"`
}

// Comment is a discussion entry attached to an initiative.
type Comment struct {
	ID           string `json:"id"`
	InitiativeID string `json:"initiative_id"`
	Author       string `json:"author"`
	Body         string `json:"body"`
	CreatedAt    int64  `json:"created_at"`
}

// InitiativeFilter narrows ListInitiatives. Zero values mean "no filter".
type InitiativeFilter struct {
	DomainID string
	Status   string
	Limit    int
}

// Store is the read-only persistence collaborator the tool catalog queries.
//
// Description:
//
//	Implementations issue parameterized queries only; tool arguments are
//	bound as query parameters, never concatenated into SQL. The agent core
//	treats the relational schema as external and depends solely on this
//	interface.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	ListInitiatives(ctx context.Context, filter InitiativeFilter) ([]Initiative, error)
	GetInitiative(ctx context.Context, id string) (*Initiative, error)
	ListGoals(ctx context.Context, domainID string) ([]Goal, error)
	ListDomains(ctx context.Context) ([]Domain, error)
	ListTasks(ctx context.Context, initiativeID string) ([]Task, error)
	ListComments(ctx context.Context, initiativeID string, limit int) ([]Comment, error)
	CountInitiativesByStatus(ctx context.Context, domainID string) (map[string]int, error)
	TopLikedInitiatives(ctx context.Context, limit int) ([]Initiative, error)

	// UseCaseCandidates returns the bounded candidate set the fuzzy search
	// tool ranks in process. The ranking is never pushed down as LIKE.
	UseCaseCandidates(ctx context.Context, domainID string) ([]UseCase, error)
}
