// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sessionctx holds per-session state shared across runs: the
// bounded recent tool-call window and the active skill set.
//
// The store uses per-key locking so two runs on different sessions never
// serialize against each other; only concurrent runs sharing one session
// identifier contend on that session's entry.
package sessionctx

import (
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/tools"
)

// DefaultRingCapacity is the recent tool-call window size per session.
const DefaultRingCapacity = 20

// DefaultSessionTTL is how long an idle session survives before the
// janitor evicts it.
const DefaultSessionTTL = 30 * time.Minute

// DefaultSweepInterval is how often the janitor scans for idle sessions.
const DefaultSweepInterval = time.Minute

// CallRecord is one remembered tool invocation with its outcome.
type CallRecord struct {
	Call   tools.ToolCall   `json:"call"`
	Result tools.ToolResult `json:"result"`
	At     time.Time        `json:"at"`
}

// Snapshot is a copy of one session's state, safe to hand to callers.
type Snapshot struct {
	SessionID   string       `json:"session_id"`
	RecentCalls []CallRecord `json:"recent_calls"`
	Skills      []string     `json:"skills"`
	LastSeen    time.Time    `json:"last_seen"`
}

// entry is the mutable per-session record. Its mutex covers only this
// session; the store map mutex is held only for lookup/insert.
type entry struct {
	mu       sync.Mutex
	ring     []CallRecord
	ringCap  int
	skills   []string
	lastSeen time.Time
}

// Store maps session identifiers to their context.
//
// Description:
//
//	Get creates an empty context on first use. Append pushes into a
//	bounded ring buffer, evicting the oldest record beyond capacity.
//	A background janitor evicts sessions idle longer than the TTL so the
//	map stays bounded. Close stops the janitor.
//
// Thread Safety: Store is safe for concurrent use; unrelated sessions do
// not contend.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	ringCap   int
	ttl       time.Duration
	sweepStop chan struct{}
	stopOnce  sync.Once
	logger    *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRingCapacity overrides the recent-call window size.
func WithRingCapacity(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.ringCap = n
		}
	}
}

// WithSessionTTL overrides the idle eviction TTL.
func WithSessionTTL(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a session context store and starts its janitor.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		sessions:  make(map[string]*entry),
		ringCap:   DefaultRingCapacity,
		ttl:       DefaultSessionTTL,
		sweepStop: make(chan struct{}),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "session_store"))

	go s.janitor(DefaultSweepInterval)
	return s
}

// Close stops the background janitor. Idempotent.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.sweepStop) })
}

// get returns the entry for a session, creating it on miss.
func (s *Store) get(sessionID string) *entry {
	s.mu.RLock()
	e, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.sessions[sessionID]; ok {
		return e
	}
	e = &entry{ringCap: s.ringCap, lastSeen: time.Now()}
	s.sessions[sessionID] = e
	s.logger.Debug("Session context created", slog.String("session_id", sessionID))
	return e
}

// Get returns a snapshot of a session's context, creating an empty
// context on first use.
func (s *Store) Get(sessionID string) Snapshot {
	e := s.get(sessionID)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSeen = time.Now()
	return Snapshot{
		SessionID:   sessionID,
		RecentCalls: append([]CallRecord(nil), e.ring...),
		Skills:      append([]string(nil), e.skills...),
		LastSeen:    e.lastSeen,
	}
}

// Append records a tool call and its result in the session's ring buffer,
// evicting the oldest record beyond capacity.
func (s *Store) Append(sessionID string, call tools.ToolCall, result tools.ToolResult) {
	e := s.get(sessionID)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSeen = time.Now()
	e.ring = append(e.ring, CallRecord{Call: call, Result: result, At: e.lastSeen})
	if len(e.ring) > e.ringCap {
		e.ring = e.ring[len(e.ring)-e.ringCap:]
	}
}

// SetSkills replaces a session's active skill set.
func (s *Store) SetSkills(sessionID string, skills []string) {
	e := s.get(sessionID)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSeen = time.Now()
	e.skills = append([]string(nil), skills...)
}

// Skills returns a session's active skill set, or fallback when the
// session has none configured.
func (s *Store) Skills(sessionID string, fallback []string) []string {
	e := s.get(sessionID)

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.skills) == 0 {
		return append([]string(nil), fallback...)
	}
	return append([]string(nil), e.skills...)
}

// Delete evicts a session's context.
func (s *Store) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// janitor evicts sessions idle longer than the TTL.
func (s *Store) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.sweepStop:
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

// sweep removes idle sessions. Split out for tests.
func (s *Store) sweep(now time.Time) {
	var expired []string

	s.mu.RLock()
	for id, e := range s.sessions {
		e.mu.Lock()
		idle := now.Sub(e.lastSeen)
		e.mu.Unlock()
		if idle > s.ttl {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()

	if len(expired) == 0 {
		return
	}

	s.mu.Lock()
	for _, id := range expired {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	s.logger.Info("Evicted idle sessions", slog.Int("count", len(expired)))
}
