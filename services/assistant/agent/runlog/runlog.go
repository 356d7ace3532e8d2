// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package runlog archives terminated agent runs in an embedded BadgerDB
// so operators can inspect a run's full trace after the fact. Records
// carry a TTL; the archive is a short-term debugging window, not a data
// warehouse.
package runlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/InitiativeHub/services/assistant/agent"
)

// DefaultTTL is how long an archived run survives.
const DefaultTTL = 24 * time.Hour

// ErrNotFound indicates no archived run exists for the identifier.
var ErrNotFound = errors.New("archived run not found")

// Key layout:
//
//	run:<run_id>               -> JSON RunResult
//	sess:<session_id>:<run_id> -> run_id (index)
const (
	runPrefix     = "run:"
	sessionPrefix = "sess:"
)

// Archive stores terminated run results.
//
// Thread Safety: Archive is safe for concurrent use; BadgerDB handles
// transaction isolation.
type Archive struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures an Archive.
type Option func(*Archive)

// WithTTL overrides the record lifetime.
func WithTTL(d time.Duration) Option {
	return func(a *Archive) {
		if d > 0 {
			a.ttl = d
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// Open creates an archive backed by a BadgerDB at path. The directory is
// created when missing.
func Open(path string, opts ...Option) (*Archive, error) {
	if path == "" {
		return nil, errors.New("archive path is required")
	}
	if err := os.MkdirAll(path, 0750); err != nil {
		return nil, fmt.Errorf("create archive directory %s: %w", path, err)
	}
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open run archive: %w", err)
	}
	return newArchive(db, opts...), nil
}

// OpenInMemory creates an archive with no disk persistence. Used in
// tests and in lightweight deployments.
func OpenInMemory(opts ...Option) (*Archive, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open in-memory run archive: %w", err)
	}
	return newArchive(db, opts...), nil
}

func newArchive(db *badger.DB, opts ...Option) *Archive {
	a := &Archive{db: db, ttl: DefaultTTL, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(slog.String("component", "run_archive"))
	return a
}

// Close releases the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Put archives a terminated run. Non-terminal results are rejected so
// the archive never shows a run that is still mutating.
func (a *Archive) Put(result *agent.RunResult) error {
	if result == nil || result.RunID == "" {
		return errors.New("result with run id is required")
	}
	if !result.State.IsTerminal() {
		return fmt.Errorf("run %s is not terminal (%s)", result.RunID, result.State)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", result.RunID, err)
	}

	err = a.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(runPrefix+result.RunID), data).WithTTL(a.ttl)
		if err := txn.SetEntry(entry); err != nil {
			return err
		}
		idx := badger.NewEntry(
			[]byte(sessionPrefix+result.SessionID+":"+result.RunID),
			[]byte(result.RunID),
		).WithTTL(a.ttl)
		return txn.SetEntry(idx)
	})
	if err != nil {
		return fmt.Errorf("archive run %s: %w", result.RunID, err)
	}

	a.logger.Debug("Run archived",
		slog.String("run_id", result.RunID),
		slog.String("state", string(result.State)))
	return nil
}

// Get loads an archived run by identifier.
func (a *Archive) Get(runID string) (*agent.RunResult, error) {
	var result agent.RunResult
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(runPrefix + runID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &result)
		})
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return &result, nil
}

// BySession returns the archived runs of one session, oldest first.
func (a *Archive) BySession(sessionID string) ([]*agent.RunResult, error) {
	var runIDs []string
	prefix := []byte(sessionPrefix + sessionID + ":")

	err := a.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				runIDs = append(runIDs, string(val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan session %s: %w", sessionID, err)
	}

	out := make([]*agent.RunResult, 0, len(runIDs))
	for _, id := range runIDs {
		res, err := a.Get(id)
		if errors.Is(err, ErrNotFound) {
			// Index outlived the record by a TTL race; skip it.
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}
