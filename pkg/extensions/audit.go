// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent records a security-relevant operation: who did what to
// which resource, and how it came out.
//
// Event types used by the assistant service:
//   - "run.cancel": a caller interrupted an in-flight run
//   - "session.delete": an admin purged a session's context
//   - "session.skills": a caller changed a session's tool skills
type AuditEvent struct {
	// EventType categorizes the event, "category.action" form.
	EventType string

	// Timestamp is when the event occurred, UTC. Loggers fill it in
	// when zero.
	Timestamp time.Time

	// UserID identifies who performed the action.
	UserID string

	// ResourceID is the run or session the action targeted.
	ResourceID string

	// Outcome is "success", "denied", or "error".
	Outcome string

	// Metadata holds event-specific details, such as the skill list
	// on a "session.skills" event.
	Metadata map[string]any
}

// AuditLogger records audit events. Implementations must be safe for
// concurrent use and should return quickly; handlers log on the
// request path.
type AuditLogger interface {
	// Log records one event. Loggers set Timestamp when it is zero.
	Log(ctx context.Context, event AuditEvent) error
}

// NopAuditLogger discards every event. Default for local deployments
// where an audit trail buys nothing.
type NopAuditLogger struct{}

// Log discards the event.
func (l *NopAuditLogger) Log(_ context.Context, _ AuditEvent) error {
	return nil
}

// SlogAuditLogger writes audit events to a structured logger. It gives
// single-node deployments a grep-able trail without standing up a
// separate audit store; hosted deployments replace it with a SIEM
// sink.
type SlogAuditLogger struct {
	logger *slog.Logger
}

// NewSlogAuditLogger returns an AuditLogger backed by the given
// slog.Logger. A nil logger falls back to slog.Default().
func NewSlogAuditLogger(logger *slog.Logger) *SlogAuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAuditLogger{
		logger: logger.With(slog.String("component", "audit")),
	}
}

// Log writes the event at Info level.
func (l *SlogAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	attrs := []any{
		slog.String("event_type", event.EventType),
		slog.Time("timestamp", event.Timestamp),
		slog.String("user_id", event.UserID),
		slog.String("resource_id", event.ResourceID),
		slog.String("outcome", event.Outcome),
	}
	if len(event.Metadata) > 0 {
		attrs = append(attrs, slog.Any("metadata", event.Metadata))
	}
	l.logger.InfoContext(ctx, "audit event", attrs...)
	return nil
}

var (
	_ AuditLogger = (*NopAuditLogger)(nil)
	_ AuditLogger = (*SlogAuditLogger)(nil)
)
