// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extensions defines the pluggable identity and audit seams of
// the assistant service.
//
// A local single-user deployment runs with no identity infrastructure at
// all: the no-op defaults authenticate every request as "local-user"
// with elevated privileges and discard audit events. A hosted
// deployment swaps in concrete implementations (an SSO token validator,
// a SIEM-backed audit sink) without touching the service code.
//
//   - auth.go: token validation and caller identity (AuthProvider)
//   - audit.go: recording of security-relevant operations (AuditLogger)
//
// # Thread Safety
//
// All implementations must be safe for concurrent use; the HTTP layer
// calls them from many request goroutines at once.
package extensions

// ServiceOptions groups the extension points handed to the service at
// startup. Nil fields are treated as their no-op defaults.
type ServiceOptions struct {
	// AuthProvider validates bearer tokens on every request.
	// Default: NopAuthProvider (every request is "local-user").
	AuthProvider AuthProvider

	// AuditLogger records run cancellations, session deletions, and
	// other operations worth an audit trail.
	// Default: NopAuditLogger (events are discarded).
	AuditLogger AuditLogger
}

// DefaultOptions returns ServiceOptions suitable for a local
// deployment: no authentication, no audit trail.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuthProvider: &NopAuthProvider{},
		AuditLogger:  &NopAuditLogger{},
	}
}

// WithAuth returns a copy of opts with the given AuthProvider.
func (opts ServiceOptions) WithAuth(provider AuthProvider) ServiceOptions {
	opts.AuthProvider = provider
	return opts
}

// WithAudit returns a copy of opts with the given AuditLogger.
func (opts ServiceOptions) WithAudit(logger AuditLogger) ServiceOptions {
	opts.AuditLogger = logger
	return opts
}
