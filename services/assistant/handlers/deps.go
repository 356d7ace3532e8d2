// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the HTTP surface of the assistant service:
// one-shot asks, SSE streaming, out-of-band cancellation, session
// administration, and the run archive.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/InitiativeHub/pkg/extensions"
	"github.com/AleutianAI/InitiativeHub/pkg/validation"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/provider"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/runlog"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/runreg"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/sessionctx"
)

var assistantTracer = otel.Tracer("assistant-handlers")

// Deps bundles the collaborators every handler factory draws from.
// Archive may be nil in lightweight deployments; the run archive
// endpoints then answer 503.
type Deps struct {
	Engine          *agent.Engine
	Gateway         *provider.Gateway
	Runs            *runreg.Registry
	Sessions        *sessionctx.Store
	Archive         *runlog.Archive
	Audit           extensions.AuditLogger
	DefaultProvider string
}

// audit records a security-relevant event, tolerating a nil logger.
func (d *Deps) audit(ctx context.Context, event extensions.AuditEvent) {
	if d.Audit == nil {
		return
	}
	_ = d.Audit.Log(ctx, event)
}

// sessionOrNew returns the request's session id, minting one for a
// first-contact client. A malformed client id is rejected rather than
// silently replaced.
func sessionOrNew(sessionID string) (string, error) {
	if sessionID == "" {
		return uuid.New().String(), nil
	}
	return validation.SanitizeID(sessionID)
}

// sessionParam validates the :sessionId path segment, answering 400 on
// a malformed id. The bool reports whether the handler may proceed.
func sessionParam(c *gin.Context) (string, bool) {
	id, err := validation.SanitizeID(c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return "", false
	}
	return id, true
}

// providerOrDefault resolves the provider the run should use.
func (d *Deps) providerOrDefault(requested string) string {
	if requested != "" {
		return requested
	}
	return d.DefaultProvider
}
