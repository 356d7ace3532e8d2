// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the assistant service.
//
// The auth middleware extracts a bearer token from the Authorization
// header, validates it with the configured AuthProvider, and stores the
// resulting AuthInfo in the Gin context. Handlers read the caller's
// identity through GetAuthInfo and its provider tier through CallerTier.
//
// With the default NopAuthProvider every request authenticates as
// "local-user" with admin privileges, so a local deployment needs no
// identity infrastructure and sees every provider tier.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/InitiativeHub/pkg/extensions"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/provider"
)

// authInfoKey is the context key for storing AuthInfo.
const authInfoKey = "initiativehub_auth_info"

// Roles that unlock restricted providers.
var elevatedRoles = []string{"admin", "lead", "executive"}

// SetAuthInfo stores the authenticated user info in the Gin context.
func SetAuthInfo(c *gin.Context, info *extensions.AuthInfo) {
	c.Set(authInfoKey, info)
}

// GetAuthInfo retrieves the authenticated user info, or nil when the
// request never passed the auth middleware.
func GetAuthInfo(c *gin.Context) *extensions.AuthInfo {
	v, ok := c.Get(authInfoKey)
	if !ok {
		return nil
	}
	info, ok := v.(*extensions.AuthInfo)
	if !ok {
		return nil
	}
	return info
}

// CallerTier maps the caller's roles onto a provider capability tier.
// Unknown or absent identities get the standard tier; gating fails
// closed rather than open.
func CallerTier(c *gin.Context) provider.Tier {
	info := GetAuthInfo(c)
	if info == nil {
		return provider.TierStandard
	}
	for _, role := range elevatedRoles {
		if info.HasRole(role) {
			return provider.TierElevated
		}
	}
	return provider.TierStandard
}

// CallerID returns the authenticated user id, or "anonymous".
func CallerID(c *gin.Context) string {
	info := GetAuthInfo(c)
	if info == nil || info.UserID == "" {
		return "anonymous"
	}
	return info.UserID
}

// AuthMiddleware validates the bearer token on every request and aborts
// with 401 when validation fails.
func AuthMiddleware(authProvider extensions.AuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)

		authInfo, err := authProvider.Validate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, extensions.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "unauthorized",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication failed",
			})
			return
		}

		SetAuthInfo(c, authInfo)
		c.Next()
	}
}

func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
