// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/InitiativeHub/pkg/extensions"
	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/provider"
)

func contextWithRoles(roles []string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if roles != nil {
		SetAuthInfo(c, &extensions.AuthInfo{UserID: "user-1", Roles: roles})
	}
	return c
}

func TestCallerTier_RoleMapping(t *testing.T) {
	cases := []struct {
		name  string
		roles []string
		want  provider.Tier
	}{
		{"admin is elevated", []string{"admin"}, provider.TierElevated},
		{"lead is elevated", []string{"viewer", "lead"}, provider.TierElevated},
		{"executive is elevated", []string{"executive"}, provider.TierElevated},
		{"member is standard", []string{"member"}, provider.TierStandard},
		{"no roles is standard", []string{}, provider.TierStandard},
		{"unauthenticated is standard", nil, provider.TierStandard},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := contextWithRoles(tc.roles)
			assert.Equal(t, tc.want, CallerTier(c))
		})
	}
}

func TestAuthMiddleware_NopProviderAlwaysAuthenticates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(AuthMiddleware(&extensions.NopAuthProvider{}))
	router.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user": CallerID(c),
			"tier": string(CallerTier(c)),
		})
	})

	// No Authorization header at all.
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "local-user")
	// Nop provider grants admin, so local callers see every tier.
	assert.Contains(t, w.Body.String(), string(provider.TierElevated))
}

func TestExtractBearerToken(t *testing.T) {
	c := contextWithRoles(nil)
	c.Request.Header.Set("Authorization", "Bearer tok-123")
	assert.Equal(t, "tok-123", extractBearerToken(c))

	c.Request.Header.Set("Authorization", "Basic dXNlcg==")
	assert.Equal(t, "", extractBearerToken(c))

	c.Request.Header.Del("Authorization")
	assert.Equal(t, "", extractBearerToken(c))
}
