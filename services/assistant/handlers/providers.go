// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/InitiativeHub/services/assistant/agent/provider"
	"github.com/AleutianAI/InitiativeHub/services/assistant/middleware"
)

// ListProviders returns the providers the caller's tier may use. The
// restricted entries a standard caller cannot invoke are omitted rather
// than flagged, so clients never render a choice that would 403.
func ListProviders(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		tier := middleware.CallerTier(c)

		var visible []provider.Descriptor
		for _, d := range deps.Gateway.Descriptors() {
			if tier == provider.TierStandard && d.Tier == provider.TierElevated {
				continue
			}
			visible = append(visible, d)
		}

		c.JSON(http.StatusOK, gin.H{
			"providers": visible,
			"default":   deps.DefaultProvider,
		})
	}
}
