// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package boundary

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestID stamps every request with an X-Request-ID header (using the
// caller's value if it supplied one), so logs and traces across the
// pipeline can be correlated back to a single HTTP call.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// RegisterRoutes mounts every boundary operation under rg.
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	rg.Use(RequestID())
	rg.GET("/recommendations", h.ListRecommendations)

	profiles := rg.Group("/profiles")
	profiles.POST("", h.CreateProfile)
	profiles.DELETE("", h.DeleteAllProfiles)
	profiles.GET("/:id", h.GetProfile)
	profiles.GET("/:id/statistics", h.GetProfileStatistics)
	profiles.GET("/:id/recommendations", h.ListRecommendations)
	profiles.POST("/:id/feedback", h.SubmitFeedback)
	profiles.POST("/:id/souvenirs", h.CompleteRoute)
	profiles.GET("/:id/souvenirs", h.ListSouvenirs)
	profiles.POST("/:id/achievements/check", h.CheckAchievements)
	profiles.GET("/:id/achievements", h.ListAchievements)

	routes := rg.Group("/routes")
	routes.GET("/:id", h.GetRouteWithStory)
	routes.POST("/:id/generate-story", h.GenerateStory)
}
