// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package boundary implements the C11 External Boundary: gin HTTP
// handlers mapping each core operation in spec §6 to a route, with
// go-playground/validator DTOs at the edge so malformed input never
// reaches the core as anything but a rejected request.
package boundary

import "github.com/pathlore/pathlore/services/domain"

// CreateProfileRequest is the onboarding questionnaire payload.
type CreateProfileRequest struct {
	Fitness        string   `json:"fitness" binding:"required,oneof=beginner intermediate advanced"`
	Tags           []string `json:"tags" binding:"omitempty,dive,required"`
	Narrative      string   `json:"narrative" binding:"required,oneof=adventure mystery playful"`
	DifficultyLo   float64  `json:"difficulty_lo" binding:"gte=0,lte=3"`
	DifficultyHi   float64  `json:"difficulty_hi" binding:"gte=0,lte=3"`
	MinDistanceKm  float64  `json:"min_distance_km" binding:"gte=0"`
	MaxDistanceKm  float64  `json:"max_distance_km" binding:"gte=0"`
}

// ProfileResponse is the JSON shape returned for a profile.
type ProfileResponse struct {
	ID             int64                    `json:"id"`
	TotalXP        int                      `json:"total_xp"`
	Level          int                      `json:"level"`
	Vector         domain.PreferenceVector  `json:"preference_vector"`
	WelcomeSummary string                   `json:"welcome_summary,omitempty"`
}

func toProfileResponse(p domain.Profile) ProfileResponse {
	return ProfileResponse{ID: p.ID, TotalXP: p.TotalXP, Level: p.Level, Vector: p.Vector, WelcomeSummary: p.WelcomeSummary}
}

// SubmitFeedbackRequest is the body of POST /profiles/{id}/feedback.
type SubmitFeedbackRequest struct {
	RouteID int64  `json:"route_id" binding:"required"`
	Reason  string `json:"reason" binding:"required"`
}

// CompleteRouteRequest is the body of POST /profiles/{id}/souvenirs.
type CompleteRouteRequest struct {
	RouteID           int64   `json:"route_id" binding:"required"`
	CompletedQuestIDs []int64 `json:"completed_quest_ids"`
}

// GenerateStoryRequest is the body of POST /routes/{id}/generate-story.
type GenerateStoryRequest struct {
	Force          bool   `json:"force"`
	NarrativeStyle string `json:"narrative_style" binding:"omitempty,oneof=adventure mystery playful"`
}

// ErrorResponse is the stable-shape error body every failed request
// returns: a short kind and message, with full detail staying in logs.
type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
