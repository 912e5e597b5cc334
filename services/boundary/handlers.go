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
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pathlore/pathlore/services/achievements"
	"github.com/pathlore/pathlore/services/completion"
	"github.com/pathlore/pathlore/services/concurrency"
	"github.com/pathlore/pathlore/services/domain"
	"github.com/pathlore/pathlore/services/llm"
	"github.com/pathlore/pathlore/services/perr"
	"github.com/pathlore/pathlore/services/recommend"
	"github.com/pathlore/pathlore/services/story"
	storedachievements "github.com/pathlore/pathlore/services/storage/achievements"
	"github.com/pathlore/pathlore/services/storage/catalog"
	"github.com/pathlore/pathlore/services/storage/profile"
)

// Handlers wires every core component into the gin handler methods that
// implement spec §6's operation table.
type Handlers struct {
	Profiles     *profile.Store
	Catalog      *catalog.Store
	Recommend    *recommend.Engine
	Story        *story.Pipeline
	Completion   *completion.Pipeline
	Achievements *achievements.Engine
	Rules        *storedachievements.RuleStore
	LLM          *llm.Client
	Sem          *concurrency.LLMSemaphore
	logger       *slog.Logger
}

// New builds the Handlers set. All dependencies are required; nil
// dependencies are a programmer error caught at wiring time, not at
// request time.
func New(profiles *profile.Store, cat *catalog.Store, rec *recommend.Engine, storyPipeline *story.Pipeline, completionPipeline *completion.Pipeline, achievementsEngine *achievements.Engine, rules *storedachievements.RuleStore, client *llm.Client, sem *concurrency.LLMSemaphore) *Handlers {
	return &Handlers{
		Profiles:     profiles,
		Catalog:      cat,
		Recommend:    rec,
		Story:        storyPipeline,
		Completion:   completionPipeline,
		Achievements: achievementsEngine,
		Rules:        rules,
		LLM:          client,
		Sem:          sem,
		logger:       slog.Default().With("component", "boundary.Handlers"),
	}
}

func bindJSON[T any](c *gin.Context) (T, bool) {
	var body T
	if err := c.ShouldBindJSON(&body); err != nil {
		var zero T
		writeError(c, perr.NewValidation(err.Error(), err))
		return zero, false
	}
	return body, true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		writeError(c, perr.NewValidation(fmt.Sprintf("%s must be an integer", name), err))
		return 0, false
	}
	return id, true
}

// CreateProfile handles POST /profiles. It builds the base preference
// vector from the onboarding questionnaire and attaches an LLM-generated
// welcome summary, falling back to a template if generation fails.
func (h *Handlers) CreateProfile(c *gin.Context) {
	req, ok := bindJSON[CreateProfileRequest](c)
	if !ok {
		return
	}
	if req.DifficultyLo > req.DifficultyHi {
		writeError(c, perr.NewValidation("difficulty_lo must be <= difficulty_hi", nil))
		return
	}
	if req.MinDistanceKm > req.MaxDistanceKm {
		writeError(c, perr.NewValidation("min_distance_km must be <= max_distance_km", nil))
		return
	}

	vector := domain.PreferenceVector{
		DifficultyRange: domain.DifficultyRange{Lo: req.DifficultyLo, Hi: req.DifficultyHi},
		MinDistanceKm:   req.MinDistanceKm,
		MaxDistanceKm:   req.MaxDistanceKm,
		PreferredTags:   req.Tags,
		FitnessLevel:    domain.FitnessLevel(req.Fitness),
		NarrativeStyle:  domain.NarrativeStyle(req.Narrative),
	}

	summary := h.welcomeSummary(c, vector)

	p, err := h.Profiles.Create(vector, summary)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(201, toProfileResponse(p))
}

func (h *Handlers) welcomeSummary(c *gin.Context, vector domain.PreferenceVector) string {
	release, err := h.Sem.Acquire(c.Request.Context())
	if err != nil {
		return fallbackWelcomeSummary(vector)
	}
	defer release()

	prompt := fmt.Sprintf(
		"fitness_level=%s narrative_style=%s preferred_tags=%v difficulty_range=[%.1f,%.1f]\n"+
			"Write a short (2-3 sentence) welcome message for a new outdoor-adventure user.",
		vector.FitnessLevel, vector.NarrativeStyle, vector.PreferredTags, vector.DifficultyRange.Lo, vector.DifficultyRange.Hi)
	summary, err := h.LLM.Complete(c.Request.Context(), prompt, llm.GenerationParams{MaxTokens: 200, Temperature: 0.7, Mode: llm.ModeText})
	if err != nil {
		h.logger.Warn("welcome summary generation failed, using template", "error", err)
		return fallbackWelcomeSummary(vector)
	}
	return summary
}

func fallbackWelcomeSummary(vector domain.PreferenceVector) string {
	return fmt.Sprintf("Welcome! Based on your %s fitness level, we'll start you off with routes suited to your pace.", vector.FitnessLevel)
}

// DeleteAllProfiles handles DELETE /profiles.
func (h *Handlers) DeleteAllProfiles(c *gin.Context) {
	n, err := h.Profiles.DeleteAll()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"deleted_count": n})
}

// GetProfile handles GET /profiles/:id.
func (h *Handlers) GetProfile(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.Profiles.GetByID(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, toProfileResponse(p))
}

// GetProfileStatistics handles GET /profiles/:id/statistics.
func (h *Handlers) GetProfileStatistics(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	stats, err := h.Achievements.ComputeStatistics(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, stats)
}

// ListRecommendations handles GET /profiles/:id/recommendations (or, with
// id == 0, the anonymous GET /recommendations route).
func (h *Handlers) ListRecommendations(c *gin.Context) {
	category := c.Query("category")
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	var ctx *recommend.ProfileContext
	if idParam := c.Param("id"); idParam != "" {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		p, err := h.Profiles.GetByID(id)
		if err != nil {
			writeError(c, err)
			return
		}
		feedback, err := h.Profiles.ListFeedbackFor(id)
		if err != nil {
			writeError(c, err)
			return
		}
		ctx = &recommend.ProfileContext{BaseVector: p.Vector, Feedback: feedback}
	}

	results, err := h.Recommend.Recommend(ctx, category, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"results": results})
}

// GetRouteWithStory handles GET /routes/:id.
func (h *Handlers) GetRouteWithStory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	route, err := h.Catalog.GetWithBreakpoints(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, route)
}

// GenerateStory handles POST /routes/:id/generate-story.
func (h *Handlers) GenerateStory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	req, ok := bindJSON[GenerateStoryRequest](c)
	if !ok {
		return
	}
	style := domain.NarrativeStyle(req.NarrativeStyle)
	if style == "" {
		style = domain.NarrativeAdventure
	}
	route, err := h.Story.GenerateStory(c.Request.Context(), id, style, req.Force)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, route)
}

// SubmitFeedback handles POST /profiles/:id/feedback.
func (h *Handlers) SubmitFeedback(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	req, ok := bindJSON[SubmitFeedbackRequest](c)
	if !ok {
		return
	}
	if !isValidReason(req.Reason) {
		writeError(c, perr.NewValidation(fmt.Sprintf("unknown feedback reason %q", req.Reason), nil))
		return
	}
	rec, err := h.Profiles.AppendFeedback(id, req.RouteID, domain.FeedbackReason(req.Reason))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(201, rec)
}

func isValidReason(reason string) bool {
	for _, r := range domain.ValidFeedbackReasons {
		if string(r) == reason {
			return true
		}
	}
	return false
}

// CompleteRoute handles POST /profiles/:id/souvenirs.
func (h *Handlers) CompleteRoute(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	req, ok := bindJSON[CompleteRouteRequest](c)
	if !ok {
		return
	}
	resp, err := h.Completion.CompleteRoute(c.Request.Context(), id, req.RouteID, req.CompletedQuestIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(201, resp)
}

// ListSouvenirs handles GET /profiles/:id/souvenirs.
func (h *Handlers) ListSouvenirs(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sortOrder := profile.SouvenirSort(c.DefaultQuery("sort", string(profile.SortNewest)))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	souvenirs, err := h.Profiles.ListSouvenirs(id, sortOrder, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"results": souvenirs})
}

// CheckAchievements handles POST /profiles/:id/achievements/check.
func (h *Handlers) CheckAchievements(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	unlocked, err := h.Achievements.CheckAchievements(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"newly_unlocked": unlocked})
}

// ListAchievements handles GET /profiles/:id/achievements, combining the
// seeded rule catalog with the profile's unlock records.
func (h *Handlers) ListAchievements(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	rules, err := h.Rules.ListAll()
	if err != nil {
		writeError(c, err)
		return
	}
	unlocks, err := h.Profiles.ListUnlocksFor(id)
	if err != nil {
		writeError(c, err)
		return
	}
	unlockedAt := make(map[string]domain.AchievementUnlock, len(unlocks))
	for _, u := range unlocks {
		unlockedAt[u.RuleKey] = u
	}

	type achievementView struct {
		domain.AchievementRule
		Unlocked   bool       `json:"unlocked"`
		UnlockedAt *domain.AchievementUnlock `json:"unlock,omitempty"`
	}
	views := make([]achievementView, 0, len(rules))
	for _, rule := range rules {
		u, unlocked := unlockedAt[rule.Key]
		view := achievementView{AchievementRule: rule, Unlocked: unlocked}
		if unlocked {
			view.UnlockedAt = &u
		}
		views = append(views, view)
	}
	c.JSON(200, gin.H{"results": views})
}
