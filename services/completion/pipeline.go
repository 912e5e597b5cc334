// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package completion implements the C8 Completion Pipeline: the atomic
// transaction that turns a finished route into XP, a souvenir, and a
// possible achievement unlock. LLM failures degrade to deterministic
// fallback content and never roll back the XP or souvenir state already
// committed.
package completion

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/pathlore/pathlore/services/achievements"
	"github.com/pathlore/pathlore/services/analytics"
	"github.com/pathlore/pathlore/services/blobstore"
	"github.com/pathlore/pathlore/services/concurrency"
	"github.com/pathlore/pathlore/services/domain"
	"github.com/pathlore/pathlore/services/llm"
	"github.com/pathlore/pathlore/services/perr"
	"github.com/pathlore/pathlore/services/storage/catalog"
	"github.com/pathlore/pathlore/services/storage/profile"
)

// MetricsRecorder receives a count each time a completion is processed.
type MetricsRecorder interface {
	IncCompletionProcessed()
}

type noopMetrics struct{}

func (noopMetrics) IncCompletionProcessed() {}

// Response is the output of a completed CompleteRoute call.
type Response struct {
	Souvenir        domain.Souvenir
	XPBreakdown     domain.XPBreakdown
	TotalXPGained   int
	NewLevel        int
}

// Pipeline executes the Completion Pipeline, serialized per profile.
type Pipeline struct {
	profiles     *profile.Store
	catalog      *catalog.Store
	achievements *achievements.Engine
	client       *llm.Client
	locks        *concurrency.ProfileLocks
	sem          *concurrency.LLMSemaphore
	xpPerLevel   int
	blobs        blobstore.Store
	metrics      MetricsRecorder
	analytics    analytics.Sink
	logger       *slog.Logger
}

// New builds a Completion Pipeline. blobs may be blobstore.NoopStore{}
// if no bucket is configured; souvenir SVGs then stay inline.
func New(profileStore *profile.Store, catalogStore *catalog.Store, achievementsEngine *achievements.Engine, client *llm.Client, locks *concurrency.ProfileLocks, sem *concurrency.LLMSemaphore, xpPerLevel int) *Pipeline {
	if xpPerLevel <= 0 {
		xpPerLevel = 300
	}
	return &Pipeline{
		profiles:     profileStore,
		catalog:      catalogStore,
		achievements: achievementsEngine,
		client:       client,
		locks:        locks,
		sem:          sem,
		xpPerLevel:   xpPerLevel,
		blobs:        blobstore.NoopStore{},
		metrics:      noopMetrics{},
		analytics:    analytics.NoopSink{},
		logger:       slog.Default().With("component", "completion.Pipeline"),
	}
}

// SetAnalytics attaches an analytics sink; nil is replaced with a no-op.
func (p *Pipeline) SetAnalytics(a analytics.Sink) {
	if a == nil {
		a = analytics.NoopSink{}
	}
	p.analytics = a
}

// SetMetrics attaches a metrics sink; nil is replaced with a no-op.
func (p *Pipeline) SetMetrics(m MetricsRecorder) {
	if m == nil {
		m = noopMetrics{}
	}
	p.metrics = m
}

// SetBlobStore attaches a blob store for offloading generated SVGs; nil
// is replaced with a no-op.
func (p *Pipeline) SetBlobStore(b blobstore.Store) {
	if b == nil {
		b = blobstore.NoopStore{}
	}
	p.blobs = b
}

// CompleteRoute runs the 8-step completion transaction for profileID
// finishing routeID, with completedQuestIDs marking which mini-quests
// the user finished. Unrecognized quest ids are dropped with a warning.
func (p *Pipeline) CompleteRoute(ctx context.Context, profileID, routeID int64, completedQuestIDs []int64) (Response, error) {
	unlock := p.locks.Lock(profileID)
	defer unlock()

	prof, err := p.profiles.GetByID(profileID)
	if err != nil {
		return Response{}, err
	}
	route, err := p.catalog.GetWithBreakpoints(routeID)
	if err != nil {
		return Response{}, err
	}

	validQuestIDs, droppedQuestIDs, questByID := resolveQuests(route, completedQuestIDs)
	if len(droppedQuestIDs) > 0 {
		p.logger.Warn("dropping unknown completed quest ids", "profile_id", profileID, "route_id", routeID, "dropped", droppedQuestIDs)
	}

	breakdown := computeXP(route, validQuestIDs, droppedQuestIDs, questByID)

	sv, err := p.profiles.InsertSouvenir(domain.Souvenir{
		ProfileID:     profileID,
		RouteID:       routeID,
		CompletedAt:   time.Now().UTC(),
		TotalXPGained: breakdown.TotalXP,
		XPBreakdown:   breakdown,
	})
	if err != nil {
		return Response{}, perr.NewInternal("insert souvenir", err)
	}

	summary := p.generateSummary(ctx, route, breakdown, prof)
	sv.Summary = &summary
	if err := p.profiles.UpdateSouvenir(sv); err != nil {
		p.logger.Warn("failed to persist souvenir summary", "souvenir_id", sv.ID, "error", err)
	}

	svg := p.generateSVG(ctx, route, breakdown)
	if url, err := p.blobs.Put(ctx, fmt.Sprintf("souvenirs/%d.svg", sv.ID), []byte(svg), "image/svg+xml"); err != nil {
		p.logger.Warn("failed to offload souvenir svg to blob store, keeping inline", "souvenir_id", sv.ID, "error", err)
		sv.PixelArtSVG = &svg
	} else if url != "" {
		sv.PixelArtURL = &url
	} else {
		sv.PixelArtSVG = &svg
	}
	if err := p.profiles.UpdateSouvenir(sv); err != nil {
		p.logger.Warn("failed to persist souvenir svg", "souvenir_id", sv.ID, "error", err)
	}

	updatedProfile, err := p.profiles.UpdateXPAndLevel(profileID, breakdown.TotalXP, p.xpPerLevel)
	if err != nil {
		return Response{}, perr.NewInternal("update profile xp", err)
	}

	if err := p.catalog.IncrementCompletionCount(routeID); err != nil {
		p.logger.Warn("failed to increment route completion count", "route_id", routeID, "error", err)
	}

	if _, err := p.achievements.CheckAchievements(profileID); err != nil {
		p.logger.Warn("achievement evaluation failed after completion", "profile_id", profileID, "error", err)
	}

	p.metrics.IncCompletionProcessed()
	p.analytics.RecordRouteCompletion(profileID, routeID, breakdown.TotalXP)

	return Response{
		Souvenir:      sv,
		XPBreakdown:   breakdown,
		TotalXPGained: breakdown.TotalXP,
		NewLevel:      updatedProfile.Level,
	}, nil
}

func resolveQuests(route domain.Route, completedQuestIDs []int64) (valid, dropped []int64, questByID map[int64]domain.MiniQuest) {
	questByID = make(map[int64]domain.MiniQuest)
	for _, bp := range route.Breakpoints {
		for _, q := range bp.MiniQuests {
			questByID[q.ID] = q
		}
	}
	for _, id := range completedQuestIDs {
		if _, ok := questByID[id]; ok {
			valid = append(valid, id)
		} else {
			dropped = append(dropped, id)
		}
	}
	return valid, dropped, questByID
}

func computeXP(route domain.Route, validQuestIDs, droppedQuestIDs []int64, questByID map[int64]domain.MiniQuest) domain.XPBreakdown {
	questXP := 0
	for _, id := range validQuestIDs {
		questXP += questByID[id].XPReward
	}
	multiplier := route.DifficultyMultiplier()
	total := int(math.Round(float64(route.BaseXPReward+questXP) * multiplier))

	return domain.XPBreakdown{
		BaseXP:            route.BaseXPReward,
		QuestXP:           questXP,
		Multiplier:        multiplier,
		TotalXP:           total,
		CompletedQuestIDs: validQuestIDs,
		DroppedQuestIDs:   droppedQuestIDs,
	}
}

func (p *Pipeline) generateSummary(ctx context.Context, route domain.Route, breakdown domain.XPBreakdown, prof domain.Profile) string {
	questFraction := 0.0
	totalQuests := 0
	for _, bp := range route.Breakpoints {
		totalQuests += len(bp.MiniQuests)
	}
	if totalQuests > 0 {
		questFraction = float64(len(breakdown.CompletedQuestIDs)) / float64(totalQuests)
	}

	prompt := fmt.Sprintf(
		"route_title=%q length_km=%.1f quest_fraction=%.2f user_level=%d narrative_style=%s\n"+
			"Write a short (2-3 sentence) congratulatory completion summary.",
		route.Title, route.LengthKm(), questFraction, prof.Level, prof.Vector.NarrativeStyle)

	release, err := p.sem.Acquire(ctx)
	if err != nil {
		return fallbackSummary(route.Title, breakdown.TotalXP)
	}
	defer release()

	summary, err := p.client.Complete(ctx, prompt, llm.GenerationParams{MaxTokens: 300, Temperature: 0.7, Mode: llm.ModeText})
	if err != nil {
		p.logger.Warn("summary generation failed, using template", "route_id", route.ID, "error", err)
		return fallbackSummary(route.Title, breakdown.TotalXP)
	}
	return summary
}

func fallbackSummary(title string, totalXP int) string {
	return fmt.Sprintf("Congratulations on completing %s! You earned %d XP.", title, totalXP)
}

func (p *Pipeline) generateSVG(ctx context.Context, route domain.Route, breakdown domain.XPBreakdown) string {
	prompt := fmt.Sprintf(
		"title=%q location=%q distance_km=%.1f xp=%d date=%s\n"+
			"Produce a single valid SVG image (with an <svg> root element) as a pixel-art souvenir badge.",
		route.Title, route.Location, route.LengthKm(), breakdown.TotalXP, time.Now().UTC().Format("2006-01-02"))

	release, err := p.sem.Acquire(ctx)
	if err != nil {
		return fallbackSVG(route.Title, route.Location, breakdown.TotalXP)
	}
	defer release()

	svg, err := p.client.Complete(ctx, prompt, llm.GenerationParams{MaxTokens: 800, Temperature: 0.5, Mode: llm.ModeText})
	if err != nil || !isValidSVG(svg) {
		if err != nil {
			p.logger.Warn("svg generation failed, using fallback", "route_id", route.ID, "error", err)
		} else {
			p.logger.Warn("svg generation returned invalid svg, using fallback", "route_id", route.ID)
		}
		return fallbackSVG(route.Title, route.Location, breakdown.TotalXP)
	}
	return svg
}

func isValidSVG(s string) bool {
	return strings.Contains(s, "<svg") && strings.Contains(s, "</svg>")
}

func fallbackSVG(title, location string, totalXP int) string {
	return fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" width="200" height="200"><rect width="200" height="200" fill="#2b3a2f"/><text x="10" y="60" fill="#fff" font-size="14">%s</text><text x="10" y="90" fill="#fff" font-size="12">%s</text><text x="10" y="120" fill="#ffd166" font-size="16">%d XP</text></svg>`,
		escapeSVGText(title), escapeSVGText(location), totalXP)
}

func escapeSVGText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
