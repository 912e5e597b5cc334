// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package recommend implements the C4 Recommendation Engine: scoring
// candidate routes against a profile's feedback-adjusted preference
// vector, or falling back to a popularity proxy when no profile is
// given.
package recommend

import (
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/pathlore/pathlore/services/analytics"
	"github.com/pathlore/pathlore/services/domain"
	"github.com/pathlore/pathlore/services/prefs"
	"github.com/pathlore/pathlore/services/storage/catalog"
)

// Weights are the configured subscore weights; not tuned against labeled
// data per the design notes, so they are configuration, not invariant.
type Weights struct {
	Difficulty float64
	Distance   float64
	Tags       float64
}

// SubscoreBreakdown exposes one subscore's contribution to the total.
type SubscoreBreakdown struct {
	Value             float64 `json:"value"`
	Weight            float64 `json:"weight"`
	WeightedContribution float64 `json:"weighted_contribution"`
}

// ScoreBreakdown is the full accounting attached to each scored result.
type ScoreBreakdown struct {
	Difficulty SubscoreBreakdown `json:"difficulty"`
	Distance   SubscoreBreakdown `json:"distance"`
	Tags       SubscoreBreakdown `json:"tags"`

	UserDifficultyRange domain.DifficultyRange `json:"user_difficulty_range"`
	UserTags            []string                `json:"user_tags"`
	RouteDifficulty     int                      `json:"route_difficulty"`
	RouteTags           []string                 `json:"route_tags"`

	BaseScore         float64 `json:"base_score"`
	PenaltyMultiplier float64 `json:"penalty_multiplier"`
	FinalScore        float64 `json:"final_score"`
}

// Result is one scored recommendation.
type Result struct {
	Route         domain.Route    `json:"route"`
	Score         float64         `json:"score"`
	Breakdown     *ScoreBreakdown `json:"breakdown,omitempty"`
	Personalized  bool            `json:"personalized"`
}

// MetricsRecorder receives a count each time a recommendation list is
// served, labeled by whether it was personalized to a profile.
type MetricsRecorder interface {
	IncRecommendationsServed(personalized bool)
}

type noopMetrics struct{}

func (noopMetrics) IncRecommendationsServed(bool) {}

// Engine ties the route catalog to the feedback-aware vector adjustment.
type Engine struct {
	catalog   *catalog.Store
	weights   Weights
	params    prefs.Params
	metrics   MetricsRecorder
	analytics analytics.Sink
	logger    *slog.Logger
}

// New builds a recommendation engine over catalogStore.
func New(catalogStore *catalog.Store, weights Weights, params prefs.Params) *Engine {
	return &Engine{catalog: catalogStore, weights: weights, params: params, metrics: noopMetrics{}, analytics: analytics.NoopSink{}, logger: slog.Default()}
}

// SetMetrics attaches a metrics sink; nil is replaced with a no-op.
func (e *Engine) SetMetrics(m MetricsRecorder) {
	if m == nil {
		m = noopMetrics{}
	}
	e.metrics = m
}

// SetAnalytics attaches an analytics sink; nil is replaced with a no-op.
func (e *Engine) SetAnalytics(a analytics.Sink) {
	if a == nil {
		a = analytics.NoopSink{}
	}
	e.analytics = a
}

// ProfileContext supplies the feedback history and base vector needed to
// personalize recommendations. A nil ProfileContext means "no profile".
type ProfileContext struct {
	BaseVector domain.PreferenceVector
	Feedback   []domain.FeedbackRecord
}

// Recommend scores candidates matching category (empty for no filter)
// for profile (nil for an anonymous request), returning up to limit
// ordered results.
func (e *Engine) Recommend(profile *ProfileContext, category string, limit int) ([]Result, error) {
	routes, err := e.catalog.ListCandidates(catalog.CandidateFilter{Category: category}, 0)
	if err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		return []Result{}, nil
	}

	if profile == nil {
		e.metrics.IncRecommendationsServed(false)
		fallback := e.popularityFallback(routes, limit)
		e.analytics.RecordRecommendationServed(category, false, len(fallback))
		return fallback, nil
	}

	lookup := func(routeID int64) []string {
		for _, r := range routes {
			if r.ID == routeID {
				return r.Tags
			}
		}
		return nil
	}
	adjusted := prefs.Adjust(profile.BaseVector, profile.Feedback, e.params, time.Now(), lookup)

	results := make([]Result, 0, len(routes))
	for _, r := range routes {
		if adjusted.Filtered(r.ID) {
			continue
		}
		breakdown := e.score(r, adjusted.Vector)
		penalty := adjusted.Penalty(r.ID)
		breakdown.BaseScore = breakdown.FinalScore
		breakdown.PenaltyMultiplier = penalty
		breakdown.FinalScore = clamp01(breakdown.FinalScore * penalty)

		results = append(results, Result{
			Route:        r,
			Score:        breakdown.FinalScore,
			Breakdown:    &breakdown,
			Personalized: true,
		})
	}

	sortResults(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	e.metrics.IncRecommendationsServed(true)
	e.analytics.RecordRecommendationServed(category, true, len(results))
	return results, nil
}

func (e *Engine) popularityFallback(routes []domain.Route, limit int) []Result {
	sorted := make([]domain.Route, len(routes))
	copy(sorted, routes)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CompletionCount != sorted[j].CompletionCount {
			return sorted[i].CompletionCount > sorted[j].CompletionCount
		}
		return sorted[i].ID < sorted[j].ID
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	out := make([]Result, len(sorted))
	for i, r := range sorted {
		out[i] = Result{Route: r, Score: 0, Personalized: false}
	}
	return out
}

func (e *Engine) score(r domain.Route, v domain.PreferenceVector) ScoreBreakdown {
	difficulty := difficultyScore(float64(r.Difficulty), v.DifficultyRange)
	distance := distanceScore(r.LengthKm(), v.MinDistanceKm, v.MaxDistanceKm)
	tags := tagScore(v.PreferredTags, r.Tags)

	w := e.weights
	diffContrib := w.Difficulty * difficulty
	distContrib := w.Distance * distance
	tagsContrib := w.Tags * tags
	total := clamp01(diffContrib + distContrib + tagsContrib)

	return ScoreBreakdown{
		Difficulty: SubscoreBreakdown{Value: difficulty, Weight: w.Difficulty, WeightedContribution: diffContrib},
		Distance:   SubscoreBreakdown{Value: distance, Weight: w.Distance, WeightedContribution: distContrib},
		Tags:       SubscoreBreakdown{Value: tags, Weight: w.Tags, WeightedContribution: tagsContrib},

		UserDifficultyRange: v.DifficultyRange,
		UserTags:            v.PreferredTags,
		RouteDifficulty:     r.Difficulty,
		RouteTags:           r.Tags,

		FinalScore: total,
	}
}

// difficultyScore is 1.0 inside [lo, hi], else decays over a distance-3
// span from the nearest endpoint.
func difficultyScore(d float64, rng domain.DifficultyRange) float64 {
	if d >= rng.Lo && d <= rng.Hi {
		return 1.0
	}
	var dist float64
	if d < rng.Lo {
		dist = rng.Lo - d
	} else {
		dist = d - rng.Hi
	}
	return math.Max(0, 1-dist/3)
}

// distanceScore is triangular: 1.0 inside [min, max], decreasing
// linearly to 0 at 2*max on the high side and to 0 at 0 on the low side.
func distanceScore(lengthKm, minKm, maxKm float64) float64 {
	if lengthKm >= minKm && lengthKm <= maxKm {
		return 1.0
	}
	if lengthKm < minKm {
		if minKm <= 0 {
			return 0
		}
		return math.Max(0, lengthKm/minKm)
	}
	span := maxKm
	if span <= 0 {
		return 0
	}
	return math.Max(0, 1-(lengthKm-maxKm)/span)
}

// tagScore is the case-folded Jaccard-style overlap fraction; 1.0 if the
// user specified no tags.
func tagScore(userTags, routeTags []string) float64 {
	if len(userTags) == 0 {
		return 1.0
	}
	route := make(map[string]bool, len(routeTags))
	for _, t := range routeTags {
		route[strings.ToLower(t)] = true
	}
	matches := 0
	for _, t := range userTags {
		if route[strings.ToLower(t)] {
			matches++
		}
	}
	return float64(matches) / math.Max(1, float64(len(userTags)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Route.Difficulty != results[j].Route.Difficulty {
			return results[i].Route.Difficulty < results[j].Route.Difficulty
		}
		if results[i].Route.LengthMeters != results[j].Route.LengthMeters {
			return results[i].Route.LengthMeters < results[j].Route.LengthMeters
		}
		return results[i].Route.ID < results[j].Route.ID
	})
}
