// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package achievements implements the C9 Achievement Engine: a
// declarative rule set evaluated against a profile's derived statistics,
// with idempotent (profile, rule) unlock semantics enforced by the
// profile store's uniqueness guarantee.
package achievements

import (
	"log/slog"

	"github.com/pathlore/pathlore/services/analytics"
	"github.com/pathlore/pathlore/services/domain"
	"github.com/pathlore/pathlore/services/storage/achievements"
	"github.com/pathlore/pathlore/services/storage/catalog"
	"github.com/pathlore/pathlore/services/storage/profile"
)

// Condition types, the closed set the engine understands.
const (
	ConditionRoutesCompletedCount    = "routes_completed_count"
	ConditionRoutesOfCategoryCompleted = "routes_of_category_completed"
	ConditionLevel                   = "level"
	ConditionTotalXP                 = "total_xp"
	ConditionTotalDistanceKm         = "total_distance_km"
)

// MetricsRecorder receives a count each time a rule unlocks for a
// profile, labeled by rule key.
type MetricsRecorder interface {
	IncAchievementUnlocked(ruleKey string)
}

type noopMetrics struct{}

func (noopMetrics) IncAchievementUnlocked(string) {}

// Engine evaluates achievement rules against a profile's derived
// statistics.
type Engine struct {
	profiles *profile.Store
	catalog  *catalog.Store
	rules    *achievements.RuleStore
	metrics  MetricsRecorder
	analytics analytics.Sink
	logger   *slog.Logger
}

// New builds an Achievement Engine.
func New(profileStore *profile.Store, catalogStore *catalog.Store, ruleStore *achievements.RuleStore) *Engine {
	return &Engine{profiles: profileStore, catalog: catalogStore, rules: ruleStore, metrics: noopMetrics{}, analytics: analytics.NoopSink{}, logger: slog.Default().With("component", "achievements.Engine")}
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

// DefaultRules is the seeded, append-only rule set shipped with the
// product. SeedRules should be called with this at startup.
func DefaultRules() []domain.AchievementRule {
	return []domain.AchievementRule{
		{Key: "first-steps", Name: "First Steps", Description: "Complete your first route.", Icon: "footprints", ConditionType: ConditionRoutesCompletedCount, ConditionValue: 1},
		{Key: "hiker", Name: "Hiker", Description: "Complete 5 routes.", Icon: "boot", ConditionType: ConditionRoutesCompletedCount, ConditionValue: 5},
		{Key: "trailblazer", Name: "Trailblazer", Description: "Complete 25 routes.", Icon: "compass", ConditionType: ConditionRoutesCompletedCount, ConditionValue: 25},
		{Key: "forest-wanderer", Name: "Forest Wanderer", Description: "Complete a forest route.", Icon: "tree", ConditionType: ConditionRoutesOfCategoryCompleted, ConditionCategory: "forest"},
		{Key: "leveled-up", Name: "Leveled Up", Description: "Reach level 5.", Icon: "star", ConditionType: ConditionLevel, ConditionValue: 5},
		{Key: "xp-hoarder", Name: "XP Hoarder", Description: "Earn 1000 total XP.", Icon: "gem", ConditionType: ConditionTotalXP, ConditionValue: 1000},
		{Key: "long-hauler", Name: "Long Hauler", Description: "Travel 100km cumulatively.", Icon: "map", ConditionType: ConditionTotalDistanceKm, ConditionValue: 100},
	}
}

// SeedRules reconciles the default rule set with what's persisted.
func (e *Engine) SeedRules() error {
	return e.rules.SeedRules(DefaultRules())
}

// ComputeStatistics derives a profile's statistics from its souvenirs,
// the routes they reference, and its own xp/level.
func (e *Engine) ComputeStatistics(profileID int64) (domain.ProfileStatistics, error) {
	p, err := e.profiles.GetByID(profileID)
	if err != nil {
		return domain.ProfileStatistics{}, err
	}

	souvenirs, err := e.profiles.ListSouvenirs(profileID, profile.SortNewest, 0, 0)
	if err != nil {
		return domain.ProfileStatistics{}, err
	}

	seenRoutes := make(map[int64]bool)
	categories := make(map[string]int)
	var totalDistance float64

	for _, sv := range souvenirs {
		route, err := e.catalog.GetWithBreakpoints(sv.RouteID)
		if err != nil {
			e.logger.Warn("skipping souvenir with unresolvable route", "souvenir_id", sv.ID, "route_id", sv.RouteID, "error", err)
			continue
		}
		totalDistance += route.LengthKm()
		if !seenRoutes[sv.RouteID] {
			seenRoutes[sv.RouteID] = true
			categories[route.Category]++
		}
	}

	return domain.ProfileStatistics{
		RoutesCompletedCount: len(seenRoutes),
		CategoriesCompleted:  categories,
		TotalDistanceKm:      totalDistance,
		Level:                p.Level,
		TotalXP:              p.TotalXP,
	}, nil
}

// CheckAchievements evaluates every rule for profileID, inserting an
// unlock for each newly satisfied one, and returns the set of keys
// unlocked by this call (empty if none are new). Per-rule evaluation
// failures are logged and do not block the remaining rules.
func (e *Engine) CheckAchievements(profileID int64) ([]string, error) {
	stats, err := e.ComputeStatistics(profileID)
	if err != nil {
		return nil, err
	}

	rules, err := e.rules.ListAll()
	if err != nil {
		return nil, err
	}

	var newlyUnlocked []string
	for _, rule := range rules {
		satisfied, err := evaluate(rule, stats)
		if err != nil {
			e.logger.Warn("rule evaluation failed, skipping", "rule_key", rule.Key, "error", err)
			continue
		}
		if !satisfied {
			continue
		}
		inserted, err := e.profiles.InsertUnlockIfAbsent(profileID, rule.Key)
		if err != nil {
			e.logger.Warn("unlock insertion failed", "rule_key", rule.Key, "error", err)
			continue
		}
		if inserted {
			newlyUnlocked = append(newlyUnlocked, rule.Key)
			e.metrics.IncAchievementUnlocked(rule.Key)
			e.analytics.RecordAchievementUnlocked(profileID, rule.Key)
		}
	}
	return newlyUnlocked, nil
}

func evaluate(rule domain.AchievementRule, stats domain.ProfileStatistics) (bool, error) {
	switch rule.ConditionType {
	case ConditionRoutesCompletedCount:
		return float64(stats.RoutesCompletedCount) >= rule.ConditionValue, nil
	case ConditionRoutesOfCategoryCompleted:
		return stats.CategoriesCompleted[rule.ConditionCategory] >= 1, nil
	case ConditionLevel:
		return float64(stats.Level) >= rule.ConditionValue, nil
	case ConditionTotalXP:
		return float64(stats.TotalXP) >= rule.ConditionValue, nil
	case ConditionTotalDistanceKm:
		return stats.TotalDistanceKm >= rule.ConditionValue, nil
	default:
		return false, nil
	}
}
