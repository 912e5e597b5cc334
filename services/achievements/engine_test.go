// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package achievements

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pathlore/pathlore/services/domain"
	badgerstore "github.com/pathlore/pathlore/services/storage/badger"
	storedachievements "github.com/pathlore/pathlore/services/storage/achievements"
	"github.com/pathlore/pathlore/services/storage/catalog"
	"github.com/pathlore/pathlore/services/storage/profile"
)

func newTestEngine(t *testing.T) (*Engine, *profile.Store, *catalog.Store) {
	t.Helper()
	cfg := badgerstore.DefaultConfig(t.TempDir())
	cfg.InMemory = true
	db, err := badgerstore.OpenDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	profiles := profile.New(db)
	cat := catalog.New(db)
	rules := storedachievements.New(db)

	e := New(profiles, cat, rules)
	require.NoError(t, e.SeedRules())
	return e, profiles, cat
}

func TestCheckAchievements_FirstCompletionUnlocksFirstSteps(t *testing.T) {
	e, profiles, cat := newTestEngine(t)
	p, err := profiles.Create(domain.PreferenceVector{}, "")
	require.NoError(t, err)
	routes, err := cat.Import([]domain.Route{{Title: "R", Category: "hiking", LengthMeters: 5000}})
	require.NoError(t, err)
	_, err = profiles.InsertSouvenir(domain.Souvenir{ProfileID: p.ID, RouteID: routes[0].ID})
	require.NoError(t, err)

	unlocked, err := e.CheckAchievements(p.ID)
	require.NoError(t, err)
	require.Contains(t, unlocked, "first-steps")
}

func TestCheckAchievements_RepeatedCallNoNewUnlocks(t *testing.T) {
	e, profiles, cat := newTestEngine(t)
	p, err := profiles.Create(domain.PreferenceVector{}, "")
	require.NoError(t, err)
	routes, err := cat.Import([]domain.Route{{Title: "R", LengthMeters: 5000}})
	require.NoError(t, err)
	_, err = profiles.InsertSouvenir(domain.Souvenir{ProfileID: p.ID, RouteID: routes[0].ID})
	require.NoError(t, err)

	first, err := e.CheckAchievements(p.ID)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := e.CheckAchievements(p.ID)
	require.NoError(t, err)
	require.Empty(t, second)
}

func TestComputeStatistics_DistinctRoutesAndCumulativeDistance(t *testing.T) {
	e, profiles, cat := newTestEngine(t)
	p, err := profiles.Create(domain.PreferenceVector{}, "")
	require.NoError(t, err)
	routes, err := cat.Import([]domain.Route{{Title: "R", Category: "forest", LengthMeters: 10000}})
	require.NoError(t, err)

	_, err = profiles.InsertSouvenir(domain.Souvenir{ProfileID: p.ID, RouteID: routes[0].ID})
	require.NoError(t, err)
	_, err = profiles.InsertSouvenir(domain.Souvenir{ProfileID: p.ID, RouteID: routes[0].ID})
	require.NoError(t, err)

	stats, err := e.ComputeStatistics(p.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stats.RoutesCompletedCount)
	require.InDelta(t, 20.0, stats.TotalDistanceKm, 1e-9)
	require.Equal(t, 1, stats.CategoriesCompleted["forest"])
}

func TestCheckAchievements_LevelRuleUsesProfileLevel(t *testing.T) {
	e, profiles, _ := newTestEngine(t)
	p, err := profiles.Create(domain.PreferenceVector{}, "")
	require.NoError(t, err)
	_, err = profiles.UpdateXPAndLevel(p.ID, 1500, 300)
	require.NoError(t, err)

	unlocked, err := e.CheckAchievements(p.ID)
	require.NoError(t, err)
	require.Contains(t, unlocked, "leveled-up")
	require.Contains(t, unlocked, "xp-hoarder")
}
