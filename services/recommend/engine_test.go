// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recommend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pathlore/pathlore/services/domain"
	"github.com/pathlore/pathlore/services/prefs"
	badgerstore "github.com/pathlore/pathlore/services/storage/badger"
	"github.com/pathlore/pathlore/services/storage/catalog"
)

func newTestEngine(t *testing.T) (*Engine, *catalog.Store) {
	t.Helper()
	cfg := badgerstore.DefaultConfig(t.TempDir())
	cfg.InMemory = true
	db, err := badgerstore.OpenDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cat := catalog.New(db)
	eng := New(cat, Weights{Difficulty: 0.4, Distance: 0.3, Tags: 0.3}, prefs.Params{})
	return eng, cat
}

func TestRecommend_ScenarioOne_WeightedScore(t *testing.T) {
	eng, cat := newTestEngine(t)
	_, err := cat.Import([]domain.Route{{
		Title: "R", Difficulty: 3, LengthMeters: 15000, Tags: []string{"forest"},
	}})
	require.NoError(t, err)

	profile := &ProfileContext{BaseVector: domain.PreferenceVector{
		DifficultyRange: domain.DifficultyRange{Lo: 1, Hi: 2},
		MaxDistanceKm:   10,
		PreferredTags:   []string{"forest"},
	}}
	results, err := eng.Recommend(profile, "", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.InDelta(t, 0.667, results[0].Breakdown.Difficulty.Value, 0.01)
	require.InDelta(t, 0.5, results[0].Breakdown.Distance.Value, 0.01)
	require.InDelta(t, 1.0, results[0].Breakdown.Tags.Value, 0.01)
	require.InDelta(t, 0.717, results[0].Score, 0.01)
}

func TestRecommend_ScoreAlwaysInRange(t *testing.T) {
	eng, cat := newTestEngine(t)
	_, err := cat.Import([]domain.Route{
		{Title: "A", Difficulty: 0, LengthMeters: 1000, Tags: []string{"x"}},
		{Title: "B", Difficulty: 3, LengthMeters: 50000, Tags: nil},
	})
	require.NoError(t, err)

	profile := &ProfileContext{BaseVector: domain.PreferenceVector{
		DifficultyRange: domain.DifficultyRange{Lo: 1, Hi: 2}, MaxDistanceKm: 5,
	}}
	results, err := eng.Recommend(profile, "", 0)
	require.NoError(t, err)
	for _, r := range results {
		require.GreaterOrEqual(t, r.Score, 0.0)
		require.LessOrEqual(t, r.Score, 1.0)
	}
}

func TestRecommend_NoProfile_PopularityFallback(t *testing.T) {
	eng, cat := newTestEngine(t)
	imported, err := cat.Import([]domain.Route{{Title: "Popular"}, {Title: "Rare"}})
	require.NoError(t, err)
	require.NoError(t, cat.IncrementCompletionCount(imported[1].ID))
	require.NoError(t, cat.IncrementCompletionCount(imported[1].ID))
	require.NoError(t, cat.IncrementCompletionCount(imported[0].ID))

	results, err := eng.Recommend(nil, "", 0)
	require.NoError(t, err)
	require.False(t, results[0].Personalized)
	require.Equal(t, "Rare", results[0].Route.Title)
	require.Nil(t, results[0].Breakdown)
}

func TestRecommend_FilterThreshold_ExcludesHeavilyFedBackRoute(t *testing.T) {
	eng, cat := newTestEngine(t)
	imported, err := cat.Import([]domain.Route{{Title: "R", Difficulty: 0, LengthMeters: 1000}})
	require.NoError(t, err)

	var fb []domain.FeedbackRecord
	for i := 0; i < 3; i++ {
		fb = append(fb, domain.FeedbackRecord{RouteID: imported[0].ID, Reason: domain.ReasonTooHard})
	}
	profile := &ProfileContext{BaseVector: domain.PreferenceVector{DifficultyRange: domain.DifficultyRange{Lo: 0, Hi: 3}, MaxDistanceKm: 10}, Feedback: fb}

	results, err := eng.Recommend(profile, "", 0)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestRecommend_EmptyCandidates_ReturnsEmptyNotError(t *testing.T) {
	eng, _ := newTestEngine(t)
	results, err := eng.Recommend(nil, "", 0)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestDifficultyScore_InsideRangeIsOne(t *testing.T) {
	require.Equal(t, 1.0, difficultyScore(1.5, domain.DifficultyRange{Lo: 1, Hi: 2}))
}

func TestDistanceScore_BelowMinLinear(t *testing.T) {
	require.InDelta(t, 0.5, distanceScore(2.5, 5, 10), 0.01)
}

func TestTagScore_NoUserTagsIsOne(t *testing.T) {
	require.Equal(t, 1.0, tagScore(nil, []string{"forest"}))
}
