// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pathlore/pathlore/services/domain"
	"github.com/pathlore/pathlore/services/perr"
	badgerstore "github.com/pathlore/pathlore/services/storage/badger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := badgerstore.DefaultConfig(t.TempDir())
	cfg.InMemory = true
	db, err := badgerstore.OpenDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db)
}

func sampleRoute() domain.Route {
	return domain.Route{
		Title:    "Ridge Loop",
		Category: "hiking",
		Tags:     []string{"forest", "summit"},
		Breakpoints: []domain.Breakpoint{
			{ID: 100, POIName: "Gate"},
			{ID: 101, POIName: "Statue"},
		},
	}
}

func TestImport_AssignsIDsAndContiguousOrderIndex(t *testing.T) {
	s := newTestStore(t)
	out, err := s.Import([]domain.Route{sampleRoute()})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, int64(1), out[0].ID)
	require.Equal(t, 0, out[0].Breakpoints[0].OrderIndex)
	require.Equal(t, 1, out[0].Breakpoints[1].OrderIndex)
}

func TestGetWithBreakpoints_OrdersByOrderIndex(t *testing.T) {
	s := newTestStore(t)
	r := sampleRoute()
	r.Breakpoints[0].OrderIndex = 1
	r.Breakpoints[1].OrderIndex = 0
	imported, err := s.Import([]domain.Route{r})
	require.NoError(t, err)

	got, err := s.GetWithBreakpoints(imported[0].ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.Breakpoints[0].OrderIndex)
}

func TestGetWithBreakpoints_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetWithBreakpoints(999)
	require.True(t, errors.Is(err, perr.NotFound))
}

func TestListCandidates_FiltersByCategory(t *testing.T) {
	s := newTestStore(t)
	hiking := sampleRoute()
	biking := sampleRoute()
	biking.Category = "biking"
	_, err := s.Import([]domain.Route{hiking, biking})
	require.NoError(t, err)

	out, err := s.ListCandidates(CandidateFilter{Category: "hiking"}, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "hiking", out[0].Category)
}

func TestPersistStory_SkeletonAndChapters(t *testing.T) {
	s := newTestStore(t)
	imported, err := s.Import([]domain.Route{sampleRoute()})
	require.NoError(t, err)
	routeID := imported[0].ID

	err = s.PersistStory(routeID, &StorySkeleton{
		PrologueTitle: "The Ridge Calls",
		PrologueBody:  "Once upon a trail...",
		EpilogueBody:  "And so it ends.",
	}, nil)
	require.NoError(t, err)

	got, err := s.GetWithBreakpoints(routeID)
	require.NoError(t, err)
	require.True(t, got.HasStory())
	require.Equal(t, "The Ridge Calls", got.PrologueTitle)

	err = s.PersistStory(routeID, nil, []ChapterUpdate{
		{BreakpointID: 100, MainQuestSnippet: "Chapter one text."},
	})
	require.NoError(t, err)

	got, err = s.GetWithBreakpoints(routeID)
	require.NoError(t, err)
	require.Equal(t, "Chapter one text.", got.Breakpoints[0].MainQuestSnippet)
	require.Empty(t, got.Breakpoints[1].MainQuestSnippet)
}

func TestIncrementCompletionCount(t *testing.T) {
	s := newTestStore(t)
	imported, err := s.Import([]domain.Route{sampleRoute()})
	require.NoError(t, err)

	require.NoError(t, s.IncrementCompletionCount(imported[0].ID))
	require.NoError(t, s.IncrementCompletionCount(imported[0].ID))

	got, err := s.GetWithBreakpoints(imported[0].ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.CompletionCount)
}
