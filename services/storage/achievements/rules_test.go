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
)

func newTestStore(t *testing.T) *RuleStore {
	t.Helper()
	cfg := badgerstore.DefaultConfig(t.TempDir())
	cfg.InMemory = true
	db, err := badgerstore.OpenDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db)
}

func TestSeedRules_InsertsNewLeavesExistingUntouched(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SeedRules([]domain.AchievementRule{
		{Key: "first-steps", Name: "First Steps", ConditionType: "routes_completed_count", ConditionValue: 1},
	}))

	all, err := s.ListAll()
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, s.SeedRules([]domain.AchievementRule{
		{Key: "first-steps", Name: "Renamed", ConditionType: "routes_completed_count", ConditionValue: 1},
		{Key: "hiker", Name: "Hiker", ConditionType: "routes_completed_count", ConditionValue: 5},
	}))

	all, err = s.ListAll()
	require.NoError(t, err)
	require.Len(t, all, 2)

	for _, r := range all {
		if r.Key == "first-steps" {
			require.Equal(t, "First Steps", r.Name)
		}
	}
}
