// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package story

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pathlore/pathlore/services/concurrency"
	"github.com/pathlore/pathlore/services/config"
	"github.com/pathlore/pathlore/services/domain"
	"github.com/pathlore/pathlore/services/history"
	"github.com/pathlore/pathlore/services/llm"
	badgerstore "github.com/pathlore/pathlore/services/storage/badger"
	"github.com/pathlore/pathlore/services/storage/catalog"
)

func newTestPipeline(t *testing.T, handler http.HandlerFunc) (*Pipeline, *catalog.Store) {
	t.Helper()
	cfg := badgerstore.DefaultConfig(t.TempDir())
	cfg.InMemory = true
	db, err := badgerstore.OpenDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cat := catalog.New(db)
	hist := history.New(t.TempDir())
	require.NoError(t, hist.Load())

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	llmCfg := config.Default()
	llmCfg.LLMEndpointURL = server.URL
	llmCfg.LLMTimeout = 5 * time.Second
	llmCfg.LLMRetryAttempts = 1
	client := llm.New(llmCfg, "")

	sem := concurrency.NewLLMSemaphore(4)
	group := concurrency.NewStoryGroup()

	return New(db, cat, hist, client, sem, group), cat
}

func jsonResponder(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"response": body})
	}
}

func TestGenerateStory_SkeletonAndChapters(t *testing.T) {
	callNum := 0
	handler := func(w http.ResponseWriter, r *http.Request) {
		callNum++
		w.Header().Set("Content-Type", "application/json")
		if callNum == 1 {
			json.NewEncoder(w).Encode(map[string]string{"response": `{"prologue_title":"T","prologue_body":"Begin.","epilogue_body":"End."}`})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"response": `{"chapter_body":"A long chapter body text that goes on for a while describing the journey.","mini_quests":[{"type":"photo","description":"Snap it"}]}`})
	}

	p, cat := newTestPipeline(t, handler)
	imported, err := cat.Import([]domain.Route{{
		Title: "Ridge Loop",
		Breakpoints: []domain.Breakpoint{
			{ID: 1, POIName: "Gate", POIType: "gate"},
			{ID: 2, POIName: "Statue", POIType: "statue"},
		},
	}})
	require.NoError(t, err)

	route, err := p.GenerateStory(context.Background(), imported[0].ID, domain.NarrativeAdventure, false)
	require.NoError(t, err)
	require.Equal(t, "T", route.PrologueTitle)
	require.NotEmpty(t, route.Breakpoints[0].MainQuestSnippet)
	require.NotEmpty(t, route.Breakpoints[1].MainQuestSnippet)

	state, err := p.GetState(imported[0].ID)
	require.NoError(t, err)
	require.Equal(t, StateDone, state)
}

func TestGenerateStory_Idempotent_WithoutForce(t *testing.T) {
	handler := jsonResponder(`{"prologue_title":"T","prologue_body":"Begin.","epilogue_body":"End."}`)
	p, cat := newTestPipeline(t, handler)
	imported, err := cat.Import([]domain.Route{{Title: "R"}})
	require.NoError(t, err)

	route1, err := p.GenerateStory(context.Background(), imported[0].ID, domain.NarrativeAdventure, false)
	require.NoError(t, err)

	route2, err := p.GenerateStory(context.Background(), imported[0].ID, domain.NarrativeAdventure, false)
	require.NoError(t, err)
	require.Equal(t, route1.PrologueBody, route2.PrologueBody)
}

func TestGenerateStory_FallsBackToTemplateOnLLMFailure(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}
	p, cat := newTestPipeline(t, handler)
	imported, err := cat.Import([]domain.Route{{Title: "Lonely Trail"}})
	require.NoError(t, err)

	route, err := p.GenerateStory(context.Background(), imported[0].ID, domain.NarrativeAdventure, false)
	require.NoError(t, err)
	require.Contains(t, route.PrologueBody, "Lonely Trail")
}

func TestEnsureHistoricalMention_AppendsNoteWhenMissing(t *testing.T) {
	ctx := "A very old bridge was constructed here in the year eighteen hundred and something, by settlers long gone."
	body := ensureHistoricalMention("Nothing about history here.", ctx)
	require.Contains(t, body, "Historical note:")
	require.Contains(t, body, ctx)
}

func TestEnsureHistoricalMention_NoopWhenPresent(t *testing.T) {
	ctx := "A very old bridge was constructed here in the year eighteen hundred and something, by settlers long gone."
	body := "The chapter describes: " + ctx[:100]
	out := ensureHistoricalMention(body, ctx)
	require.Equal(t, body, out)
}

func TestBuildMiniQuests_XPCapsAtForty(t *testing.T) {
	quests := buildMiniQuests([]quizOrTaskQuest{{Type: "photo", Description: "x"}}, 10)
	require.Len(t, quests, 1)
	require.Equal(t, 40, quests[0].XPReward)
}

func TestBuildMiniQuests_RejectsMalformedPuzzle(t *testing.T) {
	quests := buildMiniQuests([]quizOrTaskQuest{{Type: "puzzle", Description: "x", Choices: []string{"a", "b"}}}, 0)
	require.Empty(t, quests)
}
