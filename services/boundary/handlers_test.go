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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/pathlore/pathlore/services/achievements"
	"github.com/pathlore/pathlore/services/completion"
	"github.com/pathlore/pathlore/services/concurrency"
	"github.com/pathlore/pathlore/services/config"
	"github.com/pathlore/pathlore/services/domain"
	"github.com/pathlore/pathlore/services/history"
	"github.com/pathlore/pathlore/services/llm"
	"github.com/pathlore/pathlore/services/prefs"
	"github.com/pathlore/pathlore/services/recommend"
	"github.com/pathlore/pathlore/services/story"
	badgerstore "github.com/pathlore/pathlore/services/storage/badger"
	storedachievements "github.com/pathlore/pathlore/services/storage/achievements"
	"github.com/pathlore/pathlore/services/storage/catalog"
	"github.com/pathlore/pathlore/services/storage/profile"
)

func newTestServer(t *testing.T) (*httptest.Server, *profile.Store, *catalog.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := badgerstore.DefaultConfig(t.TempDir())
	cfg.InMemory = true
	db, err := badgerstore.OpenDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	profiles := profile.New(db)
	cat := catalog.New(db)
	rules := storedachievements.New(db)
	achEngine := achievements.New(profiles, cat, rules)
	require.NoError(t, achEngine.SeedRules())

	llmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(llmServer.Close)

	llmCfg := config.Default()
	llmCfg.LLMEndpointURL = llmServer.URL
	llmCfg.LLMTimeout = 2 * time.Second
	llmCfg.LLMRetryAttempts = 0
	client := llm.New(llmCfg, "")
	sem := concurrency.NewLLMSemaphore(4)
	locks := concurrency.NewProfileLocks()
	group := concurrency.NewStoryGroup()

	hist := history.New(t.TempDir())
	require.NoError(t, hist.Load())

	recEngine := recommend.New(cat, recommend.Weights{Difficulty: 0.4, Distance: 0.3, Tags: 0.3}, prefs.Params{HalfLifeDays: 30, FilterThreshold: 3, PenaltyBase: 0.05})
	storyPipeline := story.New(db, cat, hist, client, sem, group)
	completionPipeline := completion.New(profiles, cat, achEngine, client, locks, sem, 300)

	h := New(profiles, cat, recEngine, storyPipeline, completionPipeline, achEngine, rules, client, sem)

	engine := gin.New()
	RegisterRoutes(engine.Group("/api"), h)

	return httptest.NewServer(engine), profiles, cat
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestCreateProfile_ValidatesAndFallsBackToTemplate(t *testing.T) {
	server, _, _ := newTestServer(t)
	defer server.Close()

	resp := doJSON(t, http.MethodPost, server.URL+"/api/profiles", CreateProfileRequest{
		Fitness: "intermediate", Narrative: "adventure",
		DifficultyLo: 0.5, DifficultyHi: 2, MaxDistanceKm: 10,
	})
	defer resp.Body.Close()
	require.Equal(t, 201, resp.StatusCode)

	var out ProfileResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotZero(t, out.ID)
	require.Contains(t, out.WelcomeSummary, "intermediate")
}

func TestCreateProfile_RejectsInvalidFitness(t *testing.T) {
	server, _, _ := newTestServer(t)
	defer server.Close()

	resp := doJSON(t, http.MethodPost, server.URL+"/api/profiles", map[string]any{
		"fitness": "superhuman", "narrative": "adventure",
	})
	defer resp.Body.Close()
	require.Equal(t, 400, resp.StatusCode)
}

func TestCreateProfile_RejectsInvertedDifficultyRange(t *testing.T) {
	server, _, _ := newTestServer(t)
	defer server.Close()

	resp := doJSON(t, http.MethodPost, server.URL+"/api/profiles", CreateProfileRequest{
		Fitness: "beginner", Narrative: "mystery",
		DifficultyLo: 2, DifficultyHi: 1,
	})
	defer resp.Body.Close()
	require.Equal(t, 400, resp.StatusCode)
}

func TestGetProfile_NotFoundMapsTo404(t *testing.T) {
	server, _, _ := newTestServer(t)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/profiles/99999")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 404, resp.StatusCode)

	var errBody ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errBody))
	require.Equal(t, "not_found", errBody.Kind)
}

func TestSubmitFeedback_RejectsUnknownReason(t *testing.T) {
	server, profiles, _ := newTestServer(t)
	defer server.Close()
	p, err := profiles.Create(domain.PreferenceVector{}, "")
	require.NoError(t, err)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/profiles/"+idStr(p.ID)+"/feedback", SubmitFeedbackRequest{RouteID: 1, Reason: "bogus"})
	defer resp.Body.Close()
	require.Equal(t, 400, resp.StatusCode)
}

func TestCompleteRouteAndListSouvenirs(t *testing.T) {
	server, profiles, cat := newTestServer(t)
	defer server.Close()
	p, err := profiles.Create(domain.PreferenceVector{}, "")
	require.NoError(t, err)
	routes, err := cat.Import([]domain.Route{{Title: "R", BaseXPReward: 10}})
	require.NoError(t, err)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/profiles/"+idStr(p.ID)+"/souvenirs", CompleteRouteRequest{RouteID: routes[0].ID})
	defer resp.Body.Close()
	require.Equal(t, 201, resp.StatusCode)

	listResp, err := http.Get(server.URL + "/api/profiles/" + idStr(p.ID) + "/souvenirs")
	require.NoError(t, err)
	defer listResp.Body.Close()
	require.Equal(t, 200, listResp.StatusCode)

	var out struct {
		Results []domain.Souvenir `json:"results"`
	}
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&out))
	require.Len(t, out.Results, 1)
}

func TestListRecommendations_AnonymousFallsBackToPopularity(t *testing.T) {
	server, _, cat := newTestServer(t)
	defer server.Close()
	_, err := cat.Import([]domain.Route{{Title: "R", Category: "forest"}})
	require.NoError(t, err)

	resp, err := http.Get(server.URL + "/api/recommendations")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var out struct {
		Results []recommend.Result `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Results, 1)
	require.False(t, out.Results[0].Personalized)
}

func TestListAchievements_CombinesRulesAndUnlocks(t *testing.T) {
	server, profiles, cat := newTestServer(t)
	defer server.Close()
	p, err := profiles.Create(domain.PreferenceVector{}, "")
	require.NoError(t, err)
	routes, err := cat.Import([]domain.Route{{Title: "R"}})
	require.NoError(t, err)
	_, err = profiles.InsertSouvenir(domain.Souvenir{ProfileID: p.ID, RouteID: routes[0].ID})
	require.NoError(t, err)

	checkResp, err := http.Post(server.URL+"/api/profiles/"+idStr(p.ID)+"/achievements/check", "application/json", nil)
	require.NoError(t, err)
	checkResp.Body.Close()

	resp, err := http.Get(server.URL + "/api/profiles/" + idStr(p.ID) + "/achievements")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out struct {
		Results []struct {
			Key      string `json:"key"`
			Unlocked bool   `json:"unlocked"`
		} `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	found := false
	for _, r := range out.Results {
		if r.Key == "first-steps" {
			found = true
			require.True(t, r.Unlocked)
		}
	}
	require.True(t, found)
}

func idStr(id int64) string {
	return strconv.FormatInt(id, 10)
}
