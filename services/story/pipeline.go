// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package story implements the C7 Story Pipeline: skeleton generation
// (Stage A), per-breakpoint chapter generation (Stage B), and the
// persisted per-route state machine tracking progress between the two.
package story

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/pathlore/pathlore/services/concurrency"
	"github.com/pathlore/pathlore/services/domain"
	"github.com/pathlore/pathlore/services/history"
	"github.com/pathlore/pathlore/services/llm"
	badgerstore "github.com/pathlore/pathlore/services/storage/badger"
	"github.com/pathlore/pathlore/services/storage/catalog"
)

// MetricsRecorder receives per-stage generation timing and fallback
// counts from the pipeline.
type MetricsRecorder interface {
	ObserveStoryStage(stage string, seconds float64)
	IncStoryStageFailure(stage string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveStoryStage(string, float64) {}
func (noopMetrics) IncStoryStageFailure(string)        {}

// State is one point in the per-route story generation state machine.
type State string

const (
	StateIdle             State = "idle"
	StateSkeletonPending   State = "skeleton_pending"
	StateChaptersPending   State = "chapters_pending"
	StateDone              State = "done"
	StateFailed            State = "failed"
)

const storyStateKeyPrefix = "story_state/v1/"

const minHistoricalMentionLen = 100

// Pipeline orchestrates Stage A and Stage B generation against a single
// local model endpoint, bounded by the LLM semaphore and de-duplicated
// by the per-route single-flight group.
type Pipeline struct {
	db       *badgerstore.DB
	catalog  *catalog.Store
	history  *history.Provider
	client   *llm.Client
	sem      *concurrency.LLMSemaphore
	group    *concurrency.StoryGroup
	metrics  MetricsRecorder
	logger   *slog.Logger
}

// New builds a Story Pipeline.
func New(db *badgerstore.DB, catalogStore *catalog.Store, historyProvider *history.Provider, client *llm.Client, sem *concurrency.LLMSemaphore, group *concurrency.StoryGroup) *Pipeline {
	return &Pipeline{
		db:      db,
		catalog: catalogStore,
		history: historyProvider,
		client:  client,
		sem:     sem,
		group:   group,
		metrics: noopMetrics{},
		logger:  slog.Default().With("component", "story.Pipeline"),
	}
}

// SetMetrics attaches a metrics sink; nil is replaced with a no-op.
func (p *Pipeline) SetMetrics(m MetricsRecorder) {
	if m == nil {
		m = noopMetrics{}
	}
	p.metrics = m
}

func storyStateKey(routeID int64) string { return fmt.Sprintf("%s%d", storyStateKeyPrefix, routeID) }

func (p *Pipeline) setState(routeID int64, s State) error {
	return p.db.WithTxn(func(txn *dgbadger.Txn) error {
		return badgerstore.Put(txn, storyStateKey(routeID), s, 0)
	})
}

// GetState returns the persisted state for routeID, defaulting to idle
// if none has ever been recorded.
func (p *Pipeline) GetState(routeID int64) (State, error) {
	var s State
	err := p.db.WithReadTxn(func(txn *dgbadger.Txn) error {
		return badgerstore.Get(txn, storyStateKey(routeID), &s)
	})
	if err == badgerstore.ErrKeyNotFound {
		return StateIdle, nil
	}
	return s, err
}

// skeletonResponse is the expected shape of Stage A's LLM output.
type skeletonResponse struct {
	PrologueTitle       string   `json:"prologue_title"`
	PrologueBody        string   `json:"prologue_body"`
	EpilogueBody        string   `json:"epilogue_body"`
	OutlinePerBreakpoint []string `json:"outline_per_breakpoint"`
}

// chapterResponse is the expected shape of each Stage B call.
type chapterResponse struct {
	ChapterBody string            `json:"chapter_body"`
	MiniQuests  []quizOrTaskQuest `json:"mini_quests"`
}

type quizOrTaskQuest struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Choices     []string `json:"choices,omitempty"`
	CorrectIdx  *int     `json:"correct_index,omitempty"`
}

// GenerateStory runs Stage A (if needed) and Stage B for every
// breakpoint still missing a chapter, single-flighted per route id.
// forceRegenerate re-runs both stages unconditionally.
func (p *Pipeline) GenerateStory(ctx context.Context, routeID int64, narrativeStyle domain.NarrativeStyle, forceRegenerate bool) (domain.Route, error) {
	result, err, _ := p.group.Do(routeID, func() (any, error) {
		return p.generate(ctx, routeID, narrativeStyle, forceRegenerate)
	})
	if err != nil {
		return domain.Route{}, err
	}
	return result.(domain.Route), nil
}

func (p *Pipeline) generate(ctx context.Context, routeID int64, narrativeStyle domain.NarrativeStyle, forceRegenerate bool) (domain.Route, error) {
	route, err := p.catalog.GetWithBreakpoints(routeID)
	if err != nil {
		return domain.Route{}, err
	}

	if !route.HasStory() || forceRegenerate {
		if err := p.setState(routeID, StateSkeletonPending); err != nil {
			return domain.Route{}, err
		}
		skeleton, err := p.runStageA(ctx, route, narrativeStyle)
		if err != nil {
			_ = p.setState(routeID, StateFailed)
			return domain.Route{}, err
		}
		if err := p.catalog.PersistStory(routeID, skeleton, nil); err != nil {
			return domain.Route{}, err
		}
		route, err = p.catalog.GetWithBreakpoints(routeID)
		if err != nil {
			return domain.Route{}, err
		}
	}

	var updates []catalog.ChapterUpdate
	previousClosing := ""
	for _, bp := range route.Breakpoints {
		if bp.MainQuestSnippet != "" && !forceRegenerate {
			previousClosing = closingSentence(bp.MainQuestSnippet)
			continue
		}
		if err := p.setState(routeID, StateChaptersPending); err != nil {
			return domain.Route{}, err
		}
		histCtx, _ := p.history.ContextFor(routeID, bp)
		stageStart := time.Now()
		update, err := p.runStageB(ctx, route, bp, previousClosing, histCtx)
		p.metrics.ObserveStoryStage("chapter", time.Since(stageStart).Seconds())
		if err != nil {
			p.logger.Warn("chapter generation failed, leaving breakpoint unfilled", "route_id", routeID, "breakpoint_id", bp.ID, "error", err)
			p.metrics.IncStoryStageFailure("chapter")
			continue
		}
		updates = append(updates, update)
		previousClosing = closingSentence(update.MainQuestSnippet)
	}

	if len(updates) > 0 {
		if err := p.catalog.PersistStory(routeID, nil, updates); err != nil {
			return domain.Route{}, err
		}
	}

	final, err := p.catalog.GetWithBreakpoints(routeID)
	if err != nil {
		return domain.Route{}, err
	}

	if allChaptersFilled(final) {
		_ = p.setState(routeID, StateDone)
	}
	return final, nil
}

func (p *Pipeline) runStageA(ctx context.Context, route domain.Route, narrativeStyle domain.NarrativeStyle) (*catalog.StorySkeleton, error) {
	start := time.Now()
	poiNames := make([]string, len(route.Breakpoints))
	for i, bp := range route.Breakpoints {
		poiNames[i] = bp.POIName
	}
	prompt := fmt.Sprintf(
		"narrative_style=%s route_title=%q location=%q length_km=%.1f breakpoint_count=%d poi_names=%v\n"+
			"Produce JSON with fields prologue_title, prologue_body, epilogue_body, outline_per_breakpoint (array of strings).",
		narrativeStyle, route.Title, route.Location, route.LengthKm(), len(route.Breakpoints), poiNames)

	skeleton, err := p.callForSkeleton(ctx, prompt)
	if err != nil {
		p.logger.Warn("stage A retry", "route_id", route.ID, "error", err)
		skeleton, err = p.callForSkeleton(ctx, prompt)
	}
	p.metrics.ObserveStoryStage("skeleton", time.Since(start).Seconds())
	if err != nil {
		p.logger.Warn("stage A falling back to template", "route_id", route.ID, "error", err)
		p.metrics.IncStoryStageFailure("skeleton")
		return templateSkeleton(route), nil
	}
	return skeleton, nil
}

func (p *Pipeline) callForSkeleton(ctx context.Context, prompt string) (*catalog.StorySkeleton, error) {
	release, err := p.sem.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	raw, err := p.client.Complete(ctx, prompt, llm.GenerationParams{MaxTokens: 1200, Temperature: 0.8, Mode: llm.ModeJSON})
	if err != nil {
		return nil, err
	}

	var resp skeletonResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("parse skeleton response: %w", err)
	}
	if resp.PrologueTitle == "" || resp.PrologueBody == "" || resp.EpilogueBody == "" {
		return nil, fmt.Errorf("skeleton response missing required fields")
	}
	return &catalog.StorySkeleton{
		PrologueTitle: resp.PrologueTitle,
		PrologueBody:  resp.PrologueBody,
		EpilogueBody:  resp.EpilogueBody,
	}, nil
}

func templateSkeleton(route domain.Route) *catalog.StorySkeleton {
	return &catalog.StorySkeleton{
		PrologueTitle: fmt.Sprintf("The Road to %s", route.Title),
		PrologueBody:  fmt.Sprintf("Every trail begins with a single step. Yours begins at %s.", route.Title),
		EpilogueBody:  fmt.Sprintf("You have completed %s. The trail remembers every footstep.", route.Title),
	}
}

func (p *Pipeline) runStageB(ctx context.Context, route domain.Route, bp domain.Breakpoint, previousClosing, historicalContext string) (catalog.ChapterUpdate, error) {
	prompt := fmt.Sprintf(
		"route_title=%q previous_closing=%q poi_name=%q poi_type=%q historical_context=%q target_words=1000\n"+
			"Produce JSON with fields chapter_body, mini_quests (array of {type, description, choices?, correct_index?}).",
		route.Title, previousClosing, bp.POIName, bp.POIType, historicalContext)

	release, err := p.sem.Acquire(ctx)
	if err != nil {
		return catalog.ChapterUpdate{}, err
	}

	raw, err := p.client.Complete(ctx, prompt, llm.GenerationParams{MaxTokens: 2000, Temperature: 0.8, Mode: llm.ModeJSON})
	release()
	if err != nil {
		return catalog.ChapterUpdate{}, err
	}

	var resp chapterResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return catalog.ChapterUpdate{}, fmt.Errorf("parse chapter response: %w", err)
	}
	if resp.ChapterBody == "" {
		return catalog.ChapterUpdate{}, fmt.Errorf("chapter response missing body")
	}

	body := ensureHistoricalMention(resp.ChapterBody, historicalContext)
	quests := buildMiniQuests(resp.MiniQuests, bp.OrderIndex)

	return catalog.ChapterUpdate{
		BreakpointID:     bp.ID,
		MainQuestSnippet: body,
		MiniQuests:       quests,
	}, nil
}

// ensureHistoricalMention enforces the hard content guarantee: the
// chapter must contain a >=100-char slice of historicalContext, or the
// pipeline appends a "Historical note:" paragraph containing it verbatim.
func ensureHistoricalMention(body, historicalContext string) string {
	if historicalContext == "" {
		return body
	}
	needle := historicalContext
	if len(needle) > minHistoricalMentionLen {
		needle = needle[:minHistoricalMentionLen]
	}
	if strings.Contains(body, needle) {
		return body
	}
	return body + "\n\nHistorical note: " + historicalContext
}

func buildMiniQuests(raw []quizOrTaskQuest, orderIndex int) []domain.MiniQuest {
	xp := 10 + 5*orderIndex
	if xp > 40 {
		xp = 40
	}
	out := make([]domain.MiniQuest, 0, len(raw))
	for i, q := range raw {
		if !isKnownQuestType(q.Type) {
			continue
		}
		if q.Type == "puzzle" && (len(q.Choices) != 4 || q.CorrectIdx == nil) {
			continue
		}
		out = append(out, domain.MiniQuest{
			ID:          int64(orderIndex*10 + i),
			Type:        q.Type,
			Description: q.Description,
			Choices:     q.Choices,
			CorrectIdx:  q.CorrectIdx,
			XPReward:    xp,
		})
	}
	return out
}

func isKnownQuestType(t string) bool {
	switch t {
	case "photo", "observation", "collection", "puzzle":
		return true
	}
	return false
}

func closingSentence(body string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(body), ".")
	sentences := strings.Split(trimmed, ".")
	if len(sentences) == 0 {
		return ""
	}
	return strings.TrimSpace(sentences[len(sentences)-1]) + "."
}

func allChaptersFilled(route domain.Route) bool {
	for _, bp := range route.Breakpoints {
		if bp.MainQuestSnippet == "" {
			return false
		}
	}
	return true
}
