// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package bootstrap assembles the full dependency graph (storage, every
// pipeline, the external boundary) from a resolved Config, so both the
// HTTP server entrypoint and the CLI's one-shot subcommands share a
// single wiring path instead of duplicating it.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/pathlore/pathlore/services/achievements"
	"github.com/pathlore/pathlore/services/analytics"
	"github.com/pathlore/pathlore/services/blobstore"
	"github.com/pathlore/pathlore/services/boundary"
	"github.com/pathlore/pathlore/services/completion"
	"github.com/pathlore/pathlore/services/concurrency"
	"github.com/pathlore/pathlore/services/config"
	"github.com/pathlore/pathlore/services/history"
	"github.com/pathlore/pathlore/services/llm"
	"github.com/pathlore/pathlore/services/observability"
	"github.com/pathlore/pathlore/services/prefs"
	"github.com/pathlore/pathlore/services/recommend"
	"github.com/pathlore/pathlore/services/secrets"
	"github.com/pathlore/pathlore/services/story"
	badgerstore "github.com/pathlore/pathlore/services/storage/badger"
	storedachievements "github.com/pathlore/pathlore/services/storage/achievements"
	"github.com/pathlore/pathlore/services/storage/catalog"
	"github.com/pathlore/pathlore/services/storage/profile"
)

// App is the fully wired dependency graph for one process lifetime.
type App struct {
	Config       *config.Config
	DB           *badgerstore.DB
	Profiles     *profile.Store
	Catalog      *catalog.Store
	Rules        *storedachievements.RuleStore
	Achievements *achievements.Engine
	Recommend    *recommend.Engine
	History      *history.Provider
	LLM          *llm.Client
	Story        *story.Pipeline
	Completion   *completion.Pipeline
	Handlers     *boundary.Handlers
	Metrics      *observability.Metrics
	Blobs        blobstore.Store
	Analytics    analytics.Sink
}

// Build assembles an App from cfg. The caller owns its lifetime and
// must call Close when done.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	dbCfg := badgerstore.DefaultConfig(cfg.BadgerDir)
	db, err := badgerstore.OpenDB(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open badger: %w", err)
	}

	profiles := profile.New(db)
	cat := catalog.New(db)
	rules := storedachievements.New(db)
	achEngine := achievements.New(profiles, cat, rules)
	if err := achEngine.SeedRules(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: seed achievement rules: %w", err)
	}

	hist := history.New(cfg.HistoryArtifactDir)
	if err := hist.Load(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: load historical context artifacts: %w", err)
	}
	if err := hist.Watch(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: watch historical context artifacts: %w", err)
	}

	loader := secrets.New()
	apiKeyEnclave, err := loader.Load("LLM_API_KEY")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: load llm api key: %w", err)
	}
	apiKey, err := secrets.Open(apiKeyEnclave)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: open llm api key: %w", err)
	}
	client := llm.New(cfg, apiKey)

	sem := concurrency.NewLLMSemaphore(cfg.LLMMaxConcurrency)
	locks := concurrency.NewProfileLocks()
	group := concurrency.NewStoryGroup()

	metrics := observability.NewMetrics()
	client.SetMetrics(metrics)

	blobs, err := blobstore.New(ctx, cfg.GCSBucket)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: build blob store: %w", err)
	}

	influxToken := ""
	if enclave, err := loader.Load("INFLUX_TOKEN"); err == nil {
		influxToken, _ = secrets.Open(enclave)
	}
	analyticsSink := analytics.New(cfg.InfluxURL, influxToken, cfg.InfluxOrg, cfg.InfluxBucket)

	recEngine := recommend.New(cat, recommend.Weights{
		Difficulty: cfg.WeightDifficulty,
		Distance:   cfg.WeightDistance,
		Tags:       cfg.WeightTags,
	}, prefs.Params{
		HalfLifeDays:    cfg.FeedbackHalfLifeDays,
		FilterThreshold: cfg.FilterThreshold,
		PenaltyBase:     cfg.FeedbackPenaltyBase,
	})
	recEngine.SetMetrics(metrics)
	recEngine.SetAnalytics(analyticsSink)

	storyPipeline := story.New(db, cat, hist, client, sem, group)
	storyPipeline.SetMetrics(metrics)

	completionPipeline := completion.New(profiles, cat, achEngine, client, locks, sem, cfg.XPPerLevel)
	completionPipeline.SetMetrics(metrics)
	completionPipeline.SetBlobStore(blobs)
	completionPipeline.SetAnalytics(analyticsSink)

	achEngine.SetMetrics(metrics)
	achEngine.SetAnalytics(analyticsSink)

	handlers := boundary.New(profiles, cat, recEngine, storyPipeline, completionPipeline, achEngine, rules, client, sem)

	return &App{
		Config:       cfg,
		DB:           db,
		Profiles:     profiles,
		Catalog:      cat,
		Rules:        rules,
		Achievements: achEngine,
		Recommend:    recEngine,
		History:      hist,
		LLM:          client,
		Story:        storyPipeline,
		Completion:   completionPipeline,
		Handlers:     handlers,
		Metrics:      metrics,
		Blobs:        blobs,
		Analytics:    analyticsSink,
	}, nil
}

// Close releases every resource Build opened.
func (a *App) Close() error {
	a.Analytics.Close()
	if err := a.Blobs.Close(); err != nil {
		return fmt.Errorf("bootstrap: close blob store: %w", err)
	}
	if err := a.History.Close(); err != nil {
		return fmt.Errorf("bootstrap: close history provider: %w", err)
	}
	return a.DB.Close()
}
