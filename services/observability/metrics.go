// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter and histogram the server exposes on
// /metrics. Fields are grouped by the pipeline stage they instrument.
type Metrics struct {
	Registry *prometheus.Registry

	RecommendationsServed   *prometheus.CounterVec
	StoryGenerationDuration *prometheus.HistogramVec
	StoryGenerationFailures *prometheus.CounterVec
	CompletionsProcessed    prometheus.Counter
	AchievementsUnlocked    *prometheus.CounterVec
	LLMRequestDuration      *prometheus.HistogramVec
	LLMRequestFailures      prometheus.Counter
}

// NewMetrics registers every Pathlore collector against a fresh
// registry (never the global default, so tests can build one per case
// without collisions).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RecommendationsServed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pathlore_recommendations_served_total",
			Help: "Recommendation list requests served, by whether a profile was attached.",
		}, []string{"personalized"}),
		StoryGenerationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pathlore_story_generation_seconds",
			Help:    "Wall-clock time to run one story generation stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		StoryGenerationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pathlore_story_generation_failures_total",
			Help: "Story generation stage failures that fell back to template content.",
		}, []string{"stage"}),
		CompletionsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "pathlore_completions_processed_total",
			Help: "Route completions accepted by the completion pipeline.",
		}),
		AchievementsUnlocked: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pathlore_achievements_unlocked_total",
			Help: "Achievement unlocks, by rule key.",
		}, []string{"rule_key"}),
		LLMRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pathlore_llm_request_seconds",
			Help:    "LLM client request latency, including retries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),
		LLMRequestFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "pathlore_llm_request_failures_total",
			Help: "LLM requests that exhausted their retry budget.",
		}),
	}
}

// Handler returns the HTTP handler to mount at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveLLMRequest implements llm.MetricsRecorder.
func (m *Metrics) ObserveLLMRequest(mode string, seconds float64) {
	m.LLMRequestDuration.WithLabelValues(mode).Observe(seconds)
}

// IncLLMRequestFailure implements llm.MetricsRecorder.
func (m *Metrics) IncLLMRequestFailure() {
	m.LLMRequestFailures.Inc()
}

// ObserveStoryStage implements story.MetricsRecorder.
func (m *Metrics) ObserveStoryStage(stage string, seconds float64) {
	m.StoryGenerationDuration.WithLabelValues(stage).Observe(seconds)
}

// IncStoryStageFailure implements story.MetricsRecorder.
func (m *Metrics) IncStoryStageFailure(stage string) {
	m.StoryGenerationFailures.WithLabelValues(stage).Inc()
}

// IncCompletionProcessed implements completion.MetricsRecorder.
func (m *Metrics) IncCompletionProcessed() {
	m.CompletionsProcessed.Inc()
}

// IncAchievementUnlocked implements achievements.MetricsRecorder.
func (m *Metrics) IncAchievementUnlocked(ruleKey string) {
	m.AchievementsUnlocked.WithLabelValues(ruleKey).Inc()
}

// IncRecommendationsServed implements recommend.MetricsRecorder.
func (m *Metrics) IncRecommendationsServed(personalized bool) {
	m.RecommendationsServed.WithLabelValues(boolLabel(personalized)).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
