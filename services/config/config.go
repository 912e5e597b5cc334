// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads Pathlore's process-wide configuration once at
// startup. Every knob in spec.md §6 is represented here, with a default,
// an optional YAML file layer, and a PATHLORE_* environment variable
// override — the same precedence the teacher uses for its egress
// configuration (env vars win over file, file wins over default).
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the fully resolved, immutable-after-load process
// configuration. A *Config is constructed once in main and passed by
// reference into every component's constructor so tests can substitute
// their own.
type Config struct {
	// LLM endpoint.
	LLMEndpointURL string        `yaml:"llm_endpoint_url"`
	LLMModelName   string        `yaml:"llm_model_name"`
	LLMMaxConcurrency int        `yaml:"llm_max_concurrency"`
	LLMTimeout     time.Duration `yaml:"llm_timeout"`
	LLMRetryAttempts int         `yaml:"llm_retry_attempts"`

	// Feedback-aware vector adjustment.
	FeedbackHalfLifeDays float64 `yaml:"feedback_half_life_days"`
	FilterThreshold      int     `yaml:"filter_threshold"`
	FeedbackPenaltyBase  float64 `yaml:"feedback_penalty_base"`

	// Leveling.
	XPPerLevel int `yaml:"xp_per_level"`

	// Recommendation scoring weights; must sum close to 1.0 but this is
	// not enforced — per §9 Open Questions, weights are configuration,
	// not invariants.
	WeightDifficulty float64 `yaml:"weight_difficulty"`
	WeightDistance   float64 `yaml:"weight_distance"`
	WeightTags       float64 `yaml:"weight_tags"`

	// Historical context artifacts.
	HistoryArtifactDir string `yaml:"history_artifact_dir"`

	// Persistence.
	BadgerDir string `yaml:"badger_dir"`

	// Optional blob store / analytics sinks.
	GCSBucket         string `yaml:"gcs_bucket"`
	InfluxURL         string `yaml:"influx_url"`
	InfluxOrg         string `yaml:"influx_org"`
	InfluxBucket      string `yaml:"influx_bucket"`

	// HTTP server.
	HTTPAddr string `yaml:"http_addr"`
}

// Default returns the configuration with every default value from
// spec.md §6 applied.
func Default() *Config {
	return &Config{
		LLMEndpointURL:       "http://localhost:11434",
		LLMModelName:         "llama3",
		LLMMaxConcurrency:    4,
		LLMTimeout:           60 * time.Second,
		LLMRetryAttempts:     2,
		FeedbackHalfLifeDays: 30,
		FilterThreshold:      3,
		FeedbackPenaltyBase:  0.05,
		XPPerLevel:           300,
		WeightDifficulty:     0.4,
		WeightDistance:       0.3,
		WeightTags:           0.3,
		HistoryArtifactDir:   "./data/history",
		BadgerDir:            "./data/badger",
		HTTPAddr:             ":8080",
	}
}

// Load builds the process configuration: defaults, then an optional
// YAML file at yamlPath (skipped silently if yamlPath is empty or the
// file does not exist), then PATHLORE_* environment variable overrides.
func Load(yamlPath string) (*Config, error) {
	cfg := Default()

	if yamlPath != "" {
		if raw, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides mutates cfg in place with any PATHLORE_* variables
// present in the environment, following the teacher's envBool/envInt/
// envFloat helper idiom from services/trace/agent/providers/egress.
func applyEnvOverrides(cfg *Config) {
	cfg.LLMEndpointURL = envString("PATHLORE_LLM_ENDPOINT_URL", cfg.LLMEndpointURL)
	cfg.LLMModelName = envString("PATHLORE_LLM_MODEL_NAME", cfg.LLMModelName)
	cfg.LLMMaxConcurrency = envInt("PATHLORE_LLM_MAX_CONCURRENCY", cfg.LLMMaxConcurrency)
	cfg.LLMTimeout = envDuration("PATHLORE_LLM_TIMEOUT_SECONDS", cfg.LLMTimeout)
	cfg.LLMRetryAttempts = envInt("PATHLORE_LLM_RETRY_ATTEMPTS", cfg.LLMRetryAttempts)
	cfg.FeedbackHalfLifeDays = envFloat("PATHLORE_FEEDBACK_HALF_LIFE_DAYS", cfg.FeedbackHalfLifeDays)
	cfg.FilterThreshold = envInt("PATHLORE_FILTER_THRESHOLD", cfg.FilterThreshold)
	cfg.FeedbackPenaltyBase = envFloat("PATHLORE_FEEDBACK_PENALTY_BASE", cfg.FeedbackPenaltyBase)
	cfg.XPPerLevel = envInt("PATHLORE_XP_PER_LEVEL", cfg.XPPerLevel)
	cfg.WeightDifficulty = envFloat("PATHLORE_WEIGHT_DIFFICULTY", cfg.WeightDifficulty)
	cfg.WeightDistance = envFloat("PATHLORE_WEIGHT_DISTANCE", cfg.WeightDistance)
	cfg.WeightTags = envFloat("PATHLORE_WEIGHT_TAGS", cfg.WeightTags)
	cfg.HistoryArtifactDir = envString("PATHLORE_HISTORY_ARTIFACT_DIR", cfg.HistoryArtifactDir)
	cfg.BadgerDir = envString("PATHLORE_BADGER_DIR", cfg.BadgerDir)
	cfg.GCSBucket = envString("PATHLORE_GCS_BUCKET", cfg.GCSBucket)
	cfg.InfluxURL = envString("PATHLORE_INFLUX_URL", cfg.InfluxURL)
	cfg.InfluxOrg = envString("PATHLORE_INFLUX_ORG", cfg.InfluxOrg)
	cfg.InfluxBucket = envString("PATHLORE_INFLUX_BUCKET", cfg.InfluxBucket)
	cfg.HTTPAddr = envString("PATHLORE_HTTP_ADDR", cfg.HTTPAddr)
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
