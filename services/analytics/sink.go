// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analytics writes point-in-time product events (completions,
// recommendations served, achievement unlocks) to InfluxDB for downstream
// dashboards, when one is configured. Deployments without an InfluxDB
// instance get a no-op sink; nothing in the core pipelines depends on
// analytics succeeding.
package analytics

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Sink records product events. Every method is fire-and-forget from the
// caller's perspective: a write failure never propagates back into the
// pipeline that produced the event.
type Sink interface {
	RecordRouteCompletion(profileID, routeID int64, xpGained int)
	RecordRecommendationServed(category string, personalized bool, resultCount int)
	RecordAchievementUnlocked(profileID int64, ruleKey string)
	Close()
}

// NoopSink discards every event; used when no InfluxDB URL is configured.
type NoopSink struct{}

func (NoopSink) RecordRouteCompletion(int64, int64, int)         {}
func (NoopSink) RecordRecommendationServed(string, bool, int)    {}
func (NoopSink) RecordAchievementUnlocked(int64, string)         {}
func (NoopSink) Close()                                          {}

// InfluxSink writes events to a bucket via the non-blocking write API,
// which batches and retries internally and logs write errors through its
// own error channel rather than this package's logger.
type InfluxSink struct {
	client influxdb2.Client
	org    string
	bucket string
}

// NewInfluxSink builds a Sink against serverURL using token, writing
// into org/bucket.
func NewInfluxSink(serverURL, token, org, bucket string) *InfluxSink {
	return &InfluxSink{
		client: influxdb2.NewClient(serverURL, token),
		org:    org,
		bucket: bucket,
	}
}

func (s *InfluxSink) writeAPI() api.WriteAPI {
	return s.client.WriteAPI(s.org, s.bucket)
}

// RecordRouteCompletion emits a completion point with the XP awarded.
func (s *InfluxSink) RecordRouteCompletion(profileID, routeID int64, xpGained int) {
	p := write.NewPoint(
		"route_completion",
		map[string]string{},
		map[string]interface{}{
			"profile_id": profileID,
			"route_id":   routeID,
			"xp_gained":  xpGained,
		},
		time.Now(),
	)
	s.writeAPI().WritePoint(p)
}

// RecordRecommendationServed emits a point per recommendation request.
func (s *InfluxSink) RecordRecommendationServed(category string, personalized bool, resultCount int) {
	tags := map[string]string{"category": category}
	if personalized {
		tags["personalized"] = "true"
	} else {
		tags["personalized"] = "false"
	}
	p := write.NewPoint(
		"recommendations_served",
		tags,
		map[string]interface{}{"result_count": resultCount},
		time.Now(),
	)
	s.writeAPI().WritePoint(p)
}

// RecordAchievementUnlocked emits a point per newly unlocked achievement.
func (s *InfluxSink) RecordAchievementUnlocked(profileID int64, ruleKey string) {
	p := write.NewPoint(
		"achievement_unlocked",
		map[string]string{"rule_key": ruleKey},
		map[string]interface{}{"profile_id": profileID},
		time.Now(),
	)
	s.writeAPI().WritePoint(p)
}

// Close flushes pending writes and releases the client's connections.
func (s *InfluxSink) Close() {
	s.client.Close()
}

// New builds a Sink: an InfluxSink if serverURL is non-empty, otherwise
// NoopSink.
func New(serverURL, token, org, bucket string) Sink {
	if serverURL == "" {
		return NoopSink{}
	}
	return NewInfluxSink(serverURL, token, org, bucket)
}
