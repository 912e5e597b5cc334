// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analytics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoopSink_DoesNotPanic(t *testing.T) {
	var s Sink = NoopSink{}
	s.RecordRouteCompletion(1, 2, 100)
	s.RecordRecommendationServed("forest", true, 3)
	s.RecordAchievementUnlocked(1, "first-steps")
	s.Close()
}

func TestNew_EmptyURLReturnsNoopSink(t *testing.T) {
	s := New("", "", "", "")
	_, ok := s.(NoopSink)
	require.True(t, ok)
}

func TestNew_NonEmptyURLReturnsInfluxSink(t *testing.T) {
	s := New("http://localhost:8086", "token", "org", "bucket")
	_, ok := s.(*InfluxSink)
	require.True(t, ok)
	s.Close()
}
