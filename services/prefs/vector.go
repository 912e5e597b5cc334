// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package prefs implements the C3 Feedback-Aware User Vector: given a
// base preference vector, a profile's feedback history, and a route tag
// lookup, it produces a transient adjusted vector and a per-route
// penalty function. The stored base vector is never mutated here.
package prefs

import (
	"math"
	"strings"
	"time"

	"github.com/pathlore/pathlore/services/domain"
)

// Adjusted is the result of applying a profile's feedback history to its
// base preference vector.
type Adjusted struct {
	Vector domain.PreferenceVector
	// Penalty returns the scoring multiplier for routeID, derived from
	// how many times this profile gave feedback on it.
	Penalty func(routeID int64) float64
	// Filtered reports whether routeID has accumulated enough feedback
	// entries to be excluded from recommendations entirely.
	Filtered func(routeID int64) bool
}

// Params bundles the tunables the spec calls configuration, not
// invariants — half-life, filter threshold, and penalty base.
type Params struct {
	HalfLifeDays    float64
	FilterThreshold int
	PenaltyBase     float64
}

// RouteTagLookup resolves a route id to its normalized tag set, as
// required by the not-interested adjustment rule. It may return nil if
// the route is unknown; Adjust treats that as "no tags to remove".
type RouteTagLookup func(routeID int64) []string

// Adjust is the full C3 contract: (base_vector, feedback_list,
// route_tag_lookup) -> adjusted vector + penalty function. Feedback is
// applied sequentially in the order given; lookup is consulted only for
// not-interested entries.
func Adjust(base domain.PreferenceVector, feedback []domain.FeedbackRecord, params Params, now time.Time, lookup RouteTagLookup) Adjusted {
	v := base.Clone()
	counts := make(map[int64]int, len(feedback))

	for _, fb := range feedback {
		w := decayWeight(fb.CreatedAt, now, params.HalfLifeDays)
		counts[fb.RouteID]++

		switch fb.Reason {
		case domain.ReasonTooHard:
			v.DifficultyRange.Hi = math.Max(0, v.DifficultyRange.Hi-0.5*w)
		case domain.ReasonTooEasy:
			v.DifficultyRange.Lo = math.Min(3, v.DifficultyRange.Lo+0.5*w)
		case domain.ReasonTooFar:
			v.MaxDistanceKm = v.MaxDistanceKm * (1 - 0.1*w)
		case domain.ReasonNotInterested:
			if lookup != nil {
				v.PreferredTags = subtractTags(v.PreferredTags, lookup(fb.RouteID))
			}
		case domain.ReasonWrongType:
			// Recorded but not applied to the adjusted vector; reserved
			// for a future category-aware penalty. See design notes.
		}
	}

	if v.DifficultyRange.Lo > v.DifficultyRange.Hi {
		v.DifficultyRange.Lo = v.DifficultyRange.Hi
	}

	penaltyBase := params.PenaltyBase
	if penaltyBase == 0 {
		penaltyBase = 0.05
	}
	threshold := params.FilterThreshold
	if threshold == 0 {
		threshold = 3
	}

	return Adjusted{
		Vector: v,
		Penalty: func(routeID int64) float64 {
			return math.Pow(penaltyBase, float64(counts[routeID]))
		},
		Filtered: func(routeID int64) bool {
			return counts[routeID] >= threshold
		},
	}
}

// decayWeight returns 2^(-Δdays/H). A zero CreatedAt (timestamp
// unavailable, per the open question on legacy feedback rows) yields
// weight 1 rather than decaying.
func decayWeight(createdAt, now time.Time, halfLifeDays float64) float64 {
	if createdAt.IsZero() {
		return 1
	}
	if halfLifeDays <= 0 {
		halfLifeDays = 30
	}
	deltaDays := now.Sub(createdAt).Hours() / 24
	return math.Pow(2, -deltaDays/halfLifeDays)
}

func subtractTags(from, remove []string) []string {
	if len(remove) == 0 {
		return from
	}
	drop := make(map[string]bool, len(remove))
	for _, t := range remove {
		drop[strings.ToLower(t)] = true
	}
	out := make([]string, 0, len(from))
	for _, t := range from {
		if !drop[strings.ToLower(t)] {
			out = append(out, t)
		}
	}
	return out
}
