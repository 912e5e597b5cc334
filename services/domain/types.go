// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package domain holds the entities shared by every Pathlore component:
// profiles, routes, breakpoints, mini-quests, feedback, souvenirs, and
// achievements. These types travel between the storage layer, the
// pipelines, and the external boundary; boundary DTOs convert to and
// from them but never replace them.
package domain

import "time"

// FitnessLevel is the closed set of self-reported fitness tiers collected
// at onboarding.
type FitnessLevel string

const (
	FitnessBeginner     FitnessLevel = "beginner"
	FitnessIntermediate FitnessLevel = "intermediate"
	FitnessAdvanced     FitnessLevel = "advanced"
)

// NarrativeStyle is the closed set of prompt styles the Story Pipeline
// uses to color generated text.
type NarrativeStyle string

const (
	NarrativeAdventure NarrativeStyle = "adventure"
	NarrativeMystery   NarrativeStyle = "mystery"
	NarrativePlayful   NarrativeStyle = "playful"
)

// FeedbackReason is the closed set of negative-feedback reasons a profile
// may record against a route. Any other value must be rejected at the
// boundary before it reaches the core.
type FeedbackReason string

const (
	ReasonTooHard        FeedbackReason = "too-hard"
	ReasonTooEasy        FeedbackReason = "too-easy"
	ReasonTooFar         FeedbackReason = "too-far"
	ReasonNotInterested  FeedbackReason = "not-interested"
	ReasonWrongType      FeedbackReason = "wrong-type"
)

// ValidFeedbackReasons lists every reason the boundary accepts.
var ValidFeedbackReasons = []FeedbackReason{
	ReasonTooHard, ReasonTooEasy, ReasonTooFar, ReasonNotInterested, ReasonWrongType,
}

// DifficultyRange is the inclusive [lo, hi] band of route difficulty
// (0..3) a profile is comfortable with. Invariant: 0 <= lo <= hi <= 3.
type DifficultyRange struct {
	Lo float64 `json:"lo" yaml:"lo"`
	Hi float64 `json:"hi" yaml:"hi"`
}

// PreferenceVector is the profile's onboarding-derived taste model. The
// stored copy is write-once-at-onboarding; §4.3 adjustment always
// produces a transient copy, never mutates the stored base vector.
type PreferenceVector struct {
	DifficultyRange  DifficultyRange `json:"difficulty_range"`
	MinDistanceKm    float64         `json:"min_distance_km"`
	MaxDistanceKm    float64         `json:"max_distance_km"`
	PreferredTags    []string        `json:"preferred_tags"`
	FitnessLevel     FitnessLevel    `json:"fitness_level"`
	NarrativeStyle   NarrativeStyle  `json:"narrative_prompt_style"`
}

// Clone returns a deep copy so callers may adjust it without mutating the
// profile's stored base vector.
func (v PreferenceVector) Clone() PreferenceVector {
	tags := make([]string, len(v.PreferredTags))
	copy(tags, v.PreferredTags)
	v.PreferredTags = tags
	return v
}

// Profile is the user entity. TotalXP and Level are mutated only by the
// Completion Pipeline; the base vector is mutated only at onboarding.
type Profile struct {
	ID             int64            `json:"id"`
	TotalXP        int              `json:"total_xp"`
	Level          int              `json:"level"`
	Vector         PreferenceVector `json:"preference_vector"`
	WelcomeSummary string           `json:"welcome_summary"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// FeedbackRecord is an append-only negative-signal event tied to a
// profile and a route.
type FeedbackRecord struct {
	ID        int64          `json:"id"`
	ProfileID int64          `json:"profile_id"`
	RouteID   int64          `json:"route_id"`
	Reason    FeedbackReason `json:"reason"`
	CreatedAt time.Time      `json:"created_at"`
}

// MiniQuest is a small per-breakpoint task generated alongside its
// chapter. Description is either a plain string or a JSON-encoded
// QuizChoice payload for puzzle quests.
type MiniQuest struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"` // photo | observation | collection | puzzle
	Description string `json:"description"`
	Choices     []string `json:"choices,omitempty"`
	CorrectIdx  *int     `json:"correct_index,omitempty"`
	XPReward    int      `json:"xp_reward"`
}

// Breakpoint is an ordered point of interest along a route.
type Breakpoint struct {
	ID                 int64       `json:"id"`
	RouteID            int64       `json:"route_id"`
	OrderIndex         int         `json:"order_index"`
	POIName            string      `json:"poi_name,omitempty"`
	POIType            string      `json:"poi_type,omitempty"`
	Lat                *float64    `json:"lat,omitempty"`
	Lon                *float64    `json:"lon,omitempty"`
	MainQuestSnippet   string      `json:"main_quest_snippet,omitempty"`
	MiniQuests         []MiniQuest `json:"mini_quests,omitempty"`
}

// HasCoordinates reports whether both lat and lon are present, enforcing
// the invariant that they are either both set or both absent.
func (b Breakpoint) HasCoordinates() bool {
	return b.Lat != nil && b.Lon != nil
}

// Route is the immutable (modulo story fields) catalog entry.
type Route struct {
	ID              int64        `json:"id"`
	Title           string       `json:"title"`
	Category        string       `json:"category"`
	LengthMeters    float64      `json:"length_meters"`
	DurationMinutes int          `json:"duration_minutes"`
	Difficulty      int          `json:"difficulty"` // 0..3
	Tags            []string     `json:"tags"`
	Location        string       `json:"location,omitempty"`
	ElevationMeters *float64     `json:"elevation_meters,omitempty"`
	GPX             string       `json:"gpx,omitempty"`
	BaseXPReward    int          `json:"base_xp_reward"`
	XPRequired      int          `json:"xp_required"`
	PrologueTitle   string       `json:"prologue_title,omitempty"`
	PrologueBody    string       `json:"prologue_body,omitempty"`
	EpilogueBody    string       `json:"epilogue_body,omitempty"`
	Breakpoints     []Breakpoint `json:"breakpoints"`
	CompletionCount int          `json:"completion_count"`
}

// LengthKm is LengthMeters expressed in kilometers for scoring.
func (r Route) LengthKm() float64 { return r.LengthMeters / 1000.0 }

// HasStory reports whether Stage A of the Story Pipeline has run.
func (r Route) HasStory() bool { return r.PrologueBody != "" }

// DifficultyMultiplier maps route difficulty 0..3 to the XP multiplier
// named in §4.8: easy:1.0, medium:1.2, hard:1.5, expert:2.0.
func (r Route) DifficultyMultiplier() float64 {
	switch r.Difficulty {
	case 0:
		return 1.0
	case 1:
		return 1.2
	case 2:
		return 1.5
	default:
		return 2.0
	}
}

// XPBreakdown is the structured accounting of a single completion's XP,
// persisted verbatim as xp_breakdown on the Souvenir.
type XPBreakdown struct {
	BaseXP         int     `json:"base_xp"`
	QuestXP        int     `json:"quest_xp"`
	Multiplier     float64 `json:"multiplier"`
	TotalXP        int     `json:"total_xp"`
	CompletedQuestIDs []int64 `json:"completed_quest_ids"`
	DroppedQuestIDs   []int64 `json:"dropped_quest_ids,omitempty"`
}

// Souvenir is the persistent record of one route completion.
type Souvenir struct {
	ID              int64       `json:"id"`
	ProfileID       int64       `json:"profile_id"`
	RouteID         int64       `json:"route_id"`
	CompletedAt     time.Time   `json:"completed_at"`
	TotalXPGained   int         `json:"total_xp_gained"`
	XPBreakdown     XPBreakdown `json:"xp_breakdown"`
	Summary         *string     `json:"summary,omitempty"`
	PixelArtSVG     *string     `json:"pixel_art_svg,omitempty"`
	// PixelArtURL is set when the SVG was large enough to be offloaded to
	// the blob store instead of kept inline; PixelArtSVG still carries
	// the content when no blob store is configured.
	PixelArtURL     *string     `json:"pixel_art_url,omitempty"`
}

// AchievementRule is a seeded, append-only declarative unlock condition.
type AchievementRule struct {
	Key           string  `json:"key"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Icon          string  `json:"icon"`
	ConditionType string  `json:"condition_type"`
	ConditionValue float64 `json:"condition_value"`
	// ConditionCategory is used only by routes_of_category_completed.
	ConditionCategory string `json:"condition_category,omitempty"`
}

// AchievementUnlock records that a rule fired for a profile. The
// (ProfileID, RuleKey) pair is unique.
type AchievementUnlock struct {
	ProfileID   int64     `json:"profile_id"`
	RuleKey     string    `json:"rule_key"`
	UnlockedAt  time.Time `json:"unlocked_at"`
}

// ProfileStatistics are the derived per-profile numbers the Achievement
// Engine evaluates rules against, and that the boundary exposes directly
// via GetProfileStatistics.
type ProfileStatistics struct {
	RoutesCompletedCount int            `json:"routes_completed_count"`
	CategoriesCompleted  map[string]int `json:"categories_completed"`
	TotalDistanceKm      float64        `json:"total_distance_km"`
	Level                int            `json:"level"`
	TotalXP              int            `json:"total_xp"`
}
