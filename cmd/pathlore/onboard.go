// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/pathlore/pathlore/services/bootstrap"
	"github.com/pathlore/pathlore/services/config"
	"github.com/pathlore/pathlore/services/domain"
	"github.com/pathlore/pathlore/services/llm"
)

var onboardBanner = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))

// newOnboardCmd runs the onboarding questionnaire as a terminal form,
// for operators seeding test profiles without going through the HTTP
// boundary. It builds the same PreferenceVector the API's CreateProfile
// handler does, then writes it through the same profile store.
func newOnboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Create a profile through an interactive terminal questionnaire",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), onboardBanner.Render("Pathlore onboarding"))

			var (
				fitness       string
				narrative     string
				difficultyLo  float64 = 0
				difficultyHi  float64 = 2
				minDistanceKm float64 = 1
				maxDistanceKm float64 = 10
				tagsInput     string
			)

			form := huh.NewForm(
				huh.NewGroup(
					huh.NewSelect[string]().
						Title("What's your fitness level?").
						Options(
							huh.NewOption("Beginner", string(domain.FitnessBeginner)),
							huh.NewOption("Intermediate", string(domain.FitnessIntermediate)),
							huh.NewOption("Advanced", string(domain.FitnessAdvanced)),
						).
						Value(&fitness),
					huh.NewSelect[string]().
						Title("What kind of story do you want with your routes?").
						Options(
							huh.NewOption("Adventure", string(domain.NarrativeAdventure)),
							huh.NewOption("Mystery", string(domain.NarrativeMystery)),
							huh.NewOption("Playful", string(domain.NarrativePlayful)),
						).
						Value(&narrative),
					huh.NewInput().
						Title("Preferred tags (comma separated, e.g. forest, lake, summit)").
						Value(&tagsInput),
				),
			)
			if err := form.Run(); err != nil {
				return fmt.Errorf("onboarding form: %w", err)
			}

			var tags []string
			for _, t := range strings.Split(tagsInput, ",") {
				if t = strings.TrimSpace(t); t != "" {
					tags = append(tags, t)
				}
			}

			vector := domain.PreferenceVector{
				DifficultyRange: domain.DifficultyRange{Lo: difficultyLo, Hi: difficultyHi},
				MinDistanceKm:   minDistanceKm,
				MaxDistanceKm:   maxDistanceKm,
				PreferredTags:   tags,
				FitnessLevel:    domain.FitnessLevel(fitness),
				NarrativeStyle:  domain.NarrativeStyle(narrative),
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			ctx := context.Background()
			app, err := bootstrap.Build(ctx, cfg)
			if err != nil {
				return fmt.Errorf("build app: %w", err)
			}
			defer app.Close()

			summary := onboardWelcomeSummary(ctx, app, vector)
			profile, err := app.Profiles.Create(vector, summary)
			if err != nil {
				return fmt.Errorf("create profile: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created profile #%d\n%s\n", profile.ID, summary)
			return nil
		},
	}
}

func onboardWelcomeSummary(ctx context.Context, app *bootstrap.App, vector domain.PreferenceVector) string {
	prompt := fmt.Sprintf(
		"fitness_level=%s narrative_style=%s preferred_tags=%v difficulty_range=[%.1f,%.1f]\n"+
			"Write a short (2-3 sentence) welcome message for a new outdoor-adventure user.",
		vector.FitnessLevel, vector.NarrativeStyle, vector.PreferredTags, vector.DifficultyRange.Lo, vector.DifficultyRange.Hi)
	summary, err := app.LLM.Complete(ctx, prompt, llm.GenerationParams{MaxTokens: 200, Temperature: 0.7, Mode: llm.ModeText})
	if err != nil {
		return fmt.Sprintf("Welcome! Based on your %s fitness level, we'll start you off with routes suited to your pace.", vector.FitnessLevel)
	}
	return summary
}
