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

	"github.com/spf13/cobra"

	"github.com/pathlore/pathlore/services/bootstrap"
	"github.com/pathlore/pathlore/services/config"
)

// newSeedAchievementsCmd re-runs the idempotent achievement rule seed
// against the configured store without starting the HTTP server. Useful
// after editing the built-in rule set or standing up a fresh environment.
func newSeedAchievementsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-achievements",
		Short: "Seed or refresh the built-in achievement rule set",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			if err := app.Achievements.SeedRules(); err != nil {
				return fmt.Errorf("seed achievement rules: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "achievement rules seeded")
			return nil
		},
	}
}
