// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command pathlore is the operator CLI: starting the server, seeding
// achievement rules, bulk-loading routes, and running the interactive
// onboarding questionnaire from a terminal instead of the HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "pathlore",
		Short: "Pathlore operator CLI",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (optional)")

	root.AddCommand(
		newServeCmd(),
		newSeedAchievementsCmd(),
		newImportRoutesCmd(),
		newOnboardCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
