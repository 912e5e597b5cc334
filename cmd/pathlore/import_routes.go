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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pathlore/pathlore/services/bootstrap"
	"github.com/pathlore/pathlore/services/config"
	"github.com/pathlore/pathlore/services/domain"
)

// newImportRoutesCmd bulk-loads a JSON array of domain.Route into the
// catalog. Import assigns fresh IDs and per-route breakpoint ordering,
// so the file need only supply the route content.
func newImportRoutesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-routes <file.json>",
		Short: "Bulk-load routes into the catalog from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read routes file: %w", err)
			}

			var routes []domain.Route
			if err := json.Unmarshal(raw, &routes); err != nil {
				return fmt.Errorf("parse routes file: %w", err)
			}
			if len(routes) == 0 {
				return fmt.Errorf("routes file %q contains no routes", args[0])
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

			imported, err := app.Catalog.Import(routes)
			if err != nil {
				return fmt.Errorf("import routes: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d routes\n", len(imported))
			return nil
		},
	}
	return cmd
}
