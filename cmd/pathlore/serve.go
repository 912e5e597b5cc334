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

	"github.com/spf13/cobra"

	"github.com/pathlore/pathlore/services/bootstrap"
	"github.com/pathlore/pathlore/services/config"
)

func newServeCmd() *cobra.Command {
	var prettyTracing bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return bootstrap.Serve(context.Background(), cfg, "pathlore-server", prettyTracing)
		},
	}
	cmd.Flags().BoolVar(&prettyTracing, "pretty-tracing", false, "pretty-print spans to stdout instead of a single-line encoding")
	return cmd
}
