// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command pathlore-server runs the HTTP API: gin routes bound to the
// wired pipeline graph, with graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/pathlore/pathlore/services/bootstrap"
	"github.com/pathlore/pathlore/services/config"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	prettyTracing := flag.Bool("pretty-tracing", false, "pretty-print spans to stdout instead of a single-line encoding")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(*configPath, *prettyTracing); err != nil {
		logger.Error("pathlore-server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, prettyTracing bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return bootstrap.Serve(context.Background(), cfg, "pathlore-server", prettyTracing)
}
