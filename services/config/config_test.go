// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 4, cfg.LLMMaxConcurrency)
	require.Equal(t, 3, cfg.FilterThreshold)
	require.Equal(t, 300, cfg.XPPerLevel)
}

func TestLoad_YamlOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pathlore.yaml")
	require.NoError(t, writeFile(path, "xp_per_level: 500\nfilter_threshold: 5\n"))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 500, cfg.XPPerLevel)
	require.Equal(t, 5, cfg.FilterThreshold)
}

func TestLoad_EnvOverridesYaml(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pathlore.yaml")
	require.NoError(t, writeFile(path, "xp_per_level: 500\n"))

	t.Setenv("PATHLORE_XP_PER_LEVEL", "700")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 700, cfg.XPPerLevel)
}

func TestLoad_MissingYamlIsNotAnError(t *testing.T) {
	cfg, err := Load("/nonexistent/path/pathlore.yaml")
	require.NoError(t, err)
	require.NotNil(t, cfg)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
