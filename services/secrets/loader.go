// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package secrets loads process credentials (the LLM bearer token, the
// InfluxDB write token) from the environment or a file, and mlocks them
// in memguard enclaves the instant they're read so they never sit in
// plain Go memory or get captured by a stray log statement.
package secrets

import (
	"fmt"
	"os"
	"strings"

	"github.com/awnumar/memguard"
)

// Loader resolves named credentials from PATHLORE_<NAME> environment
// variables or, when PATHLORE_<NAME>_FILE is set, from the file it
// names (the Docker/Kubernetes secrets-mount convention).
type Loader struct {
	envPrefix string
}

// New builds a Loader using PATHLORE_ as the environment prefix.
func New() *Loader {
	return &Loader{envPrefix: "PATHLORE_"}
}

// Load resolves name (e.g. "LLM_API_KEY") to its value and locks it in
// an enclave. It returns a nil enclave (not an error) when neither the
// direct env var nor the _FILE variant is set, since most credentials
// here are optional.
func (l *Loader) Load(name string) (*memguard.Enclave, error) {
	if filePath := os.Getenv(l.envPrefix + name + "_FILE"); filePath != "" {
		raw, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("secrets: read %s: %w", filePath, err)
		}
		return memguard.NewEnclave([]byte(strings.TrimSpace(string(raw)))), nil
	}
	if value := os.Getenv(l.envPrefix + name); value != "" {
		return memguard.NewEnclave([]byte(value)), nil
	}
	return nil, nil
}

// Open decrypts enclave into a plain string for the duration of use.
// Callers should hold the result only as long as necessary; it is not
// itself memory-locked.
func Open(enclave *memguard.Enclave) (string, error) {
	if enclave == nil {
		return "", nil
	}
	buf, err := enclave.Open()
	if err != nil {
		return "", fmt.Errorf("secrets: open enclave: %w", err)
	}
	defer buf.Destroy()
	return string(buf.Bytes()), nil
}
