// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history implements the C5 Historical Context Provider: a
// per-route lookup of { order_index -> historical_context } loaded from
// on-disk JSON artifacts keyed by route id. Lookup itself is pure and
// does no I/O; artifact loading happens separately, at startup and on
// filesystem change notifications.
package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/pathlore/pathlore/services/domain"
)

// Provider answers per-breakpoint historical context lookups from a
// cache of loaded artifacts, watching artifactDir for changes.
type Provider struct {
	artifactDir string
	logger      *slog.Logger

	mu    sync.RWMutex
	cache map[int64]map[int]string // route id -> order_index -> context

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// New builds a Provider rooted at artifactDir. Call Load to populate the
// cache and Watch to keep it fresh; neither is required for Get to
// work — a cache miss simply always falls through to synthesis until
// artifacts are loaded.
func New(artifactDir string) *Provider {
	return &Provider{
		artifactDir: artifactDir,
		logger:      slog.Default().With("component", "history.Provider"),
		cache:       make(map[int64]map[int]string),
	}
}

// Load reads every artifact file in the artifact directory into the
// in-memory cache. A missing directory is not an error — it simply
// leaves the cache empty, so every lookup synthesizes a fallback.
func (p *Provider) Load() error {
	entries, err := os.ReadDir(p.artifactDir)
	if os.IsNotExist(err) {
		p.logger.Info("history artifact directory absent, using synthesized fallback only", "dir", p.artifactDir)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read history artifact dir %s: %w", p.artifactDir, err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		routeID, err := parseRouteIDFromFilename(e.Name())
		if err != nil {
			p.logger.Warn("skipping unrecognized history artifact filename", "name", e.Name())
			continue
		}
		if err := p.loadOne(routeID); err != nil {
			p.logger.Warn("failed to load history artifact", "route_id", routeID, "error", err)
		}
	}
	return nil
}

func (p *Provider) loadOne(routeID int64) error {
	path := filepath.Join(p.artifactDir, fmt.Sprintf("%d.json", routeID))
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		p.mu.Lock()
		delete(p.cache, routeID)
		p.mu.Unlock()
		return nil
	}
	if err != nil {
		return err
	}

	var byIndexStr map[string]string
	if err := json.Unmarshal(raw, &byIndexStr); err != nil {
		return fmt.Errorf("unmarshal %s: %w", path, err)
	}
	byIndex := make(map[int]string, len(byIndexStr))
	for k, v := range byIndexStr {
		idx, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		byIndex[idx] = v
	}

	p.mu.Lock()
	p.cache[routeID] = byIndex
	p.mu.Unlock()
	return nil
}

func parseRouteIDFromFilename(name string) (int64, error) {
	base := strings.TrimSuffix(name, ".json")
	return strconv.ParseInt(base, 10, 64)
}

// Watch starts an fsnotify watch on the artifact directory, reloading
// the affected route's entry whenever a file is written, created, or
// removed. Call Close to stop watching. A missing directory disables
// watching silently, matching Load's tolerance for absence.
func (p *Provider) Watch() error {
	if _, err := os.Stat(p.artifactDir); os.IsNotExist(err) {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create history artifact watcher: %w", err)
	}
	if err := w.Add(p.artifactDir); err != nil {
		w.Close()
		return fmt.Errorf("watch history artifact dir: %w", err)
	}

	p.watcher = w
	p.done = make(chan struct{})
	go p.watchLoop()
	return nil
}

func (p *Provider) watchLoop() {
	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if routeID, err := parseRouteIDFromFilename(filepath.Base(event.Name)); err == nil {
				if err := p.loadOne(routeID); err != nil {
					p.logger.Warn("failed to reload history artifact after change", "route_id", routeID, "error", err)
				} else {
					p.logger.Debug("reloaded history artifact", "route_id", routeID, "op", event.Op.String())
				}
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("history artifact watcher error", "error", err)
		case <-p.done:
			return
		}
	}
}

// Close stops the filesystem watcher, if one was started.
func (p *Provider) Close() error {
	if p.watcher == nil {
		return nil
	}
	close(p.done)
	return p.watcher.Close()
}

// ContextFor returns the historical context string for breakpoint within
// route, either from a loaded artifact or, on miss, a synthesized stub
// derived from the breakpoint's POI name and type. The bool result
// reports whether the context came from an artifact.
func (p *Provider) ContextFor(routeID int64, bp domain.Breakpoint) (string, bool) {
	p.mu.RLock()
	byIndex := p.cache[routeID]
	p.mu.RUnlock()

	if byIndex != nil {
		if ctx, ok := byIndex[bp.OrderIndex]; ok && ctx != "" {
			return ctx, true
		}
	}
	return synthesize(bp), false
}

// synthesize derives a fallback historical-context stub from a
// breakpoint's POI name and type when no artifact entry exists.
func synthesize(bp domain.Breakpoint) string {
	name := bp.POIName
	if name == "" {
		name = "this point"
	}
	article := "a"
	if startsWithVowelSound(bp.POIType) {
		article = "an"
	}
	poiType := bp.POIType
	if poiType == "" {
		return fmt.Sprintf("%s has stood here for longer than anyone can recall.", name)
	}
	return fmt.Sprintf("%s is %s %s, its history unrecorded but its presence undeniable.", name, article, poiType)
}

func startsWithVowelSound(s string) bool {
	if s == "" {
		return false
	}
	switch strings.ToLower(s)[0] {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}
