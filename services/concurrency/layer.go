// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package concurrency implements C10: the per-profile mutex table
// serializing the Completion Pipeline, the per-route single-flight group
// for story generation, the LLM concurrency semaphore, and the
// adjusted-vector cache. These are process-wide collaborators,
// initialized once at startup and passed explicitly into the components
// that need them so tests can substitute their own.
package concurrency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/pathlore/pathlore/services/domain"
)

// ProfileLocks hands out a mutex per profile id, serializing completions
// for that profile while leaving other profiles unaffected.
type ProfileLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewProfileLocks builds an empty lock table.
func NewProfileLocks() *ProfileLocks {
	return &ProfileLocks{locks: make(map[int64]*sync.Mutex)}
}

// Lock blocks until the caller holds profileID's mutex, returning an
// unlock function. Safe for concurrent use across profile ids.
func (p *ProfileLocks) Lock(profileID int64) func() {
	p.mu.Lock()
	l, ok := p.locks[profileID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[profileID] = l
	}
	p.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// StoryGroup is the per-route single-flight group for C7 generation
// calls: concurrent callers for the same route id share one in-flight
// result, success or failure.
type StoryGroup struct {
	group singleflight.Group
}

// NewStoryGroup builds an empty single-flight group.
func NewStoryGroup() *StoryGroup {
	return &StoryGroup{}
}

// Do runs fn for routeID, sharing the in-flight call across concurrent
// callers keyed on the same route id.
func (s *StoryGroup) Do(routeID int64, fn func() (any, error)) (any, error, bool) {
	return s.group.Do(fmt.Sprintf("%d", routeID), fn)
}

// LLMSemaphore bounds in-flight LLM calls across the process.
type LLMSemaphore struct {
	sem *semaphore.Weighted
}

// NewLLMSemaphore builds a semaphore admitting at most maxConcurrency
// simultaneous LLM calls.
func NewLLMSemaphore(maxConcurrency int) *LLMSemaphore {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &LLMSemaphore{sem: semaphore.NewWeighted(int64(maxConcurrency))}
}

// Acquire blocks until a permit is available or ctx is cancelled. The
// returned release function must always be called exactly once on
// success; it is never leaked even if the caller's work is cancelled
// mid-flight.
func (l *LLMSemaphore) Acquire(ctx context.Context) (func(), error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { l.sem.Release(1) }, nil
}

// AdjustedVectorCache caches C3's adjusted vector keyed on a hash of the
// base vector plus the sorted feedback ids and reasons, so a feedback
// change implicitly invalidates the entry by changing the key.
type AdjustedVectorCache struct {
	mu    sync.RWMutex
	cache map[string]domain.PreferenceVector
}

// NewAdjustedVectorCache builds an empty cache.
func NewAdjustedVectorCache() *AdjustedVectorCache {
	return &AdjustedVectorCache{cache: make(map[string]domain.PreferenceVector)}
}

// Key computes the cache key for base combined with feedback.
func (c *AdjustedVectorCache) Key(base domain.PreferenceVector, feedback []domain.FeedbackRecord) string {
	type entry struct {
		id     int64
		reason domain.FeedbackReason
	}
	entries := make([]entry, len(feedback))
	for i, fb := range feedback {
		entries[i] = entry{id: fb.ID, reason: fb.Reason}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	h := sha256.New()
	fmt.Fprintf(h, "%+v", base)
	for _, e := range entries {
		fmt.Fprintf(h, "|%d:%s", e.id, e.reason)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached vector for key, if present.
func (c *AdjustedVectorCache) Get(key string) (domain.PreferenceVector, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.cache[key]
	return v, ok
}

// Put stores v under key.
func (c *AdjustedVectorCache) Put(key string, v domain.PreferenceVector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = v
}
