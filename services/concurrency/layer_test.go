// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package concurrency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pathlore/pathlore/services/domain"
)

func TestProfileLocks_SerializesSameProfile(t *testing.T) {
	locks := NewProfileLocks()
	var counter int32
	var maxObserved int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(1)
			defer unlock()
			n := atomic.AddInt32(&counter, 1)
			if n > atomic.LoadInt32(&maxObserved) {
				atomic.StoreInt32(&maxObserved, n)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&counter, -1)
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), maxObserved)
}

func TestProfileLocks_DifferentProfilesDoNotBlock(t *testing.T) {
	locks := NewProfileLocks()
	unlock1 := locks.Lock(1)
	done := make(chan struct{})
	go func() {
		unlock2 := locks.Lock(2)
		defer unlock2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on profile 2 should not wait for profile 1")
	}
	unlock1()
}

func TestStoryGroup_SharesInFlightCall(t *testing.T) {
	g := NewStoryGroup()
	var calls int32
	var wg sync.WaitGroup
	results := make([]any, 3)

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, _, _ := g.Do(42, func() (any, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(20 * time.Millisecond)
				return "result", nil
			})
			results[idx] = v
		}(i)
	}
	wg.Wait()
	require.Equal(t, int32(1), calls)
	for _, r := range results {
		require.Equal(t, "result", r)
	}
}

func TestLLMSemaphore_BoundsConcurrency(t *testing.T) {
	sem := NewLLMSemaphore(2)
	var inFlight int32
	var maxObserved int32
	var wg sync.WaitGroup

	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := sem.Acquire(context.Background())
			require.NoError(t, err)
			defer release()
			n := atomic.AddInt32(&inFlight, 1)
			if n > atomic.LoadInt32(&maxObserved) {
				atomic.StoreInt32(&maxObserved, n)
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		}()
	}
	wg.Wait()
	require.LessOrEqual(t, maxObserved, int32(2))
}

func TestLLMSemaphore_ReleasesOnCancellation(t *testing.T) {
	sem := NewLLMSemaphore(1)
	release, err := sem.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sem.Acquire(ctx)
	require.Error(t, err)

	release()
	release2, err := sem.Acquire(context.Background())
	require.NoError(t, err)
	release2()
}

func TestAdjustedVectorCache_KeyChangesWithFeedback(t *testing.T) {
	c := NewAdjustedVectorCache()
	base := domain.PreferenceVector{DifficultyRange: domain.DifficultyRange{Lo: 1, Hi: 2}}

	k1 := c.Key(base, nil)
	k2 := c.Key(base, []domain.FeedbackRecord{{ID: 1, Reason: domain.ReasonTooHard}})
	require.NotEqual(t, k1, k2)

	c.Put(k1, base)
	v, ok := c.Get(k1)
	require.True(t, ok)
	require.Equal(t, base, v)

	_, ok = c.Get(k2)
	require.False(t, ok)
}

func TestAdjustedVectorCache_KeyOrderIndependent(t *testing.T) {
	c := NewAdjustedVectorCache()
	base := domain.PreferenceVector{}
	fb1 := []domain.FeedbackRecord{{ID: 1, Reason: domain.ReasonTooHard}, {ID: 2, Reason: domain.ReasonTooFar}}
	fb2 := []domain.FeedbackRecord{{ID: 2, Reason: domain.ReasonTooFar}, {ID: 1, Reason: domain.ReasonTooHard}}
	require.Equal(t, c.Key(base, fb1), c.Key(base, fb2))
}
