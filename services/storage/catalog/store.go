// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog implements the C2 Route Catalog: bulk-imported routes
// with their ordered breakpoints and mini-quests, plus lazy, idempotent
// persistence of story fields written by the Story Pipeline.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/pathlore/pathlore/services/domain"
	"github.com/pathlore/pathlore/services/perr"
	badgerstore "github.com/pathlore/pathlore/services/storage/badger"
)

const (
	routeKeyPrefix   = "route/v1/"
	counterKeyPrefix = "counter/v1/"
)

// Store is the Badger-backed C2 Route Catalog.
type Store struct {
	db *badgerstore.DB
}

// New wraps db as a Route Catalog.
func New(db *badgerstore.DB) *Store {
	return &Store{db: db}
}

func routeKey(id int64) string { return fmt.Sprintf("%s%020d", routeKeyPrefix, id) }

func nextID(txn *dgbadger.Txn, name string) (int64, error) {
	key := counterKeyPrefix + name
	var n int64
	err := badgerstore.Get(txn, key, &n)
	if err != nil && err != badgerstore.ErrKeyNotFound {
		return 0, err
	}
	n++
	if err := badgerstore.Put(txn, key, n, 0); err != nil {
		return 0, err
	}
	return n, nil
}

// Import bulk-inserts routes, assigning each a fresh id and normalizing
// breakpoint order_index to be contiguous from 0. Returns the routes
// with their assigned ids.
func (s *Store) Import(routes []domain.Route) ([]domain.Route, error) {
	out := make([]domain.Route, len(routes))
	err := s.db.WithTxn(func(txn *dgbadger.Txn) error {
		for i, r := range routes {
			id, err := nextID(txn, "route")
			if err != nil {
				return err
			}
			r.ID = id
			for bi := range r.Breakpoints {
				r.Breakpoints[bi].RouteID = id
				r.Breakpoints[bi].OrderIndex = bi
			}
			if err := badgerstore.Put(txn, routeKey(id), r, 0); err != nil {
				return err
			}
			out[i] = r
		}
		return nil
	})
	return out, err
}

// CandidateFilter narrows list_candidates by route attributes.
type CandidateFilter struct {
	Category string // empty means no filter
}

// ListCandidates returns routes matching filters, breakpoints eagerly
// loaded and ordered by order_index, up to limit (0 means unbounded).
func (s *Store) ListCandidates(filter CandidateFilter, limit int) ([]domain.Route, error) {
	var out []domain.Route
	err := s.db.WithReadTxn(func(txn *dgbadger.Txn) error {
		return badgerstore.IterateByPrefix(txn, routeKeyPrefix, func(key string, decode func(dest any) error) error {
			var r domain.Route
			if err := decode(&r); err != nil {
				return err
			}
			if filter.Category != "" && !strings.EqualFold(r.Category, filter.Category) {
				return nil
			}
			sortBreakpoints(&r)
			out = append(out, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortBreakpoints(r *domain.Route) {
	sort.Slice(r.Breakpoints, func(i, j int) bool {
		return r.Breakpoints[i].OrderIndex < r.Breakpoints[j].OrderIndex
	})
}

// GetWithBreakpoints returns the route with id, breakpoints ordered by
// order_index, or a NotFound error.
func (s *Store) GetWithBreakpoints(id int64) (domain.Route, error) {
	var r domain.Route
	err := s.db.WithReadTxn(func(txn *dgbadger.Txn) error {
		return badgerstore.Get(txn, routeKey(id), &r)
	})
	if err == badgerstore.ErrKeyNotFound {
		return domain.Route{}, perr.NewNotFound("route", id)
	}
	if err != nil {
		return domain.Route{}, perr.NewInternal("load route", err)
	}
	sortBreakpoints(&r)
	return r, nil
}

// StorySkeleton is what Stage A of the Story Pipeline produces.
type StorySkeleton struct {
	PrologueTitle string
	PrologueBody  string
	EpilogueBody  string
}

// ChapterUpdate is what Stage B produces for one breakpoint.
type ChapterUpdate struct {
	BreakpointID     int64
	MainQuestSnippet string
	MiniQuests       []domain.MiniQuest
}

// PersistStory writes skeleton fields (if non-nil) and any chapter
// updates to routeID's stored record. Both are optional so Stage A and
// Stage B can each call this independently as they complete.
func (s *Store) PersistStory(routeID int64, skeleton *StorySkeleton, chapters []ChapterUpdate) error {
	return s.db.WithTxn(func(txn *dgbadger.Txn) error {
		var r domain.Route
		if err := badgerstore.Get(txn, routeKey(routeID), &r); err == badgerstore.ErrKeyNotFound {
			return perr.NewNotFound("route", routeID)
		} else if err != nil {
			return err
		}

		if skeleton != nil {
			r.PrologueTitle = skeleton.PrologueTitle
			r.PrologueBody = skeleton.PrologueBody
			r.EpilogueBody = skeleton.EpilogueBody
		}

		byID := make(map[int64]int, len(r.Breakpoints))
		for i, bp := range r.Breakpoints {
			byID[bp.ID] = i
		}
		for _, c := range chapters {
			idx, ok := byID[c.BreakpointID]
			if !ok {
				continue
			}
			r.Breakpoints[idx].MainQuestSnippet = c.MainQuestSnippet
			r.Breakpoints[idx].MiniQuests = c.MiniQuests
		}

		return badgerstore.Put(txn, routeKey(routeID), r, 0)
	})
}

// IncrementCompletionCount bumps routeID's completion count by one,
// used by the Completion Pipeline's popularity-proxy fallback.
func (s *Store) IncrementCompletionCount(routeID int64) error {
	return s.db.WithTxn(func(txn *dgbadger.Txn) error {
		var r domain.Route
		if err := badgerstore.Get(txn, routeKey(routeID), &r); err == badgerstore.ErrKeyNotFound {
			return perr.NewNotFound("route", routeID)
		} else if err != nil {
			return err
		}
		r.CompletionCount++
		return badgerstore.Put(txn, routeKey(routeID), r, 0)
	})
}
