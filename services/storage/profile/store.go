// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package profile implements the C1 Profile Store: profiles, their
// append-only feedback, souvenirs, and achievement unlocks, all keyed
// under table-prefixed namespaces in a single Badger database.
package profile

import (
	"fmt"
	"sort"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/pathlore/pathlore/services/domain"
	"github.com/pathlore/pathlore/services/perr"
	badgerstore "github.com/pathlore/pathlore/services/storage/badger"
)

const (
	profileKeyPrefix  = "profile/v1/"
	feedbackKeyPrefix = "feedback/v1/"
	souvenirKeyPrefix = "souvenir/v1/"
	unlockKeyPrefix   = "unlock/v1/"
	counterKeyPrefix  = "counter/v1/"
)

// Store is the Badger-backed C1 Profile Store.
type Store struct {
	db *badgerstore.DB
}

// New wraps db as a Profile Store.
func New(db *badgerstore.DB) *Store {
	return &Store{db: db}
}

func profileKey(id int64) string  { return fmt.Sprintf("%s%d", profileKeyPrefix, id) }
func feedbackKey(profileID, feedbackID int64) string {
	return fmt.Sprintf("%s%d/%020d", feedbackKeyPrefix, profileID, feedbackID)
}
func feedbackPrefix(profileID int64) string { return fmt.Sprintf("%s%d/", feedbackKeyPrefix, profileID) }
func souvenirKey(profileID, souvenirID int64) string {
	return fmt.Sprintf("%s%d/%020d", souvenirKeyPrefix, profileID, souvenirID)
}
func souvenirPrefix(profileID int64) string { return fmt.Sprintf("%s%d/", souvenirKeyPrefix, profileID) }
func unlockKey(profileID int64, ruleKey string) string {
	return fmt.Sprintf("%s%d/%s", unlockKeyPrefix, profileID, ruleKey)
}
func unlockPrefix(profileID int64) string { return fmt.Sprintf("%s%d/", unlockKeyPrefix, profileID) }

// nextID atomically increments and returns the named counter.
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

// Create inserts a new profile with the given base vector and welcome
// summary. TotalXP starts at 0, Level at 1.
func (s *Store) Create(vector domain.PreferenceVector, welcomeSummary string) (domain.Profile, error) {
	var p domain.Profile
	err := s.db.WithTxn(func(txn *dgbadger.Txn) error {
		id, err := nextID(txn, "profile")
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		p = domain.Profile{
			ID:             id,
			TotalXP:        0,
			Level:          1,
			Vector:         vector,
			WelcomeSummary: welcomeSummary,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		return badgerstore.Put(txn, profileKey(id), p, 0)
	})
	return p, err
}

// GetByID returns the profile with id, or a NotFound error.
func (s *Store) GetByID(id int64) (domain.Profile, error) {
	var p domain.Profile
	err := s.db.WithReadTxn(func(txn *dgbadger.Txn) error {
		return badgerstore.Get(txn, profileKey(id), &p)
	})
	if err == badgerstore.ErrKeyNotFound {
		return domain.Profile{}, perr.NewNotFound("profile", id)
	}
	if err != nil {
		return domain.Profile{}, perr.NewInternal("load profile", err)
	}
	return p, nil
}

// DeleteAll removes every profile and everything it owns (feedback,
// souvenirs, unlocks), leaving routes and achievement rules untouched.
// Returns the number of profiles deleted.
func (s *Store) DeleteAll() (int, error) {
	var deleted int
	err := s.db.WithTxn(func(txn *dgbadger.Txn) error {
		var ids []int64
		if err := badgerstore.IterateByPrefix(txn, profileKeyPrefix, func(key string, decode func(dest any) error) error {
			var p domain.Profile
			if err := decode(&p); err != nil {
				return err
			}
			ids = append(ids, p.ID)
			return nil
		}); err != nil {
			return err
		}

		for _, id := range ids {
			if err := badgerstore.Delete(txn, profileKey(id)); err != nil {
				return err
			}
			if err := deleteByPrefix(txn, feedbackPrefix(id)); err != nil {
				return err
			}
			if err := deleteByPrefix(txn, souvenirPrefix(id)); err != nil {
				return err
			}
			if err := deleteByPrefix(txn, unlockPrefix(id)); err != nil {
				return err
			}
		}
		deleted = len(ids)
		return nil
	})
	return deleted, err
}

func deleteByPrefix(txn *dgbadger.Txn, prefix string) error {
	var keys []string
	if err := badgerstore.IterateByPrefix(txn, prefix, func(key string, decode func(dest any) error) error {
		keys = append(keys, key)
		return nil
	}); err != nil {
		return err
	}
	for _, k := range keys {
		if err := badgerstore.Delete(txn, k); err != nil {
			return err
		}
	}
	return nil
}

// AppendFeedback records a new feedback entry for profileID against
// routeID. Feedback is append-only.
func (s *Store) AppendFeedback(profileID, routeID int64, reason domain.FeedbackReason) (domain.FeedbackRecord, error) {
	var fr domain.FeedbackRecord
	err := s.db.WithTxn(func(txn *dgbadger.Txn) error {
		if err := badgerstore.Get(txn, profileKey(profileID), &domain.Profile{}); err == badgerstore.ErrKeyNotFound {
			return perr.NewNotFound("profile", profileID)
		} else if err != nil {
			return err
		}
		id, err := nextID(txn, "feedback")
		if err != nil {
			return err
		}
		fr = domain.FeedbackRecord{
			ID:        id,
			ProfileID: profileID,
			RouteID:   routeID,
			Reason:    reason,
			CreatedAt: time.Now().UTC(),
		}
		return badgerstore.Put(txn, feedbackKey(profileID, id), fr, 0)
	})
	return fr, err
}

// ListFeedbackFor returns every feedback record for profileID, oldest
// first (the order C3's sequential adjustment requires).
func (s *Store) ListFeedbackFor(profileID int64) ([]domain.FeedbackRecord, error) {
	var out []domain.FeedbackRecord
	err := s.db.WithReadTxn(func(txn *dgbadger.Txn) error {
		return badgerstore.IterateByPrefix(txn, feedbackPrefix(profileID), func(key string, decode func(dest any) error) error {
			var fr domain.FeedbackRecord
			if err := decode(&fr); err != nil {
				return err
			}
			out = append(out, fr)
			return nil
		})
	})
	return out, err
}

// UpdateXPAndLevel adds delta to the profile's total XP and recomputes
// its level using xpPerLevel, persisting the result.
func (s *Store) UpdateXPAndLevel(profileID int64, delta int, xpPerLevel int) (domain.Profile, error) {
	var p domain.Profile
	err := s.db.WithTxn(func(txn *dgbadger.Txn) error {
		if err := badgerstore.Get(txn, profileKey(profileID), &p); err == badgerstore.ErrKeyNotFound {
			return perr.NewNotFound("profile", profileID)
		} else if err != nil {
			return err
		}
		p.TotalXP += delta
		p.Level = 1 + p.TotalXP/xpPerLevel
		p.UpdatedAt = time.Now().UTC()
		return badgerstore.Put(txn, profileKey(profileID), p, 0)
	})
	return p, err
}

// SouvenirSort is the closed set of sort orders for ListSouvenirs.
type SouvenirSort string

const (
	SortNewest SouvenirSort = "newest"
	SortOldest SouvenirSort = "oldest"
	SortXPHigh SouvenirSort = "xp_high"
	SortXPLow  SouvenirSort = "xp_low"
)

// ListSouvenirs returns profileID's souvenirs in the requested order,
// paginated by limit/offset.
func (s *Store) ListSouvenirs(profileID int64, sortOrder SouvenirSort, limit, offset int) ([]domain.Souvenir, error) {
	var all []domain.Souvenir
	err := s.db.WithReadTxn(func(txn *dgbadger.Txn) error {
		return badgerstore.IterateByPrefix(txn, souvenirPrefix(profileID), func(key string, decode func(dest any) error) error {
			var sv domain.Souvenir
			if err := decode(&sv); err != nil {
				return err
			}
			all = append(all, sv)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	switch sortOrder {
	case SortOldest:
		sort.Slice(all, func(i, j int) bool { return all[i].CompletedAt.Before(all[j].CompletedAt) })
	case SortXPHigh:
		sort.Slice(all, func(i, j int) bool { return all[i].TotalXPGained > all[j].TotalXPGained })
	case SortXPLow:
		sort.Slice(all, func(i, j int) bool { return all[i].TotalXPGained < all[j].TotalXPGained })
	default: // newest
		sort.Slice(all, func(i, j int) bool { return all[i].CompletedAt.After(all[j].CompletedAt) })
	}

	if offset >= len(all) {
		return []domain.Souvenir{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// InsertSouvenir persists a new souvenir row, assigning its ID.
func (s *Store) InsertSouvenir(sv domain.Souvenir) (domain.Souvenir, error) {
	err := s.db.WithTxn(func(txn *dgbadger.Txn) error {
		id, err := nextID(txn, "souvenir")
		if err != nil {
			return err
		}
		sv.ID = id
		return badgerstore.Put(txn, souvenirKey(sv.ProfileID, sv.ID), sv, 0)
	})
	return sv, err
}

// UpdateSouvenir overwrites an existing souvenir row (used to fill in
// summary/SVG after LLM calls complete).
func (s *Store) UpdateSouvenir(sv domain.Souvenir) error {
	return s.db.WithTxn(func(txn *dgbadger.Txn) error {
		return badgerstore.Put(txn, souvenirKey(sv.ProfileID, sv.ID), sv, 0)
	})
}

// InsertUnlockIfAbsent records that ruleKey fired for profileID. Returns
// false if the (profile, rule) pair was already unlocked — the
// operation is a no-op in that case, enforcing the uniqueness invariant.
func (s *Store) InsertUnlockIfAbsent(profileID int64, ruleKey string) (bool, error) {
	var inserted bool
	err := s.db.WithTxn(func(txn *dgbadger.Txn) error {
		key := unlockKey(profileID, ruleKey)
		var existing domain.AchievementUnlock
		err := badgerstore.Get(txn, key, &existing)
		if err == nil {
			return nil // already unlocked; no-op per Conflict recovery policy.
		}
		if err != badgerstore.ErrKeyNotFound {
			return err
		}
		inserted = true
		return badgerstore.Put(txn, key, domain.AchievementUnlock{
			ProfileID:  profileID,
			RuleKey:    ruleKey,
			UnlockedAt: time.Now().UTC(),
		}, 0)
	})
	return inserted, err
}

// ListUnlocksFor returns every achievement unlock recorded for profileID.
func (s *Store) ListUnlocksFor(profileID int64) ([]domain.AchievementUnlock, error) {
	var out []domain.AchievementUnlock
	err := s.db.WithReadTxn(func(txn *dgbadger.Txn) error {
		return badgerstore.IterateByPrefix(txn, unlockPrefix(profileID), func(key string, decode func(dest any) error) error {
			var u domain.AchievementUnlock
			if err := decode(&u); err != nil {
				return err
			}
			out = append(out, u)
			return nil
		})
	})
	return out, err
}
