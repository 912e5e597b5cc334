// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package achievements persists the C9 Achievement Engine's rule table.
// Unlocks themselves live in services/storage/profile since a profile
// exclusively owns them; this package owns only the seeded, append-only
// rule set.
package achievements

import (
	"fmt"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/pathlore/pathlore/services/domain"
	badgerstore "github.com/pathlore/pathlore/services/storage/badger"
)

const ruleKeyPrefix = "achievement_rule/v1/"

// RuleStore is the Badger-backed achievement rule table.
type RuleStore struct {
	db *badgerstore.DB
}

// New wraps db as a rule store.
func New(db *badgerstore.DB) *RuleStore {
	return &RuleStore{db: db}
}

func ruleKey(key string) string { return ruleKeyPrefix + key }

// SeedRules reconciles want with what's persisted: rules whose key is
// not yet present are inserted; existing rules are left untouched, since
// keys are stable identifiers across releases.
func (s *RuleStore) SeedRules(want []domain.AchievementRule) error {
	return s.db.WithTxn(func(txn *dgbadger.Txn) error {
		for _, rule := range want {
			var existing domain.AchievementRule
			err := badgerstore.Get(txn, ruleKey(rule.Key), &existing)
			if err == nil {
				continue
			}
			if err != badgerstore.ErrKeyNotFound {
				return fmt.Errorf("check existing rule %s: %w", rule.Key, err)
			}
			if err := badgerstore.Put(txn, ruleKey(rule.Key), rule, 0); err != nil {
				return fmt.Errorf("insert rule %s: %w", rule.Key, err)
			}
		}
		return nil
	})
}

// ListAll returns every seeded achievement rule.
func (s *RuleStore) ListAll() ([]domain.AchievementRule, error) {
	var out []domain.AchievementRule
	err := s.db.WithReadTxn(func(txn *dgbadger.Txn) error {
		return badgerstore.IterateByPrefix(txn, ruleKeyPrefix, func(key string, decode func(dest any) error) error {
			var r domain.AchievementRule
			if err := decode(&r); err != nil {
				return err
			}
			out = append(out, r)
			return nil
		})
	})
	return out, err
}
