// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger wraps dgraph-io/badger/v4 as Pathlore's sole persistence
// engine. Every store in services/storage/* opens its own table-prefixed
// key namespace against one shared *DB; there is no relational engine in
// the dependency set retrieved for this project, so a table-prefixed KV
// store plays that role, the same way the teacher's router cache layers
// a keyed namespace over a single Badger handle.
package badger

import (
	"encoding/gob"
	"bytes"
	"fmt"
	"log/slog"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// Config controls where and how the embedded store opens its files.
type Config struct {
	Path     string
	InMemory bool
	Logger   *slog.Logger
}

// DefaultConfig returns a Config pointed at path with a sane logger.
func DefaultConfig(path string) Config {
	return Config{Path: path, Logger: slog.Default()}
}

// DB is a thin wrapper over a single badger.DB handle, shared by every
// table-prefixed store in services/storage/*.
type DB struct {
	inner  *dgbadger.DB
	logger *slog.Logger
}

// OpenDB opens (creating if absent) the Badger database described by cfg.
func OpenDB(cfg Config) (*DB, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := dgbadger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil) // Badger's internal logger is too chatty for our structured logs.

	inner, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db at %s: %w", cfg.Path, err)
	}

	logger.Info("badger db opened", "path", cfg.Path, "in_memory", cfg.InMemory)
	return &DB{inner: inner, logger: logger}, nil
}

// Close releases the underlying file handles. Safe to call once during
// graceful shutdown.
func (d *DB) Close() error {
	return d.inner.Close()
}

// WithTxn runs fn inside a read-write transaction, committing on success
// and discarding on any returned error.
func (d *DB) WithTxn(fn func(txn *dgbadger.Txn) error) error {
	return d.inner.Update(fn)
}

// WithReadTxn runs fn inside a read-only transaction.
func (d *DB) WithReadTxn(fn func(txn *dgbadger.Txn) error) error {
	return d.inner.View(fn)
}

// Ping confirms the underlying store can still serve a read-only
// transaction, for use by readiness checks.
func (d *DB) Ping() error {
	return d.inner.View(func(txn *dgbadger.Txn) error { return nil })
}

// Put gob-encodes value and stores it under key, optionally with a TTL.
func Put(txn *dgbadger.Txn, key string, value any, ttl time.Duration) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return fmt.Errorf("encode value for key %s: %w", key, err)
	}
	entry := dgbadger.NewEntry([]byte(key), buf.Bytes())
	if ttl > 0 {
		entry = entry.WithTTL(ttl)
	}
	return txn.SetEntry(entry)
}

// Get gob-decodes the value stored under key into dest. Returns
// dgbadger.ErrKeyNotFound unchanged so callers can translate it with
// errors.Is.
func Get(txn *dgbadger.Txn, key string, dest any) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return gob.NewDecoder(bytes.NewReader(val)).Decode(dest)
	})
}

// Delete removes key. Deleting an absent key is not an error.
func Delete(txn *dgbadger.Txn, key string) error {
	err := txn.Delete([]byte(key))
	if err == dgbadger.ErrKeyNotFound {
		return nil
	}
	return err
}

// IterateByPrefix calls fn for every key-value pair whose key starts with
// prefix, in lexicographic key order. fn receives the raw key and the
// gob-decoding function for its value; iteration stops at the first
// error fn returns.
func IterateByPrefix(txn *dgbadger.Txn, prefix string, fn func(key string, decode func(dest any) error) error) error {
	opts := dgbadger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
		item := it.Item()
		key := string(item.KeyCopy(nil))
		var val []byte
		if err := item.Value(func(v []byte) error {
			val = append([]byte(nil), v...)
			return nil
		}); err != nil {
			return fmt.Errorf("read value for key %s: %w", key, err)
		}
		decode := func(dest any) error {
			return gob.NewDecoder(bytes.NewReader(val)).Decode(dest)
		}
		if err := fn(key, decode); err != nil {
			return err
		}
	}
	return nil
}

// ErrKeyNotFound re-exports the underlying sentinel so callers need not
// import dgraph-io/badger/v4 directly just to compare errors.
var ErrKeyNotFound = dgbadger.ErrKeyNotFound
