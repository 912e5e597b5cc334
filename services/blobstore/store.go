// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package blobstore persists souvenir pixel-art SVGs outside Badger when
// a GCS bucket is configured, so large generated artifacts don't bloat
// the LSM tree. With no bucket configured it falls back to a no-op that
// leaves SVGs inline on the Souvenir record, which remains correct at
// the data sizes souvenirs actually produce.
package blobstore

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// Store persists and retrieves souvenir artifacts by key.
type Store interface {
	Put(ctx context.Context, key string, content []byte, contentType string) (url string, err error)
	Get(ctx context.Context, key string) ([]byte, error)
	Close() error
}

// NoopStore is used when no bucket is configured; it reports that every
// key is absent so callers fall back to inline storage.
type NoopStore struct{}

func (NoopStore) Put(context.Context, string, []byte, string) (string, error) { return "", nil }
func (NoopStore) Get(context.Context, string) ([]byte, error)                 { return nil, fmt.Errorf("blobstore: no-op store has no objects") }
func (NoopStore) Close() error                                                { return nil }

// GCSStore persists artifacts as objects in a single Cloud Storage
// bucket, keyed by souvenir id.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore builds a Store backed by bucketName. The client
// authenticates via Application Default Credentials, the same mechanism
// the teacher's GCP clients use.
func NewGCSStore(ctx context.Context, bucketName string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("blobstore: build gcs client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucketName}, nil
}

// Put uploads content under key and returns its gs:// locator.
func (s *GCSStore) Put(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	obj := s.client.Bucket(s.bucket).Object(key)
	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(content); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("blobstore: write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("blobstore: close object %s: %w", key, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, key), nil
}

// Get downloads the object stored at key.
func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("blobstore: open object %s: %w", key, err)
	}
	defer r.Close()

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("blobstore: read object %s: %w", key, err)
	}
	return content, nil
}

// Close releases the underlying client's connections.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// New builds a Store: a GCSStore if bucketName is non-empty, otherwise
// NoopStore.
func New(ctx context.Context, bucketName string) (Store, error) {
	if bucketName == "" {
		return NoopStore{}, nil
	}
	return NewGCSStore(ctx, bucketName)
}
