// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoopStore_PutReturnsEmptyURLAndGetErrors(t *testing.T) {
	var s Store = NoopStore{}
	url, err := s.Put(context.Background(), "k", []byte("data"), "image/svg+xml")
	require.NoError(t, err)
	require.Empty(t, url)

	_, err = s.Get(context.Background(), "k")
	require.Error(t, err)
	require.NoError(t, s.Close())
}

func TestNew_EmptyBucketReturnsNoopStore(t *testing.T) {
	s, err := New(context.Background(), "")
	require.NoError(t, err)
	_, ok := s.(NoopStore)
	require.True(t, ok)
}
