// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store_test

import (
	"context"
	"testing"

	"github.com/sigil-dev/docquery/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CopiesInputs(t *testing.T) {
	ctx := context.Background()
	vs := store.NewMemoryStore(2)

	vec := []float32{1, 0}
	meta := map[string]any{"k": "v"}
	require.NoError(t, vs.Store(ctx, "a", vec, meta))
	vec[0] = 100
	meta["k"] = "changed"

	results, err := vs.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Zero(t, results[0].Score)
	assert.Equal(t, "v", results[0].Metadata["k"])
}

func TestMemoryStore_ClosedStoreErrors(t *testing.T) {
	ctx := context.Background()
	vs := store.NewMemoryStore(2)
	require.NoError(t, vs.Close())

	_, err := vs.Search(ctx, []float32{1, 0}, 1)
	assert.Error(t, err)
	assert.Error(t, vs.Store(ctx, "a", []float32{1, 0}, nil))
	_, err = vs.Count(ctx)
	assert.Error(t, err)
}

func TestMemoryStore_TiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	vs := store.NewMemoryStore(1)
	for _, id := range []string{"first", "second", "third"} {
		require.NoError(t, vs.Store(ctx, id, []float32{2}, nil))
	}

	results, err := vs.Search(ctx, []float32{0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"first", "second", "third"},
		[]string{results[0].ID, results[1].ID, results[2].ID})
}
