// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite_test

import (
	"context"
	"testing"

	"github.com/sigil-dev/docquery/internal/store/sqlite"
	dqerr "github.com/sigil-dev/docquery/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, dims int) *sqlite.VectorStore {
	t.Helper()
	vs, err := sqlite.NewVectorStore(dims)
	require.NoError(t, err)
	t.Cleanup(func() { _ = vs.Close() })
	return vs
}

func TestNewVectorStore_RejectsZeroDimensions(t *testing.T) {
	_, err := sqlite.NewVectorStore(0)
	require.Error(t, err)
	assert.True(t, dqerr.IsInvalidInput(err))
}

func TestVectorStore_StoreAndSearch(t *testing.T) {
	ctx := context.Background()
	vs := newStore(t, 3)
	assert.Equal(t, 3, vs.Dimensions())

	require.NoError(t, vs.Store(ctx, "v1", []float32{1.0, 0.0, 0.0}, map[string]any{"source": "test1"}))
	require.NoError(t, vs.Store(ctx, "v2", []float32{0.0, 1.0, 0.0}, map[string]any{"source": "test2"}))
	require.NoError(t, vs.Store(ctx, "v3", []float32{0.9, 0.1, 0.0}, map[string]any{"source": "test3"}))

	results, err := vs.Search(ctx, []float32{1.0, 0.0, 0.0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "v1", results[0].ID) // exact match should be first
	assert.InDelta(t, 0.0, results[0].Score, 1e-6)
	assert.Equal(t, "v3", results[1].ID)
	assert.Equal(t, "test3", results[1].Metadata["source"])
}

func TestVectorStore_ScoreIsEuclideanDistance(t *testing.T) {
	ctx := context.Background()
	vs := newStore(t, 2)

	require.NoError(t, vs.Store(ctx, "v1", []float32{3, 4}, nil))

	results, err := vs.Search(ctx, []float32{0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 5.0, results[0].Score, 1e-5)
	assert.Nil(t, results[0].Metadata)
}

func TestVectorStore_StoreUpsert(t *testing.T) {
	ctx := context.Background()
	vs := newStore(t, 3)

	require.NoError(t, vs.Store(ctx, "v1", []float32{1.0, 0.0, 0.0}, map[string]any{"version": float64(1)}))
	require.NoError(t, vs.Store(ctx, "v1", []float32{0.0, 1.0, 0.0}, map[string]any{"version": float64(2)}))

	results, err := vs.Search(ctx, []float32{0.0, 1.0, 0.0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "v1", results[0].ID)
	assert.Equal(t, float64(2), results[0].Metadata["version"])

	n, err := vs.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestVectorStore_DeleteMultiple(t *testing.T) {
	ctx := context.Background()
	vs := newStore(t, 3)

	for _, id := range []string{"v1", "v2", "v3"} {
		require.NoError(t, vs.Store(ctx, id, []float32{1.0, 0.0, 0.0}, nil))
	}

	require.NoError(t, vs.Delete(ctx, []string{"v1", "v3"}))
	require.NoError(t, vs.Delete(ctx, nil))

	results, err := vs.Search(ctx, []float32{1.0, 0.0, 0.0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "v2", results[0].ID)
}

func TestVectorStore_SearchEmpty(t *testing.T) {
	vs := newStore(t, 3)

	results, err := vs.Search(context.Background(), []float32{1.0, 0.0, 0.0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestVectorStore_RejectsWrongDimensions(t *testing.T) {
	ctx := context.Background()
	vs := newStore(t, 3)

	err := vs.Store(ctx, "v1", []float32{1, 2}, nil)
	require.Error(t, err)
	assert.True(t, dqerr.HasCode(err, dqerr.CodeStoreInvalidInput))

	_, err = vs.Search(ctx, []float32{1, 2, 3, 4}, 1)
	require.Error(t, err)
	assert.True(t, dqerr.IsInvalidInput(err))
}

func TestVectorStore_StoresAreIsolated(t *testing.T) {
	ctx := context.Background()
	a := newStore(t, 2)
	b := newStore(t, 2)

	require.NoError(t, a.Store(ctx, "only-in-a", []float32{1, 1}, nil))

	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
