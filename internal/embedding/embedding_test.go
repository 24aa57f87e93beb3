// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package embedding_test

import (
	"context"
	stderrors "errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sigil-dev/docquery/internal/embedding"
	"github.com/sigil-dev/docquery/internal/embedding/tfidf"
	dqerr "github.com/sigil-dev/docquery/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOpts(size int) embedding.BatchOptions {
	return embedding.BatchOptions{Size: size, Concurrency: 3, MaxRetries: 2, Backoff: time.Millisecond}
}

// indexVectors returns one vector per text holding the text's position.
func indexVectors(_ context.Context, batch []string) ([][]float32, error) {
	out := make([][]float32, len(batch))
	for i, text := range batch {
		n, err := strconv.Atoi(text)
		if err != nil {
			return nil, err
		}
		out[i] = []float32{float32(n)}
	}
	return out, nil
}

func TestEmbedBatched_PreservesOrder(t *testing.T) {
	texts := make([]string, 11)
	for i := range texts {
		texts[i] = strconv.Itoa(i)
	}

	var calls atomic.Int32
	vecs, err := embedding.EmbedBatched(context.Background(), texts, fastOpts(3),
		func(ctx context.Context, batch []string) ([][]float32, error) {
			calls.Add(1)
			assert.LessOrEqual(t, len(batch), 3)
			return indexVectors(ctx, batch)
		})
	require.NoError(t, err)
	require.Len(t, vecs, 11)
	for i, v := range vecs {
		assert.Equal(t, []float32{float32(i)}, v)
	}
	assert.Equal(t, int32(4), calls.Load())
}

func TestEmbedBatched_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	vecs, err := embedding.EmbedBatched(context.Background(), []string{"7"}, fastOpts(8),
		func(ctx context.Context, batch []string) ([][]float32, error) {
			if calls.Add(1) < 3 {
				return nil, embedding.Retryable(stderrors.New("rate limited"))
			}
			return indexVectors(ctx, batch)
		})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{7}}, vecs)
	assert.Equal(t, int32(3), calls.Load())
}

func TestEmbedBatched_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	_, err := embedding.EmbedBatched(context.Background(), []string{"1"}, fastOpts(8),
		func(context.Context, []string) ([][]float32, error) {
			calls.Add(1)
			return nil, embedding.Retryable(dqerr.New(dqerr.CodeEmbeddingUpstreamFailure, "still down"))
		})
	require.Error(t, err)
	assert.True(t, dqerr.HasCode(err, dqerr.CodeEmbeddingUpstreamFailure))
	assert.Equal(t, int32(3), calls.Load())
}

func TestEmbedBatched_PermanentErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	_, err := embedding.EmbedBatched(context.Background(), []string{"1"}, fastOpts(8),
		func(context.Context, []string) ([][]float32, error) {
			calls.Add(1)
			return nil, dqerr.New(dqerr.CodeEmbeddingUpstreamFailure, "bad key")
		})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmbedBatched_VectorCountMismatch(t *testing.T) {
	_, err := embedding.EmbedBatched(context.Background(), []string{"1", "2"}, fastOpts(8),
		func(context.Context, []string) ([][]float32, error) {
			return [][]float32{{1}}, nil
		})
	require.Error(t, err)
	assert.True(t, dqerr.HasCode(err, dqerr.CodeEmbeddingResponseInvalid))
}

func TestEmbedBatched_EmptyInput(t *testing.T) {
	_, err := embedding.EmbedBatched(context.Background(), nil, fastOpts(8), indexVectors)
	require.Error(t, err)
	assert.True(t, dqerr.HasCode(err, dqerr.CodeEmbeddingRequestInvalid))
}

func TestPrepare(t *testing.T) {
	vz := tfidf.New()

	fitted, err := embedding.Prepare(vz, []string{"alpha beta", "gamma"})
	require.NoError(t, err)
	assert.NotSame(t, vz, fitted)

	vecs, err := fitted.Embed(context.Background(), []string{"alpha"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)

	plain := &staticEmbedder{}
	same, err := embedding.Prepare(plain, []string{"ignored"})
	require.NoError(t, err)
	assert.Same(t, plain, same)
}

type staticEmbedder struct{}

func (*staticEmbedder) Name() string { return "static" }

func (*staticEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), nil
}

func TestToFloat32(t *testing.T) {
	assert.Equal(t, []float32{0.5, -1, 2}, embedding.ToFloat32([]float64{0.5, -1, 2}))
}
