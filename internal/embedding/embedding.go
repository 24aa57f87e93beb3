// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package embedding turns text into vectors for similarity search.
package embedding

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
	dqerr "github.com/sigil-dev/docquery/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Embedder converts a batch of texts into one vector per text, in order.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Fitter is implemented by embedders that must learn from the corpus before
// they can embed. Fit returns a new, ready Embedder and leaves the receiver
// untouched, so an index built earlier keeps its own vocabulary.
type Fitter interface {
	Fit(corpus []string) (Embedder, error)
}

// Prepare returns e fitted on corpus when e is a Fitter, or e itself.
func Prepare(e Embedder, corpus []string) (Embedder, error) {
	if f, ok := e.(Fitter); ok {
		return f.Fit(corpus)
	}
	return e, nil
}

// BatchOptions controls how remote embedders split and retry requests.
type BatchOptions struct {
	Size        int
	Concurrency int
	MaxRetries  uint64
	Backoff     time.Duration
}

// DefaultBatchOptions returns the batching used by the remote embedders.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{Size: 64, Concurrency: 4, MaxRetries: 4, Backoff: 500 * time.Millisecond}
}

// CallFunc embeds one batch. Errors wrapped with Retryable are retried with
// exponential backoff; any other error aborts the whole call.
type CallFunc func(ctx context.Context, batch []string) ([][]float32, error)

// Retryable marks err as transient.
func Retryable(err error) error {
	return retry.RetryableError(err)
}

// EmbedBatched splits texts into batches, runs call on them concurrently and
// reassembles the vectors in input order.
func EmbedBatched(ctx context.Context, texts []string, opts BatchOptions, call CallFunc) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, dqerr.New(dqerr.CodeEmbeddingRequestInvalid, "no texts to embed")
	}
	if opts.Size <= 0 {
		opts.Size = len(texts)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 100 * time.Millisecond
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for start := 0; start < len(texts); start += opts.Size {
		end := min(start+opts.Size, len(texts))
		batch := texts[start:end]

		g.Go(func() error {
			backoff := retry.WithMaxRetries(opts.MaxRetries, retry.NewExponential(opts.Backoff))
			var vecs [][]float32
			err := retry.Do(gctx, backoff, func(ctx context.Context) error {
				var err error
				vecs, err = call(ctx, batch)
				return err
			})
			if err != nil {
				return err
			}
			if len(vecs) != len(batch) {
				return dqerr.Errorf(dqerr.CodeEmbeddingResponseInvalid,
					"expected %d vectors, got %d", len(batch), len(vecs))
			}
			copy(out[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ToFloat32 narrows an API vector to the float32 layout used by the stores.
func ToFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
