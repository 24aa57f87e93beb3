// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package store holds the vector index backends used for nearest-neighbour
// retrieval over document chunks.
package store

import "context"

// VectorStore stores embeddings and answers k-nearest-neighbour queries.
type VectorStore interface {
	Store(ctx context.Context, id string, embedding []float32, metadata map[string]any) error
	Search(ctx context.Context, query []float32, k int) ([]VectorResult, error)
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// VectorResult represents a single result from a vector similarity search.
type VectorResult struct {
	ID       string
	Score    float64 // L2 distance: lower = more similar; 0.0 = exact match.
	Metadata map[string]any
}
