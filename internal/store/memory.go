// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"context"
	"maps"
	"math"
	"slices"
	"sync"

	dqerr "github.com/sigil-dev/docquery/pkg/errors"
)

func init() {
	RegisterBackend("memory", func(cfg Config) (VectorStore, error) {
		return NewMemoryStore(cfg.Dimensions), nil
	})
}

var _ VectorStore = (*MemoryStore)(nil)

type memoryEntry struct {
	id        string
	embedding []float32
	metadata  map[string]any
}

// MemoryStore is a flat index: every search scans all vectors and ranks them
// by exact L2 distance.
type MemoryStore struct {
	mu         sync.RWMutex
	dimensions int
	entries    []memoryEntry
	byID       map[string]int
	closed     bool
}

func NewMemoryStore(dimensions int) *MemoryStore {
	return &MemoryStore{dimensions: dimensions, byID: make(map[string]int)}
}

func (m *MemoryStore) Store(ctx context.Context, id string, embedding []float32, metadata map[string]any) error {
	if err := m.checkVector(embedding); err != nil {
		return err
	}
	if id == "" {
		return dqerr.New(dqerr.CodeStoreInvalidInput, "vector id must not be empty")
	}

	entry := memoryEntry{
		id:        id,
		embedding: slices.Clone(embedding),
		metadata:  maps.Clone(metadata),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed()
	}
	if i, ok := m.byID[id]; ok {
		m.entries[i] = entry
		return nil
	}
	m.byID[id] = len(m.entries)
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MemoryStore) Search(ctx context.Context, query []float32, k int) ([]VectorResult, error) {
	if err := m.checkVector(query); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, dqerr.Errorf(dqerr.CodeStoreInvalidInput, "k must be positive (got %d)", k)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errClosed()
	}

	results := make([]VectorResult, 0, len(m.entries))
	for _, e := range m.entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results = append(results, VectorResult{
			ID:       e.id,
			Score:    l2(query, e.embedding),
			Metadata: maps.Clone(e.metadata),
		})
	}

	slices.SortStableFunc(results, func(a, b VectorResult) int {
		switch {
		case a.Score < b.Score:
			return -1
		case a.Score > b.Score:
			return 1
		default:
			return 0
		}
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (m *MemoryStore) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed()
	}

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := m.entries[:0]
	for _, e := range m.entries {
		if _, ok := drop[e.id]; !ok {
			kept = append(kept, e)
		}
	}
	clear(m.entries[len(kept):])
	m.entries = kept

	m.byID = make(map[string]int, len(kept))
	for i, e := range kept {
		m.byID[e.id] = i
	}
	return nil
}

func (m *MemoryStore) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, errClosed()
	}
	return len(m.entries), nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.entries = nil
	m.byID = nil
	return nil
}

func (m *MemoryStore) checkVector(v []float32) error {
	if len(v) != m.dimensions {
		return dqerr.Errorf(dqerr.CodeStoreInvalidInput,
			"vector has %d dimensions, index expects %d", len(v), m.dimensions)
	}
	return nil
}

func errClosed() error {
	return dqerr.New(dqerr.CodeStoreDatabaseFailure, "vector store is closed")
}

func l2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
