// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package rag builds vector indexes over uploaded documents and answers
// queries from the chunks they retrieve.
package rag

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sigil-dev/docquery/internal/chunker"
	"github.com/sigil-dev/docquery/internal/embedding"
	"github.com/sigil-dev/docquery/internal/store"
	dqerr "github.com/sigil-dev/docquery/pkg/errors"
)

// Node is a retrieved chunk and its distance from the query.
type Node struct {
	Chunk chunker.Chunk
	Score float64
}

// Stats describes a built index.
type Stats struct {
	Documents int       `json:"documents"`
	Chunks    int       `json:"chunks"`
	Files     []string  `json:"files"`
	Backend   string    `json:"backend"`
	Embedder  string    `json:"embedder"`
	BuiltAt   time.Time `json:"built_at"`
}

// Index pairs a vector store with the embedder that filled it, so queries
// are embedded into the same space as the chunks.
type Index struct {
	embedder embedding.Embedder
	store    store.VectorStore
	chunks   map[string]chunker.Chunk
	stats    Stats

	closeOnce sync.Once
	closeErr  error
}

// Retrieve returns the k chunks nearest to query, closest first.
func (ix *Index) Retrieve(ctx context.Context, query string, k int) ([]Node, error) {
	if strings.TrimSpace(query) == "" {
		return nil, dqerr.New(dqerr.CodeSearchQueryInvalid, "query must not be empty")
	}
	if k <= 0 {
		return nil, dqerr.Errorf(dqerr.CodeSearchQueryInvalid, "top_k must be positive (got %d)", k)
	}

	vecs, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, dqerr.Wrap(err, dqerr.CodeSearchRetrievalFailure, "embedding query")
	}
	if len(vecs) != 1 {
		return nil, dqerr.Errorf(dqerr.CodeSearchRetrievalFailure, "expected 1 query vector, got %d", len(vecs))
	}

	hits, err := ix.store.Search(ctx, vecs[0], k)
	if err != nil {
		return nil, dqerr.Wrap(err, dqerr.CodeSearchRetrievalFailure, "searching index")
	}

	nodes := make([]Node, 0, len(hits))
	for _, h := range hits {
		c, ok := ix.chunks[h.ID]
		if !ok {
			continue
		}
		nodes = append(nodes, Node{Chunk: c, Score: h.Score})
	}
	return nodes, nil
}

// Stats describes what the index was built from.
func (ix *Index) Stats() Stats { return ix.stats }

// Close releases the vector store. It is safe to call more than once.
func (ix *Index) Close() error {
	ix.closeOnce.Do(func() {
		ix.closeErr = ix.store.Close()
	})
	return ix.closeErr
}
