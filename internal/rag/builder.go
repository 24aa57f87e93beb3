// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package rag

import (
	"context"
	"log/slog"
	"time"

	"github.com/sigil-dev/docquery/internal/chunker"
	"github.com/sigil-dev/docquery/internal/document"
	"github.com/sigil-dev/docquery/internal/embedding"
	"github.com/sigil-dev/docquery/internal/store"
	dqerr "github.com/sigil-dev/docquery/pkg/errors"
)

// Metadata keys stored with every chunk vector, in addition to the
// document metadata.
const (
	MetaDocumentID = "document_id"
	MetaChunkIndex = "chunk_index"
)

// Builder turns a directory of documents into an Index.
type Builder struct {
	Loader   document.Loader
	Splitter *chunker.SentenceSplitter
	Embedder embedding.Embedder
	Backend  string
}

// Build loads every document in dir, splits it into chunks, embeds them and
// stores the vectors in a fresh store. The caller owns the returned Index.
func (b *Builder) Build(ctx context.Context, dir string) (*Index, error) {
	if b.Splitter == nil || b.Embedder == nil {
		return nil, dqerr.New(dqerr.CodeServerConfigInvalid, "index builder requires a splitter and an embedder")
	}
	start := time.Now()

	docs, err := b.Loader.LoadDir(ctx, dir)
	if err != nil {
		return nil, err
	}

	chunks := b.Splitter.SplitAll(docs)
	if len(chunks) == 0 {
		return nil, dqerr.Errorf(dqerr.CodeDocumentDirectoryEmpty, "documents in %s contain no text", dir)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	embedder, err := embedding.Prepare(b.Embedder, texts)
	if err != nil {
		return nil, err
	}
	vecs, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(chunks) || len(vecs[0]) == 0 {
		return nil, dqerr.Errorf(dqerr.CodeEmbeddingResponseInvalid,
			"embedder returned %d vectors for %d chunks", len(vecs), len(chunks))
	}

	backend := b.Backend
	if backend == "" {
		backend = store.DefaultBackend
	}
	vs, err := store.New(store.Config{Backend: backend, Dimensions: len(vecs[0])})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]chunker.Chunk, len(chunks))
	for i, c := range chunks {
		if err := vs.Store(ctx, c.ID, vecs[i], chunkMetadata(c)); err != nil {
			_ = vs.Close()
			return nil, err
		}
		byID[c.ID] = c
	}

	files := make([]string, len(docs))
	for i, d := range docs {
		files[i] = d.FileName
	}

	ix := &Index{
		embedder: embedder,
		store:    vs,
		chunks:   byID,
		stats: Stats{
			Documents: len(docs),
			Chunks:    len(chunks),
			Files:     files,
			Backend:   backend,
			Embedder:  embedder.Name(),
			BuiltAt:   time.Now(),
		},
	}

	slog.Info("index built",
		"documents", len(docs),
		"chunks", len(chunks),
		"dimensions", len(vecs[0]),
		"backend", backend,
		"embedder", embedder.Name(),
		"duration", time.Since(start),
	)
	return ix, nil
}

func chunkMetadata(c chunker.Chunk) map[string]any {
	meta := make(map[string]any, len(c.Metadata)+2)
	for k, v := range c.Metadata {
		meta[k] = v
	}
	meta[MetaDocumentID] = c.DocumentID
	meta[MetaChunkIndex] = c.Index
	return meta
}
