// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package rag_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sigil-dev/docquery/internal/chunker"
	"github.com/sigil-dev/docquery/internal/document"
	"github.com/sigil-dev/docquery/internal/embedding/tfidf"
	"github.com/sigil-dev/docquery/internal/rag"
	_ "github.com/sigil-dev/docquery/internal/store/sqlite" // register sqlite backend
	dqerr "github.com/sigil-dev/docquery/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return dir
}

func newBuilder(t *testing.T, backend string) *rag.Builder {
	t.Helper()
	splitter, err := chunker.New(12, 2)
	require.NoError(t, err)
	return &rag.Builder{Splitter: splitter, Embedder: tfidf.New(), Backend: backend}
}

var corpus = map[string]string{
	"finance.txt": "Quarterly revenue grew twelve percent. Operating costs stayed flat across the year.",
	"garden.txt":  "Tomatoes need full sun and regular watering. Prune the lower leaves in summer.",
	"notes.md":    "ignored because markdown is not supported",
}

func TestBuilder_BuildAndRetrieve(t *testing.T) {
	for _, backend := range []string{"memory", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			ix, err := newBuilder(t, backend).Build(context.Background(), writeFiles(t, corpus))
			require.NoError(t, err)
			t.Cleanup(func() { _ = ix.Close() })

			stats := ix.Stats()
			assert.Equal(t, 2, stats.Documents)
			assert.GreaterOrEqual(t, stats.Chunks, 2)
			assert.Equal(t, []string{"finance.txt", "garden.txt"}, stats.Files)
			assert.Equal(t, backend, stats.Backend)
			assert.Equal(t, "tfidf", stats.Embedder)

			nodes, err := ix.Retrieve(context.Background(), "How much did revenue grow?", 1)
			require.NoError(t, err)
			require.Len(t, nodes, 1)
			assert.Equal(t, "finance.txt", nodes[0].Chunk.FileName)
			assert.Contains(t, nodes[0].Chunk.Text, "revenue")
		})
	}
}

func TestBuilder_EmptyDirectory(t *testing.T) {
	_, err := newBuilder(t, "memory").Build(context.Background(), writeFiles(t, map[string]string{"a.pdf": "x"}))
	require.Error(t, err)
	assert.True(t, dqerr.HasCode(err, dqerr.CodeDocumentDirectoryEmpty))
}

func TestBuilder_BlankDocuments(t *testing.T) {
	_, err := newBuilder(t, "memory").Build(context.Background(), writeFiles(t, map[string]string{"a.txt": "   \n"}))
	require.Error(t, err)
	assert.True(t, dqerr.HasCode(err, dqerr.CodeDocumentDirectoryEmpty))
}

func TestBuilder_UnknownBackend(t *testing.T) {
	_, err := newBuilder(t, "faiss").Build(context.Background(), writeFiles(t, corpus))
	require.Error(t, err)
	assert.True(t, dqerr.HasCode(err, dqerr.CodeStoreBackendUnsupported))
}

func TestIndex_RetrieveValidation(t *testing.T) {
	ix, err := newBuilder(t, "memory").Build(context.Background(), writeFiles(t, corpus))
	require.NoError(t, err)
	defer ix.Close()

	_, err = ix.Retrieve(context.Background(), "  ", 2)
	require.Error(t, err)
	assert.True(t, dqerr.HasCode(err, dqerr.CodeSearchQueryInvalid))

	_, err = ix.Retrieve(context.Background(), "revenue", 0)
	require.Error(t, err)
	assert.True(t, dqerr.IsInvalidInput(err))
}

func TestIndex_CloseIsIdempotent(t *testing.T) {
	ix, err := newBuilder(t, "memory").Build(context.Background(), writeFiles(t, corpus))
	require.NoError(t, err)

	require.NoError(t, ix.Close())
	require.NoError(t, ix.Close())

	_, err = ix.Retrieve(context.Background(), "revenue", 1)
	assert.Error(t, err)
}

func TestBuildPrompt(t *testing.T) {
	nodes := []rag.Node{
		{Chunk: chunker.Chunk{Text: "Revenue grew.", Metadata: map[string]string{document.MetaFileName: "a.txt"}}},
		{Chunk: chunker.Chunk{Text: " Costs fell. "}},
	}

	want := "Context information is below.\n" +
		"---------------------\n" +
		"file_name: a.txt\n\nRevenue grew.\n\nCosts fell.\n" +
		"---------------------\n" +
		"Given the context information and not prior knowledge, answer the query.\n" +
		"Query: What changed?\n" +
		"Answer: "
	assert.Equal(t, want, rag.BuildPrompt("What changed?", nodes))
}

func TestQueryEngine_Query(t *testing.T) {
	ix, err := newBuilder(t, "memory").Build(context.Background(), writeFiles(t, corpus))
	require.NoError(t, err)
	defer ix.Close()

	engine := &rag.QueryEngine{Synthesizer: rag.ExtractiveSynthesizer{}}
	resp, err := engine.Query(context.Background(), ix, "When should I prune tomatoes?")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Text)
	assert.Contains(t, resp.Text, "Prune")
	assert.LessOrEqual(t, len(resp.Sources), rag.DefaultTopK)
	assert.Equal(t, "garden.txt", resp.Sources[0].Chunk.FileName)
}
