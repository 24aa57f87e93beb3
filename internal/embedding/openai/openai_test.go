// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sigil-dev/docquery/internal/embedding"
	"github.com/sigil-dev/docquery/internal/embedding/openai"
	dqerr "github.com/sigil-dev/docquery/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
}

// fakeEmbeddingsServer answers with vectors of [len(text), position] and
// returns them in reverse order to exercise index handling.
func fakeEmbeddingsServer(t *testing.T, failFirst int32, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		if n <= failFirst {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"try again","type":"server_error"}}`))
			return
		}

		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		assert.Equal(t, "text-embedding-ada-002", req.Model)

		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float64{float64(len(req.Input[i])), float64(i)},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]any{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newEmbedder(t *testing.T, baseURL string) *openai.Embedder {
	t.Helper()
	e, err := openai.New(openai.Config{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Batch:   embedding.BatchOptions{Size: 2, Concurrency: 2, MaxRetries: 2, Backoff: time.Millisecond},
	})
	require.NoError(t, err)
	return e
}

func TestNew_MissingAPIKey(t *testing.T) {
	_, err := openai.New(openai.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
	assert.True(t, dqerr.IsInvalidInput(err))
}

func TestEmbedder_Name(t *testing.T) {
	e := newEmbedder(t, "http://127.0.0.1:1")
	assert.Equal(t, "openai/text-embedding-ada-002", e.Name())
}

func TestEmbedder_EmbedsInOrderAcrossBatches(t *testing.T) {
	srv, calls := fakeEmbeddingsServer(t, 0, 0)
	e := newEmbedder(t, srv.URL)

	vecs, err := e.Embed(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)

	assert.Equal(t, [][]float32{{1, 0}, {2, 1}, {3, 0}}, vecs)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbedder_RetriesServerErrors(t *testing.T) {
	srv, calls := fakeEmbeddingsServer(t, 1, http.StatusServiceUnavailable)
	e := newEmbedder(t, srv.URL)

	vecs, err := e.Embed(context.Background(), []string{"abcd"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{4, 0}}, vecs)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbedder_ClientErrorsAreNotRetried(t *testing.T) {
	srv, calls := fakeEmbeddingsServer(t, 10, http.StatusUnauthorized)
	e := newEmbedder(t, srv.URL)

	_, err := e.Embed(context.Background(), []string{"abcd"})
	require.Error(t, err)
	assert.True(t, dqerr.IsUpstreamFailure(err))
	assert.Equal(t, int32(1), calls.Load())
}
