// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package google_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sigil-dev/docquery/internal/embedding"
	"github.com/sigil-dev/docquery/internal/embedding/google"
	dqerr "github.com/sigil-dev/docquery/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type batchRequest struct {
	Requests []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"requests"`
}

type fakeServer struct {
	failFirst int32
	status    int
	drop      bool // answer with one vector fewer than requested
}

// start answers batchEmbedContents with vectors of [len(text), position].
func (f fakeServer) start(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if n <= f.failFirst {
			w.WriteHeader(f.status)
			_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"try again","status":"UNAVAILABLE"}}`, f.status)
			return
		}

		var req batchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		embeddings := make([]map[string]any, 0, len(req.Requests))
		for i, item := range req.Requests {
			text := ""
			if len(item.Content.Parts) > 0 {
				text = item.Content.Parts[0].Text
			}
			embeddings = append(embeddings, map[string]any{
				"values": []float32{float32(len(text)), float32(i)},
			})
		}
		if f.drop && len(embeddings) > 0 {
			embeddings = embeddings[:len(embeddings)-1]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newEmbedder(t *testing.T, baseURL string) *google.Embedder {
	t.Helper()
	e, err := google.New(context.Background(), google.Config{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Batch:   embedding.BatchOptions{Size: 2, Concurrency: 2, MaxRetries: 2, Backoff: time.Millisecond},
	})
	require.NoError(t, err)
	return e
}

func TestNew_MissingAPIKey(t *testing.T) {
	_, err := google.New(context.Background(), google.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
	assert.True(t, dqerr.IsInvalidInput(err))
}

func TestEmbedder_Name(t *testing.T) {
	e := newEmbedder(t, "http://127.0.0.1:1")
	assert.Equal(t, "google/text-embedding-004", e.Name())
}

func TestEmbedder_EmbedsInOrderAcrossBatches(t *testing.T) {
	srv, calls := fakeServer{}.start(t)
	e := newEmbedder(t, srv.URL)

	vecs, err := e.Embed(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)

	assert.Equal(t, [][]float32{{1, 0}, {2, 1}, {3, 0}}, vecs)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbedder_CountMismatch(t *testing.T) {
	srv, calls := fakeServer{drop: true}.start(t)
	e := newEmbedder(t, srv.URL)

	_, err := e.Embed(context.Background(), []string{"a", "bb"})
	require.Error(t, err)
	assert.True(t, dqerr.HasCode(err, dqerr.CodeEmbeddingResponseInvalid))
	assert.Contains(t, err.Error(), "expected 2 vectors, got 1")
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmbedder_RetriesServerErrors(t *testing.T) {
	srv, calls := fakeServer{failFirst: 1, status: http.StatusServiceUnavailable}.start(t)
	e := newEmbedder(t, srv.URL)

	vecs, err := e.Embed(context.Background(), []string{"abcd"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{4, 0}}, vecs)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestEmbedder_ClientErrorsAreNotRetried(t *testing.T) {
	srv, calls := fakeServer{failFirst: 10, status: http.StatusUnauthorized}.start(t)
	e := newEmbedder(t, srv.URL)

	_, err := e.Embed(context.Background(), []string{"abcd"})
	require.Error(t, err)
	assert.True(t, dqerr.IsUpstreamFailure(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", genai.APIError{Code: http.StatusTooManyRequests}, true},
		{"server error", genai.APIError{Code: http.StatusServiceUnavailable}, true},
		{"bad key", genai.APIError{Code: http.StatusUnauthorized}, false},
		{"unknown model", &genai.APIError{Code: http.StatusNotFound}, false},
		{"wrapped bad request", fmt.Errorf("embed: %w", genai.APIError{Code: http.StatusBadRequest}), false},
		{"cancelled", context.Canceled, false},
		{"deadline", fmt.Errorf("embed: %w", context.DeadlineExceeded), false},
		{"transport", errors.New("connection reset by peer"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, google.Transient(tt.err))
		})
	}
}
