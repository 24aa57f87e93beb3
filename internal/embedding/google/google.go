// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package google

import (
	"context"
	"errors"
	"net/http"

	"github.com/sigil-dev/docquery/internal/embedding"
	dqerr "github.com/sigil-dev/docquery/pkg/errors"
	"google.golang.org/genai"
)

const DefaultModel = "text-embedding-004"

// Config holds Gemini embedding configuration.
type Config struct {
	APIKey     string
	BaseURL    string // optional, overrides the Gemini API endpoint
	Model      string
	Dimensions int
	Batch      embedding.BatchOptions
}

// Embedder calls the Gemini EmbedContent API.
type Embedder struct {
	client *genai.Client
	config Config
}

var _ embedding.Embedder = (*Embedder)(nil)

func New(ctx context.Context, cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, dqerr.New(dqerr.CodeConfigValidateInvalidValue,
			"google embeddings: missing api_key in config", dqerr.FieldProvider("google"))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Batch.Size <= 0 {
		cfg.Batch = embedding.DefaultBatchOptions()
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, dqerr.Wrapf(err, dqerr.CodeEmbeddingUpstreamFailure, "google embeddings: creating client")
	}

	return &Embedder{client: client, config: cfg}, nil
}

func (e *Embedder) Name() string { return "google/" + e.config.Model }

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return embedding.EmbedBatched(ctx, texts, e.config.Batch, e.embedBatch)
}

func (e *Embedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(batch))
	for i, text := range batch {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	var cfg *genai.EmbedContentConfig
	if e.config.Dimensions > 0 {
		dims := int32(e.config.Dimensions)
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &dims}
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.config.Model, contents, cfg)
	if err != nil {
		wrapped := dqerr.Wrapf(err, dqerr.CodeEmbeddingUpstreamFailure, "google embeddings (%s)", e.config.Model)
		if transient(err) {
			return nil, embedding.Retryable(wrapped)
		}
		return nil, wrapped
	}

	if len(resp.Embeddings) != len(batch) {
		return nil, dqerr.Errorf(dqerr.CodeEmbeddingResponseInvalid,
			"google embeddings: expected %d vectors, got %d", len(batch), len(resp.Embeddings))
	}

	out := make([][]float32, len(batch))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, dqerr.Errorf(dqerr.CodeEmbeddingResponseInvalid, "google embeddings: empty vector %d", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}

// transient reports whether a failed request is worth retrying: rate
// limits, server errors and transport failures.
func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return retryableStatus(apiErrPtr.Code)
	}
	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
