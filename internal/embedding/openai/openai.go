// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package openai

import (
	"context"
	"errors"
	"net/http"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/sigil-dev/docquery/internal/embedding"
	dqerr "github.com/sigil-dev/docquery/pkg/errors"
)

// DefaultModel matches the 1536-dimension model the service has always used.
const DefaultModel = "text-embedding-ada-002"

// Config holds OpenAI embedding configuration.
type Config struct {
	APIKey     string
	BaseURL    string // optional, useful for testing against a mock server
	Model      string
	Dimensions int // zero keeps the model's native size
	Batch      embedding.BatchOptions
}

// Embedder calls the OpenAI embeddings endpoint.
type Embedder struct {
	client openaisdk.Client
	config Config
}

var _ embedding.Embedder = (*Embedder)(nil)

func New(cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, dqerr.New(dqerr.CodeConfigValidateInvalidValue,
			"openai embeddings: missing api_key in config", dqerr.FieldProvider("openai"))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Batch.Size <= 0 {
		cfg.Batch = embedding.DefaultBatchOptions()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Embedder{client: openaisdk.NewClient(opts...), config: cfg}, nil
}

func (e *Embedder) Name() string { return "openai/" + e.config.Model }

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return embedding.EmbedBatched(ctx, texts, e.config.Batch, e.embedBatch)
}

func (e *Embedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	params := openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch},
		Model: openaisdk.EmbeddingModel(e.config.Model),
	}
	if e.config.Dimensions > 0 {
		params.Dimensions = param.NewOpt(int64(e.config.Dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		wrapped := dqerr.Wrapf(err, dqerr.CodeEmbeddingUpstreamFailure, "openai embeddings (%s)", e.config.Model)
		if transient(err) {
			return nil, embedding.Retryable(wrapped)
		}
		return nil, wrapped
	}

	out := make([][]float32, len(batch))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, dqerr.Errorf(dqerr.CodeEmbeddingResponseInvalid,
				"openai embeddings: index %d out of range for batch of %d", d.Index, len(batch))
		}
		out[d.Index] = embedding.ToFloat32(d.Embedding)
	}
	for i, v := range out {
		if v == nil {
			return nil, dqerr.Errorf(dqerr.CodeEmbeddingResponseInvalid, "openai embeddings: missing vector %d", i)
		}
	}
	return out, nil
}

// transient reports whether a failed request is worth retrying: rate
// limits, server errors and transport failures.
func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}
