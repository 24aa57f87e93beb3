// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sigil-dev/docquery/internal/document"
	"github.com/sigil-dev/docquery/internal/provider"
	"github.com/sigil-dev/docquery/internal/rag"
	"github.com/sigil-dev/docquery/internal/service"
	dqerr "github.com/sigil-dev/docquery/pkg/errors"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, s.handleHealth)

	huma.Register(s.api, huma.Operation{
		OperationID: "search",
		Method:      http.MethodPost,
		Path:        "/search/",
		Summary:     "Ask a question about the uploaded documents",
		Tags:        []string{"documents"},
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, s.handleSearch)
}

// --- Request/Response types for huma ---

// HealthBody is the JSON body of the health endpoint response.
type HealthBody struct {
	Status     string                    `json:"status" example:"ok" doc:"Health status"`
	IndexReady bool                      `json:"index_ready" doc:"Whether a document index has been built"`
	Documents  int                       `json:"documents" doc:"Documents in the current index"`
	Chunks     int                       `json:"chunks" doc:"Chunks in the current index"`
	Providers  []provider.ProviderStatus `json:"providers,omitempty" doc:"Chat provider health"`
}

// HealthResponse wraps the health check response.
type HealthResponse struct {
	Body HealthBody
}

type searchInput struct {
	Body struct {
		Query string `json:"query" minLength:"1" doc:"Question to answer from the uploaded documents"`
	}
}

// Source is a retrieved chunk returned alongside an answer.
type Source struct {
	FileName string  `json:"file_name" doc:"Document the chunk came from"`
	Text     string  `json:"text" doc:"Chunk text"`
	Score    float64 `json:"score" doc:"Euclidean distance from the query, lower is closer"`
}

type searchOutput struct {
	Body struct {
		Response string   `json:"response" doc:"Answer synthesized from the retrieved chunks"`
		Sources  []Source `json:"sources" doc:"Chunks the answer was grounded on"`
	}
}

// --- Handlers ---

func (s *Server) handleHealth(ctx context.Context, _ *struct{}) (*HealthResponse, error) {
	out := &HealthResponse{Body: HealthBody{Status: "ok"}}
	if stats, ok := s.services.Documents().Stats(); ok {
		out.Body.IndexReady = true
		out.Body.Documents = stats.Documents
		out.Body.Chunks = stats.Chunks
	}
	if p := s.services.Providers(); p != nil {
		out.Body.Providers = p.Statuses(ctx)
	}
	return out, nil
}

func (s *Server) handleSearch(ctx context.Context, input *searchInput) (*searchOutput, error) {
	resp, err := s.services.Documents().Search(ctx, input.Body.Query)
	if err != nil {
		switch {
		case dqerr.HasCode(err, dqerr.CodeSearchIndexNotReady):
			return nil, huma.NewError(http.StatusBadRequest, service.MsgIndexNotReady)
		case dqerr.HasCode(err, dqerr.CodeSearchQueryInvalid):
			return nil, huma.NewError(http.StatusBadRequest, err.Error())
		}
		slog.Error("search failed", "error", err)
		return nil, huma.NewError(http.StatusInternalServerError, "Error during search: "+err.Error())
	}

	out := &searchOutput{}
	out.Body.Response = resp.Text
	out.Body.Sources = sources(resp.Sources)
	return out, nil
}

func sources(nodes []rag.Node) []Source {
	out := make([]Source, len(nodes))
	for i, n := range nodes {
		name := n.Chunk.FileName
		if name == "" {
			name = n.Chunk.Metadata[document.MetaFileName]
		}
		out[i] = Source{FileName: name, Text: n.Chunk.Text, Score: n.Score}
	}
	return out
}
