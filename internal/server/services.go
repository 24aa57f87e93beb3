// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"io"

	"github.com/sigil-dev/docquery/internal/provider"
	"github.com/sigil-dev/docquery/internal/rag"
	dqerr "github.com/sigil-dev/docquery/pkg/errors"
)

// DocumentService uploads documents and answers queries over them.
type DocumentService interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
	Search(ctx context.Context, query string) (rag.Response, error)
	Stats() (rag.Stats, bool)
}

// ProviderService reports chat provider health.
type ProviderService interface {
	Statuses(ctx context.Context) []provider.ProviderStatus
}

// Services holds dependencies injected into route handlers.
// Each field is an interface so subsystems can be mocked in tests.
type Services struct {
	documents DocumentService
	providers ProviderService // optional; nil leaves providers out of /health
}

// NewServices creates a Services instance. The optional providers argument
// adds provider health to the health endpoint.
func NewServices(docs DocumentService, providers ...ProviderService) (*Services, error) {
	if docs == nil {
		return nil, dqerr.New(dqerr.CodeServerConfigInvalid, "document service is required")
	}
	if len(providers) > 1 {
		return nil, dqerr.New(dqerr.CodeServerConfigInvalid, "at most one provider service may be supplied")
	}
	s := &Services{documents: docs}
	if len(providers) > 0 && providers[0] != nil {
		s.providers = providers[0]
	}
	return s, nil
}

// Documents returns the document service.
func (s *Services) Documents() DocumentService {
	return s.documents
}

// Providers returns the provider service, or nil.
func (s *Services) Providers() ProviderService {
	return s.providers
}
