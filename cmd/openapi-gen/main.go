// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sigil-dev/docquery/internal/rag"
	"github.com/sigil-dev/docquery/internal/server"
	dqerr "github.com/sigil-dev/docquery/pkg/errors"
)

func main() {
	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := writeSpec(outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

func writeSpec(path string) error {
	spec, err := generateSpec()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return dqerr.Errorf(dqerr.CodeCLISetupFailure, "creating output dir: %w", err)
	}
	if err := os.WriteFile(path, spec, 0o644); err != nil {
		return dqerr.Errorf(dqerr.CodeCLISetupFailure, "writing spec: %w", err)
	}
	return nil
}

// generateSpec creates a server with all routes registered and extracts the
// OpenAPI spec that huma generates from the Go type annotations.
func generateSpec() ([]byte, error) {
	svc, err := server.NewServices(stubDocuments{})
	if err != nil {
		return nil, err
	}

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, svc)
	if err != nil {
		return nil, dqerr.Errorf(dqerr.CodeCLISetupFailure, "creating server: %w", err)
	}
	defer srv.Close()

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

// stubDocuments satisfies server.DocumentService for spec generation.
// Handlers are never invoked.
type stubDocuments struct{}

func (stubDocuments) Upload(context.Context, string, io.Reader) (string, error) { return "", nil }
func (stubDocuments) Search(context.Context, string) (rag.Response, error)      { return rag.Response{}, nil }
func (stubDocuments) Stats() (rag.Stats, bool)                                  { return rag.Stats{}, false }
