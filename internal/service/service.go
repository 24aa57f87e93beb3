// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package service owns the upload directory and the current index, and
// implements the upload and search operations on top of them.
package service

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sigil-dev/docquery/internal/document"
	"github.com/sigil-dev/docquery/internal/rag"
	dqerr "github.com/sigil-dev/docquery/pkg/errors"
)

// Messages returned to API clients.
const (
	MsgUnsupportedType = "Only .txt and .docx files are supported."
	MsgIndexNotReady   = "Index is not created yet. Please upload documents first."
)

// IndexBuilder builds an index over every document in a directory.
type IndexBuilder interface {
	Build(ctx context.Context, dir string) (*rag.Index, error)
}

// Config wires a Service.
type Config struct {
	UploadDir string
	Builder   IndexBuilder
	Engine    *rag.QueryEngine
}

// Service holds the current index. Uploads are serialised and each one
// swaps in a freshly built index; searches read whichever index is current.
type Service struct {
	dir     string
	builder IndexBuilder
	engine  *rag.QueryEngine

	buildMu sync.Mutex

	mu    sync.RWMutex
	index *rag.Index
}

// New creates the upload directory if needed. The service starts without
// an index.
func New(cfg Config) (*Service, error) {
	if cfg.UploadDir == "" {
		return nil, dqerr.New(dqerr.CodeServerConfigInvalid, "upload directory is required")
	}
	if cfg.Builder == nil || cfg.Engine == nil {
		return nil, dqerr.New(dqerr.CodeServerConfigInvalid, "index builder and query engine are required")
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o750); err != nil {
		return nil, dqerr.Wrapf(err, dqerr.CodeUploadStoreFailure, "creating upload directory %s", cfg.UploadDir)
	}

	return &Service{
		dir:     cfg.UploadDir,
		builder: cfg.Builder,
		engine:  cfg.Engine,
	}, nil
}

// Upload stores the document under the base name of filename and rebuilds
// the index over the whole upload directory. If the rebuild fails the
// directory is put back the way it was and the current index is kept.
func (s *Service) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	name, err := cleanName(filename)
	if err != nil {
		return "", err
	}

	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	pending, err := s.write(name, r)
	if err != nil {
		return "", err
	}

	ix, err := s.builder.Build(ctx, s.dir)
	if err != nil {
		pending.rollback()
		slog.Warn("index rebuild failed, upload rolled back", "file", name, "error", err)
		return "", dqerr.Wrap(err, dqerr.CodeUploadIndexFailure, "building index", dqerr.FieldFile(name))
	}
	pending.commit()
	s.swap(ix)

	slog.Info("document uploaded", "file", name, "documents", ix.Stats().Documents, "chunks", ix.Stats().Chunks)
	return "Document '" + name + "' uploaded and indexed successfully.", nil
}

// Rebuild indexes whatever is already in the upload directory. It is a
// no-op when the directory holds no documents.
func (s *Service) Rebuild(ctx context.Context) error {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	ix, err := s.builder.Build(ctx, s.dir)
	if err != nil {
		if dqerr.HasCode(err, dqerr.CodeDocumentDirectoryEmpty) {
			slog.Info("no documents to index", "dir", s.dir)
			return nil
		}
		return err
	}
	s.swap(ix)
	return nil
}

// Search answers query from the current index.
func (s *Service) Search(ctx context.Context, query string) (rag.Response, error) {
	if strings.TrimSpace(query) == "" {
		return rag.Response{}, dqerr.New(dqerr.CodeSearchQueryInvalid, "query must not be empty")
	}

	// The read lock covers retrieval only.
	s.mu.RLock()
	ix := s.index
	if ix == nil {
		s.mu.RUnlock()
		return rag.Response{}, dqerr.New(dqerr.CodeSearchIndexNotReady, MsgIndexNotReady)
	}
	nodes, err := s.engine.Retrieve(ctx, ix, query)
	s.mu.RUnlock()
	if err != nil {
		return rag.Response{}, err
	}

	return s.engine.Synthesize(ctx, query, nodes)
}

// Stats describes the current index. ok is false before the first upload.
func (s *Service) Stats() (stats rag.Stats, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return rag.Stats{}, false
	}
	return s.index.Stats(), true
}

// Close releases the current index.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	return err
}

func (s *Service) swap(ix *rag.Index) {
	s.mu.Lock()
	old := s.index
	s.index = ix
	s.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			slog.Warn("closing previous index", "error", err)
		}
	}
}

// pendingFile is an upload written into place whose fate depends on the
// index rebuild.
type pendingFile struct {
	name   string
	path   string
	backup string // empty when no file of that name existed
}

// commit drops the replaced file.
func (p *pendingFile) commit() {
	if p.backup == "" {
		return
	}
	if err := os.Remove(p.backup); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("removing replaced file", "file", p.name, "error", err)
	}
}

// rollback removes the upload and puts any replaced file back.
func (p *pendingFile) rollback() {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("removing rejected upload", "file", p.name, "error", err)
	}
	if p.backup == "" {
		return
	}
	if err := os.Rename(p.backup, p.path); err != nil {
		slog.Warn("restoring replaced file", "file", p.name, "error", err)
	}
}

// write copies r into the upload directory as name. The data lands in a
// hidden temp file first so a failed copy never leaves a partial document
// where the loader would read it. A file already stored under name is moved
// to a hidden backup until the upload is committed or rolled back.
func (s *Service) write(name string, r io.Reader) (*pendingFile, error) {
	p := &pendingFile{name: name, path: filepath.Join(s.dir, name)}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return nil, dqerr.Wrap(err, dqerr.CodeUploadStoreFailure, "creating upload file", dqerr.FieldFile(name))
	}
	_, err = io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, dqerr.Wrap(err, dqerr.CodeUploadStoreFailure, "writing upload file", dqerr.FieldFile(name))
	}

	backup := filepath.Join(s.dir, "."+name+".prev")
	switch err := os.Rename(p.path, backup); {
	case err == nil:
		p.backup = backup
	case !errors.Is(err, fs.ErrNotExist):
		_ = os.Remove(tmp.Name())
		return nil, dqerr.Wrap(err, dqerr.CodeUploadStoreFailure, "replacing existing file", dqerr.FieldFile(name))
	}

	if err := os.Rename(tmp.Name(), p.path); err != nil {
		_ = os.Remove(tmp.Name())
		if p.backup != "" {
			_ = os.Rename(p.backup, p.path)
		}
		return nil, dqerr.Wrap(err, dqerr.CodeUploadStoreFailure, "saving upload file", dqerr.FieldFile(name))
	}
	return p, nil
}

func cleanName(filename string) (string, error) {
	name := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	if name == "." || name == "/" || name == "" || strings.HasPrefix(name, ".") {
		return "", dqerr.New(dqerr.CodeUploadFileInvalid, "Invalid file name.", dqerr.FieldFile(filename))
	}
	if !document.Supported(name) {
		return "", dqerr.New(dqerr.CodeUploadFileInvalid, MsgUnsupportedType, dqerr.FieldFile(name))
	}
	return name, nil
}
