// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package document loads uploaded files into plain text.
package document

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	dqerr "github.com/sigil-dev/docquery/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Supported file extensions, lower case.
const (
	ExtText = ".txt"
	ExtDocx = ".docx"
)

// Metadata keys attached to every loaded document.
const (
	MetaFileName = "file_name"
	MetaFilePath = "file_path"
	MetaFileSize = "file_size"
	MetaFileType = "file_type"
)

// Document is the extracted text of one file.
type Document struct {
	ID       string
	FileName string
	Path     string
	Text     string
	Metadata map[string]string
}

// Supported reports whether name has an extension the loader can read.
// The comparison ignores case.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ExtText, ExtDocx:
		return true
	default:
		return false
	}
}

// Loader reads every supported file in a directory.
type Loader struct {
	// Concurrency bounds parallel file reads. Zero means 4.
	Concurrency int
}

// LoadDir reads the regular files directly inside dir, sorted by name.
// Hidden files and unsupported extensions are skipped. A directory with no
// readable documents is an error.
func (l Loader) LoadDir(ctx context.Context, dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, dqerr.Wrapf(err, dqerr.CodeDocumentLoadFailure, "reading directory %s", dir)
	}

	var paths []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") || !Supported(name) {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, dqerr.Errorf(dqerr.CodeDocumentDirectoryEmpty, "no .txt or .docx documents found in %s", dir)
	}

	limit := l.Concurrency
	if limit <= 0 {
		limit = 4
	}

	docs := make([]Document, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range paths {
		g.Go(func() error {
			doc, err := LoadFile(gctx, path)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return docs, nil
}

// LoadFile reads a single .txt or .docx file.
func LoadFile(ctx context.Context, path string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return Document{}, dqerr.Wrapf(err, dqerr.CodeDocumentLoadFailure, "stat %s", path)
	}

	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(name))

	var text string
	switch ext {
	case ExtText:
		text, err = readText(path)
	case ExtDocx:
		text, err = readDocx(path)
	default:
		return Document{}, dqerr.Errorf(dqerr.CodeDocumentParseFailure, "unsupported file type %q", ext)
	}
	if err != nil {
		return Document{}, err
	}

	return Document{
		ID:       uuid.NewString(),
		FileName: name,
		Path:     path,
		Text:     text,
		Metadata: map[string]string{
			MetaFileName: name,
			MetaFilePath: path,
			MetaFileSize: formatSize(info.Size()),
			MetaFileType: ext,
		},
	}, nil
}

func readText(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", dqerr.Wrapf(err, dqerr.CodeDocumentLoadFailure, "reading %s", path)
	}
	raw = trimBOM(raw)
	if !utf8.Valid(raw) {
		return strings.ToValidUTF8(string(raw), "�"), nil
	}
	return string(raw), nil
}

func trimBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}
