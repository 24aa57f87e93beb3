// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package document

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	dqerr "github.com/sigil-dev/docquery/pkg/errors"
)

const (
	docxBody = "word/document.xml"
	wordNS   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
)

// maxDocxBodyBytes caps the decompressed size of word/document.xml.
var maxDocxBodyBytes int64 = 64 << 20

// readDocx extracts the body text of an OOXML document, one line per
// paragraph. Headers, footers and comments live in other parts and are
// not read.
func readDocx(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", dqerr.Wrapf(err, dqerr.CodeDocumentParseFailure, "opening docx %s", path)
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		if f.Name != docxBody {
			continue
		}
		if f.UncompressedSize64 > uint64(maxDocxBodyBytes) {
			return "", bodyTooLarge(path)
		}
		rc, err := f.Open()
		if err != nil {
			return "", dqerr.Wrapf(err, dqerr.CodeDocumentParseFailure, "opening %s in %s", docxBody, path)
		}
		defer func() { _ = rc.Close() }()

		// The header size can lie; count what is actually inflated.
		lr := &io.LimitedReader{R: rc, N: maxDocxBodyBytes + 1}
		text, err := extractWordText(lr)
		if lr.N <= 0 {
			return "", bodyTooLarge(path)
		}
		if err != nil {
			return "", dqerr.Wrapf(err, dqerr.CodeDocumentParseFailure, "parsing %s in %s", docxBody, path)
		}
		return text, nil
	}

	return "", dqerr.Errorf(dqerr.CodeDocumentParseFailure, "%s: missing %s", path, docxBody)
}

func bodyTooLarge(path string) error {
	return dqerr.New(dqerr.CodeDocumentParseFailure,
		fmt.Sprintf("%s: %s exceeds %d bytes uncompressed", path, docxBody, maxDocxBodyBytes),
		dqerr.FieldFile(path))
}

func extractWordText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		b      strings.Builder
		line   strings.Builder
		inText bool
		runs   int
	)
	flush := func() {
		b.WriteString(strings.TrimRight(line.String(), " \t"))
		b.WriteByte('\n')
		line.Reset()
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "r":
				runs++
			case "t":
				inText = true
			case "tab":
				// Outside a run, w:tab is a tab-stop definition in w:pPr.
				if runs > 0 {
					line.WriteByte('\t')
				}
			case "br", "cr":
				line.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "r":
				runs--
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				line.Write(t)
			}
		}
	}
	if line.Len() > 0 {
		flush()
	}

	return strings.TrimRight(b.String(), "\n"), nil
}

func formatSize(n int64) string {
	return strconv.FormatInt(n, 10)
}
