// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package chunker splits documents into overlapping sentence-aligned chunks.
package chunker

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/sigil-dev/docquery/internal/document"
	dqerr "github.com/sigil-dev/docquery/pkg/errors"
)

const (
	DefaultChunkSize    = 1024
	DefaultChunkOverlap = 200
)

// sentenceEnd matches terminal punctuation (with closing quotes or brackets)
// followed by whitespace, or a blank line.
var sentenceEnd = regexp.MustCompile(`[.!?]+["'’”)\]]*\s+|\n\s*\n`)

// Chunk is one retrievable piece of a document.
type Chunk struct {
	ID         string
	DocumentID string
	FileName   string
	Index      int
	Text       string
	Metadata   map[string]string
}

// SentenceSplitter packs whole sentences into chunks of at most ChunkSize
// words. Consecutive chunks share up to ChunkOverlap words of trailing
// sentences.
type SentenceSplitter struct {
	chunkSize    int
	chunkOverlap int
}

func New(chunkSize, chunkOverlap int) (*SentenceSplitter, error) {
	if chunkSize <= 0 {
		return nil, dqerr.Errorf(dqerr.CodeConfigValidateInvalidValue, "chunk size must be greater than 0, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, dqerr.Errorf(dqerr.CodeConfigValidateInvalidValue,
			"chunk overlap must be in [0, %d), got %d", chunkSize, chunkOverlap)
	}
	return &SentenceSplitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// SplitAll chunks every document, preserving document order.
func (s *SentenceSplitter) SplitAll(docs []document.Document) []Chunk {
	var out []Chunk
	for _, doc := range docs {
		out = append(out, s.Split(doc)...)
	}
	return out
}

// Split chunks a single document. Whitespace-only documents yield nothing.
func (s *SentenceSplitter) Split(doc document.Document) []Chunk {
	texts := s.SplitText(doc.Text)
	chunks := make([]Chunk, len(texts))
	for i, text := range texts {
		meta := make(map[string]string, len(doc.Metadata))
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		chunks[i] = Chunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			FileName:   doc.FileName,
			Index:      i,
			Text:       text,
			Metadata:   meta,
		}
	}
	return chunks
}

type sentence struct {
	text  string
	words int
}

// SplitText returns the chunk texts for text.
func (s *SentenceSplitter) SplitText(text string) []string {
	var (
		chunks []string
		cur    []sentence
		curLen int
	)

	emit := func() {
		parts := make([]string, len(cur))
		for i, sn := range cur {
			parts[i] = sn.text
		}
		chunks = append(chunks, strings.Join(parts, " "))
	}

	for _, sn := range s.sentences(text) {
		if curLen+sn.words > s.chunkSize && len(cur) > 0 {
			emit()
			cur, curLen = s.carryOver(cur)
			for len(cur) > 0 && curLen+sn.words > s.chunkSize {
				curLen -= cur[0].words
				cur = cur[1:]
			}
		}
		cur = append(cur, sn)
		curLen += sn.words
	}
	if len(cur) > 0 {
		emit()
	}

	return chunks
}

// carryOver keeps the trailing sentences of a finished chunk that fit in the
// overlap budget.
func (s *SentenceSplitter) carryOver(prev []sentence) ([]sentence, int) {
	n := 0
	start := len(prev)
	for start > 0 && n+prev[start-1].words <= s.chunkOverlap {
		start--
		n += prev[start].words
	}
	kept := make([]sentence, len(prev)-start)
	copy(kept, prev[start:])
	return kept, n
}

// sentences splits text into sentences and cuts any sentence longer than the
// chunk size on word boundaries.
func (s *SentenceSplitter) sentences(text string) []sentence {
	var out []sentence
	for _, raw := range SplitSentences(text) {
		words := strings.Fields(raw)
		for len(words) > s.chunkSize {
			out = append(out, sentence{text: strings.Join(words[:s.chunkSize], " "), words: s.chunkSize})
			words = words[s.chunkSize:]
		}
		if len(words) > 0 {
			out = append(out, sentence{text: strings.Join(words, " "), words: len(words)})
		}
	}
	return out
}

// SplitSentences breaks text on sentence punctuation and blank lines.
func SplitSentences(text string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if sn := strings.TrimSpace(text[start:loc[1]]); sn != "" {
			out = append(out, sn)
		}
		start = loc[1]
	}
	if sn := strings.TrimSpace(text[start:]); sn != "" {
		out = append(out, sn)
	}
	return out
}
