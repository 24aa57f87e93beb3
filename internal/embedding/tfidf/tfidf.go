// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package tfidf is an offline embedder: a TF-IDF vectoriser fitted on the
// indexed corpus. It needs no credentials and is deterministic, which makes
// it the embedder of choice for local runs and tests.
package tfidf

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/sigil-dev/docquery/internal/embedding"
	dqerr "github.com/sigil-dev/docquery/pkg/errors"
)

const name = "tfidf"

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`)

// Vectorizer is an unfitted TF-IDF embedder. Fit it on a corpus to obtain a
// usable Model.
type Vectorizer struct {
	stopwords map[string]struct{}
}

var (
	_ embedding.Embedder = (*Vectorizer)(nil)
	_ embedding.Fitter   = (*Vectorizer)(nil)
	_ embedding.Embedder = (*Model)(nil)
)

func New() *Vectorizer {
	return &Vectorizer{stopwords: englishStopwords()}
}

func (v *Vectorizer) Name() string { return name }

// Embed fails: a Vectorizer has no vocabulary until it is fitted.
func (v *Vectorizer) Embed(context.Context, []string) ([][]float32, error) {
	return nil, dqerr.New(dqerr.CodeEmbeddingRequestInvalid, "tfidf: vectorizer must be fitted before embedding")
}

// Fit builds the vocabulary and smoothed inverse document frequencies.
func (v *Vectorizer) Fit(corpus []string) (embedding.Embedder, error) {
	if len(corpus) == 0 {
		return nil, dqerr.New(dqerr.CodeEmbeddingRequestInvalid, "tfidf: empty corpus")
	}

	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range v.tokenize(text) {
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	if len(df) == 0 {
		return nil, dqerr.New(dqerr.CodeEmbeddingRequestInvalid, "tfidf: corpus has no indexable terms")
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	m := &Model{
		vectorizer: v,
		vocab:      make(map[string]int, len(terms)),
		idf:        make([]float64, len(terms)),
	}
	n := float64(len(corpus))
	for i, term := range terms {
		m.vocab[term] = i
		m.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return m, nil
}

func (v *Vectorizer) tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, tok := range raw {
		if _, stop := v.stopwords[tok]; !stop {
			out = append(out, tok)
		}
	}
	return out
}

// Model is a fitted TF-IDF embedder. It is immutable and safe for
// concurrent use.
type Model struct {
	vectorizer *Vectorizer
	vocab      map[string]int
	idf        []float64
}

func (m *Model) Name() string { return name }

// Dimensions is the vocabulary size.
func (m *Model) Dimensions() int { return len(m.idf) }

// Embed returns L2-normalised TF-IDF vectors. Text with no known terms maps
// to the zero vector.
func (m *Model) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = m.vector(text)
	}
	return out, nil
}

func (m *Model) vector(text string) []float32 {
	vec := make([]float32, len(m.idf))

	counts := make(map[int]int)
	total := 0
	for _, tok := range m.vectorizer.tokenize(text) {
		if idx, ok := m.vocab[tok]; ok {
			counts[idx]++
			total++
		}
	}
	if total == 0 {
		return vec
	}

	weights := make(map[int]float64, len(counts))
	var norm float64
	for idx, c := range counts {
		w := float64(c) / float64(total) * m.idf[idx]
		weights[idx] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for idx, w := range weights {
		vec[idx] = float32(w / norm)
	}
	return vec
}

func englishStopwords() map[string]struct{} {
	words := strings.Fields(`a an the and or but if then else for to of in on at by with as is are was
		were be been being it its this that these those from up down over under again further than so
		such into about between through during before after above below out off own same too very can
		will just don should now do does did has have had not no nor i you he she we they them our your`)
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
