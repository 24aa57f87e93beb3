// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package rag

import (
	"context"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/sigil-dev/docquery/internal/chunker"
	"github.com/sigil-dev/docquery/internal/provider"
	dqerr "github.com/sigil-dev/docquery/pkg/errors"
)

// EmptyResponse is returned when retrieval finds nothing to answer from.
const EmptyResponse = "Empty Response"

// DefaultSystemPrompt frames the model as a document assistant.
const DefaultSystemPrompt = "You answer questions about the user's uploaded documents. " +
	"Use only the context provided in the message. If the context does not contain the answer, say so."

// Synthesizer turns a query and its retrieved nodes into an answer.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, query string, nodes []Node) (string, error)
}

// LLMSynthesizer asks a chat model to answer from the retrieved context,
// walking the registry's failover chain when a provider fails.
type LLMSynthesizer struct {
	Registry *provider.Registry
	Model    string // "provider/model"; empty uses the registry default
	Options  provider.ChatOptions
	// SystemPrompt overrides DefaultSystemPrompt when set.
	SystemPrompt string
}

var _ Synthesizer = (*LLMSynthesizer)(nil)

func (s *LLMSynthesizer) Name() string { return "llm" }

func (s *LLMSynthesizer) Synthesize(ctx context.Context, query string, nodes []Node) (string, error) {
	if len(nodes) == 0 {
		return EmptyResponse, nil
	}

	system := s.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}
	req := provider.ChatRequest{
		Messages:     []provider.Message{{Role: provider.MessageRoleUser, Content: BuildPrompt(query, nodes)}},
		SystemPrompt: system,
		Options:      s.Options,
	}

	var (
		tried   []string
		lastErr error
	)
	for range s.Registry.MaxAttempts() {
		p, model, err := s.Registry.Route(ctx, s.Model, tried)
		if err != nil {
			if lastErr != nil {
				return "", lastErr
			}
			return "", err
		}
		tried = append(tried, p.Name())
		req.Model = model

		text, err := complete(ctx, p, req)
		if err == nil {
			slog.Debug("answer synthesized", "provider", p.Name(), "model", model)
			return text, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
		slog.Warn("provider failed, trying next candidate",
			"provider", p.Name(), "model", model, "error", err)
		lastErr = err
	}
	return "", lastErr
}

func complete(ctx context.Context, p provider.Provider, req provider.ChatRequest) (string, error) {
	events, err := p.Chat(ctx, req)
	if err != nil {
		return "", dqerr.Wrapf(err, dqerr.CodeProviderUpstreamFailure, "chat call to %s", p.Name())
	}
	completion, err := provider.Collect(ctx, p.Name(), events)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(completion.Text)
	if text == "" {
		return EmptyResponse, nil
	}
	return text, nil
}

// ExtractiveSynthesizer answers without a model: it returns the retrieved
// sentences that share the most terms with the query, in document order.
type ExtractiveSynthesizer struct {
	// MaxSentences caps the answer length. Zero means 3.
	MaxSentences int
}

var _ Synthesizer = ExtractiveSynthesizer{}

var termPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

func (ExtractiveSynthesizer) Name() string { return "extractive" }

func (e ExtractiveSynthesizer) Synthesize(ctx context.Context, query string, nodes []Node) (string, error) {
	if len(nodes) == 0 {
		return EmptyResponse, nil
	}
	limit := e.MaxSentences
	if limit <= 0 {
		limit = 3
	}

	terms := queryTerms(query)

	type scored struct {
		text  string
		score int
		order int
	}
	var candidates []scored
	seen := make(map[string]struct{})
	for _, n := range nodes {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		for _, sn := range chunker.SplitSentences(n.Chunk.Text) {
			if _, dup := seen[sn]; dup {
				continue
			}
			seen[sn] = struct{}{}
			candidates = append(candidates, scored{text: sn, score: overlap(sn, terms), order: len(candidates)})
		}
	}
	if len(candidates) == 0 {
		return EmptyResponse, nil
	}

	ranked := slices.Clone(candidates)
	slices.SortStableFunc(ranked, func(a, b scored) int { return b.score - a.score })
	if ranked[0].score == 0 {
		// Nothing overlaps; the nearest chunk's opening is the best guess.
		return candidates[0].text, nil
	}

	var picked []scored
	for _, c := range ranked {
		if c.score == 0 || len(picked) == limit {
			break
		}
		picked = append(picked, c)
	}
	slices.SortFunc(picked, func(a, b scored) int { return a.order - b.order })

	out := make([]string, len(picked))
	for i, c := range picked {
		out[i] = c.text
	}
	return strings.Join(out, " "), nil
}

func queryTerms(query string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, t := range termPattern.FindAllString(strings.ToLower(query), -1) {
		if len(t) > 2 && !isStopword(t) {
			terms[t] = struct{}{}
		}
	}
	return terms
}

func overlap(sentence string, terms map[string]struct{}) int {
	n := 0
	for _, t := range termPattern.FindAllString(strings.ToLower(sentence), -1) {
		if _, ok := terms[t]; ok {
			n++
		}
	}
	return n
}

func isStopword(t string) bool {
	switch t {
	case "the", "and", "what", "which", "who", "how", "why", "when", "where", "does", "did",
		"was", "were", "are", "for", "with", "that", "this", "from", "about", "into", "have", "has":
		return true
	}
	return false
}
