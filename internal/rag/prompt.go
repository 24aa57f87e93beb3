// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package rag

import (
	"strings"

	"github.com/sigil-dev/docquery/internal/document"
)

const qaTemplate = "Context information is below.\n" +
	"---------------------\n" +
	"{context}\n" +
	"---------------------\n" +
	"Given the context information and not prior knowledge, answer the query.\n" +
	"Query: {query}\n" +
	"Answer: "

// BuildPrompt renders the question-answering prompt for query over nodes.
func BuildPrompt(query string, nodes []Node) string {
	return strings.NewReplacer(
		"{context}", contextBlock(nodes),
		"{query}", query,
	).Replace(qaTemplate)
}

func contextBlock(nodes []Node) string {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		var b strings.Builder
		if name := n.Chunk.Metadata[document.MetaFileName]; name != "" {
			b.WriteString(document.MetaFileName + ": " + name + "\n\n")
		}
		b.WriteString(strings.TrimSpace(n.Chunk.Text))
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n\n")
}
