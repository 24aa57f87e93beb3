// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package rag

import (
	"context"
)

// DefaultTopK is how many chunks a query retrieves unless configured.
const DefaultTopK = 2

// Response is an answer and the nodes it was grounded on.
type Response struct {
	Text    string
	Sources []Node
}

// QueryEngine retrieves the nearest chunks for a query and synthesizes an
// answer from them. Retrieval and synthesis are exposed separately so a
// caller can hold a lock on the index for retrieval only.
type QueryEngine struct {
	TopK        int
	Synthesizer Synthesizer
}

func (e *QueryEngine) topK() int {
	if e.TopK <= 0 {
		return DefaultTopK
	}
	return e.TopK
}

// Retrieve returns the TopK nodes of ix nearest to query.
func (e *QueryEngine) Retrieve(ctx context.Context, ix *Index, query string) ([]Node, error) {
	return ix.Retrieve(ctx, query, e.topK())
}

// Synthesize answers query from nodes. The nodes are returned as the
// response's sources.
func (e *QueryEngine) Synthesize(ctx context.Context, query string, nodes []Node) (Response, error) {
	text, err := e.Synthesizer.Synthesize(ctx, query, nodes)
	if err != nil {
		return Response{}, err
	}
	return Response{Text: text, Sources: nodes}, nil
}

// Query runs retrieval then synthesis.
func (e *QueryEngine) Query(ctx context.Context, ix *Index, query string) (Response, error) {
	nodes, err := e.Retrieve(ctx, ix, query)
	if err != nil {
		return Response{}, err
	}
	return e.Synthesize(ctx, query, nodes)
}
