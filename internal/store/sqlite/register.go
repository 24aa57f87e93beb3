// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import "github.com/sigil-dev/docquery/internal/store"

func init() {
	store.RegisterBackend("sqlite", func(cfg store.Config) (store.VectorStore, error) {
		return NewVectorStore(cfg.Dimensions)
	})
}
