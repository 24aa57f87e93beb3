// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

// Config controls which backend the factory builds.
type Config struct {
	Backend    string // "sqlite" or "memory"; empty means sqlite.
	Dimensions int    // Embedding dimensions; required.
}
