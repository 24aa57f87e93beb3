// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"fmt"
	"slices"
	"sync"

	dqerr "github.com/sigil-dev/docquery/pkg/errors"
)

const DefaultBackend = "sqlite"

// Factory creates a VectorStore for the given configuration.
type Factory func(cfg Config) (VectorStore, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named backend. Backend packages
// call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Backends lists the registered backend names in sorted order.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New creates a VectorStore using the configured backend.
func New(cfg Config) (VectorStore, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = DefaultBackend
	}
	if cfg.Dimensions <= 0 {
		return nil, dqerr.Errorf(dqerr.CodeStoreInvalidInput,
			"vector dimensions must be positive (got %d)", cfg.Dimensions)
	}

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, dqerr.New(dqerr.CodeStoreBackendUnsupported,
			fmt.Sprintf("unsupported storage backend: %q", backend), dqerr.FieldBackend(backend))
	}

	return factory(cfg)
}
