// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package provider

import (
	"context"
	"slices"
	"strings"
	"sync"

	dqerr "github.com/sigil-dev/docquery/pkg/errors"
)

// Registry manages provider registration, lookup, and routing with
// failover.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider

	defaultRef string   // "provider/model" format
	failover   []string // ordered list of "provider/model" refs
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider to the registry, replacing any provider already
// registered under name.
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, dqerr.New(
			dqerr.CodeProviderNotFound,
			"provider not found: "+name,
			dqerr.FieldProvider(name),
		)
	}
	return p, nil
}

// Names lists registered providers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len reports how many providers are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// SetDefault sets the default "provider/model" reference. Returns an error
// if the ref is malformed or its provider is not registered.
func (r *Registry) SetDefault(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkRefLocked(ref); err != nil {
		return err
	}
	r.defaultRef = ref
	return nil
}

// Default returns the default "provider/model" reference.
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultRef
}

// SetFailover sets the ordered failover chain of "provider/model" refs.
// Returns an error if any ref is malformed or names an unregistered provider.
func (r *Registry) SetFailover(chain []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ref := range chain {
		if err := r.checkRefLocked(ref); err != nil {
			return err
		}
	}
	r.failover = slices.Clone(chain)
	return nil
}

// MaxAttempts returns 1 (primary) + len(failover chain) so callers cap
// their retry count to the number of configured candidates.
func (r *Registry) MaxAttempts() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return 1 + len(r.failover)
}

// Route selects a provider for modelName, or for the default ref when
// modelName is empty or "default". Candidates whose provider is in exclude
// (already tried in the current failover sequence) or is unavailable are
// skipped in favour of the failover chain.
func (r *Registry) Route(ctx context.Context, modelName string, exclude []string) (Provider, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref, err := r.resolveRef(modelName)
	if err != nil {
		return nil, "", err
	}
	if ref == "" {
		return nil, "", dqerr.New(dqerr.CodeProviderNoDefault, "no default provider configured")
	}

	for _, candidate := range append([]string{ref}, r.failover...) {
		name, _ := parseRef(candidate)
		if slices.Contains(exclude, name) {
			continue
		}
		if p, model, err := r.tryRef(ctx, candidate); err == nil {
			return p, model, nil
		}
	}

	return nil, "", dqerr.New(
		dqerr.CodeProviderAllUnavailable,
		"all providers unavailable: no healthy provider found",
	)
}

// Statuses reports the status of every registered provider, sorted by name.
func (r *Registry) Statuses(ctx context.Context) []ProviderStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderStatus, 0, len(r.providers))
	for name, p := range r.providers {
		st, err := p.Status(ctx)
		if err != nil {
			st = ProviderStatus{Provider: name, Message: err.Error()}
		}
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b ProviderStatus) int { return strings.Compare(a.Provider, b.Provider) })
	return out
}

// Close shuts down all registered providers.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, p := range r.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return dqerr.Join(errs...)
	}
	return nil
}

// resolveRef determines which "provider/model" ref to use.
// Caller must hold r.mu (at least RLock).
func (r *Registry) resolveRef(modelName string) (string, error) {
	if modelName != "" && modelName != "default" {
		if !strings.Contains(modelName, "/") {
			return "", dqerr.Errorf(
				dqerr.CodeProviderInvalidModelRef,
				"model name %q must use provider/model format", modelName,
			)
		}
		return modelName, nil
	}
	return r.defaultRef, nil
}

// checkRefLocked validates ref against the registered providers.
// Caller must hold r.mu.
func (r *Registry) checkRefLocked(ref string) error {
	name, model := parseRef(ref)
	if name == "" || model == "" {
		return dqerr.Errorf(dqerr.CodeProviderInvalidModelRef,
			"model ref %q must use provider/model format", ref)
	}
	if _, ok := r.providers[name]; !ok {
		return dqerr.New(
			dqerr.CodeProviderNotFound,
			"provider not registered: "+name,
			dqerr.FieldProvider(name),
		)
	}
	return nil
}

// tryRef parses a "provider/model" ref, looks up the provider, and checks
// availability. Caller must hold r.mu (at least RLock).
func (r *Registry) tryRef(ctx context.Context, ref string) (Provider, string, error) {
	providerName, model := parseRef(ref)

	p, ok := r.providers[providerName]
	if !ok {
		return nil, "", dqerr.New(
			dqerr.CodeProviderNotFound,
			"provider not found: "+providerName,
			dqerr.FieldProvider(providerName),
		)
	}

	if !p.Available(ctx) {
		return nil, "", dqerr.New(
			dqerr.CodeProviderUpstreamFailure,
			"provider unavailable: "+providerName,
			dqerr.FieldProvider(providerName),
		)
	}

	return p, model, nil
}

// parseRef splits a "provider/model" reference on the first "/".
func parseRef(ref string) (providerName, model string) {
	providerName, model, _ = strings.Cut(ref, "/")
	return providerName, model
}
