// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package provider_test

import (
	"context"
	"testing"

	"github.com/sigil-dev/docquery/internal/provider"
	"github.com/stretchr/testify/require"
)

// mockProvider is a reusable provider.Provider for registry tests.
type mockProvider struct {
	name      string
	available bool
	closeErr  error
	closed    bool
}

func newMockProvider(name string, available bool) *mockProvider {
	return &mockProvider{name: name, available: available}
}

func (m *mockProvider) Name() string                       { return m.name }
func (m *mockProvider) Available(_ context.Context) bool { return m.available }

func (m *mockProvider) Chat(_ context.Context, _ provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	ch := make(chan provider.ChatEvent, 3)
	ch <- provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: "hello"}
	ch <- provider.ChatEvent{Type: provider.EventTypeUsage, Usage: &provider.Usage{InputTokens: 10, OutputTokens: 5}}
	ch <- provider.ChatEvent{Type: provider.EventTypeDone}
	close(ch)
	return ch, nil
}

func (m *mockProvider) Status(_ context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{Available: m.available, Provider: m.name, Message: "ok"}, nil
}

func (m *mockProvider) Close() error {
	m.closed = true
	return m.closeErr
}

// mockProviderWithHealth routes availability through a real HealthTracker.
type mockProviderWithHealth struct {
	*mockProvider
	tracker *provider.HealthTracker
}

func newMockProviderWithHealth(t *testing.T, name string) *mockProviderWithHealth {
	t.Helper()
	tracker, err := provider.NewHealthTracker(provider.DefaultHealthCooldown)
	require.NoError(t, err)
	return &mockProviderWithHealth{mockProvider: newMockProvider(name, true), tracker: tracker}
}

func (m *mockProviderWithHealth) Available(_ context.Context) bool { return m.tracker.IsHealthy() }
func (m *mockProviderWithHealth) RecordFailure()                   { m.tracker.RecordFailure() }
func (m *mockProviderWithHealth) RecordSuccess()                   { m.tracker.RecordSuccess() }
