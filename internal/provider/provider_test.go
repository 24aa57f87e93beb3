// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package provider_test

import (
	"context"
	"testing"
	"time"

	"github.com/sigil-dev/docquery/internal/provider"
	dqerr "github.com/sigil-dev/docquery/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stream(events ...provider.ChatEvent) <-chan provider.ChatEvent {
	ch := make(chan provider.ChatEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

func TestCollect(t *testing.T) {
	tests := []struct {
		name      string
		events    []provider.ChatEvent
		wantText  string
		wantUsage provider.Usage
		wantErr   string
	}{
		{
			name: "concatenates deltas",
			events: []provider.ChatEvent{
				{Type: provider.EventTypeTextDelta, Text: "Revenue "},
				{Type: provider.EventTypeTextDelta, Text: "grew."},
				{Type: provider.EventTypeUsage, Usage: &provider.Usage{InputTokens: 12}},
				{Type: provider.EventTypeUsage, Usage: &provider.Usage{InputTokens: 12, OutputTokens: 3}},
				{Type: provider.EventTypeDone},
			},
			wantText:  "Revenue grew.",
			wantUsage: provider.Usage{InputTokens: 12, OutputTokens: 3},
		},
		{
			name: "error event",
			events: []provider.ChatEvent{
				{Type: provider.EventTypeTextDelta, Text: "partial"},
				{Type: provider.EventTypeError, Error: "rate limited"},
			},
			wantErr: "openai: rate limited",
		},
		{
			name: "stream closed without done",
			events: []provider.ChatEvent{
				{Type: provider.EventTypeTextDelta, Text: "partial"},
			},
			wantErr: "stream ended without completion",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := provider.Collect(context.Background(), "openai", stream(tt.events...))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.True(t, dqerr.IsUpstreamFailure(err))
				assert.Equal(t, "openai", dqerr.FieldsOf(err)["provider"])
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, got.Text)
			assert.Equal(t, tt.wantUsage, got.Usage)
		})
	}
}

func TestCollect_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := provider.Collect(ctx, "openai", make(chan provider.ChatEvent))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSend_StopsWhenReaderGone(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ch := make(chan provider.ChatEvent)
	assert.False(t, provider.Send(ctx, ch, provider.ChatEvent{Type: provider.EventTypeDone}))

	buffered := make(chan provider.ChatEvent, 1)
	assert.True(t, provider.Send(context.Background(), buffered, provider.ChatEvent{Type: provider.EventTypeDone}))
}
