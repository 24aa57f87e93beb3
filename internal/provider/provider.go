// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package provider is the chat model layer used to synthesize answers.
package provider

import (
	"context"
	"strings"

	dqerr "github.com/sigil-dev/docquery/pkg/errors"
	"github.com/sigil-dev/docquery/pkg/health"
)

// Provider is the core interface for LLM providers.
type Provider interface {
	Name() string
	Available(ctx context.Context) bool
	Chat(ctx context.Context, req ChatRequest) (<-chan ChatEvent, error)
	Status(ctx context.Context) (ProviderStatus, error)
	Close() error
}

// HealthReporter is implemented by providers that track their own health.
// Callers report the outcome of a completed stream so routing can skip a
// provider during its cooldown.
type HealthReporter interface {
	RecordFailure()
	RecordSuccess()
	HealthMetrics() health.Metrics
}

// ChatRequest represents a request to the LLM.
type ChatRequest struct {
	Model        string
	Messages     []Message
	SystemPrompt string
	Options      ChatOptions
}

// ChatOptions contains model configuration.
type ChatOptions struct {
	Temperature   *float32
	MaxTokens     int
	StopSequences []string
}

// Message represents a conversation message.
type Message struct {
	Role    MessageRole
	Content string
}

// MessageRole defines the role of a message sender.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// ChatEvent is a streaming response event.
type ChatEvent struct {
	Type  EventType
	Text  string
	Usage *Usage
	Error string
}

// EventType defines the type of chat event.
type EventType string

const (
	EventTypeTextDelta EventType = "text_delta"
	EventTypeUsage     EventType = "usage"
	EventTypeDone      EventType = "done"
	EventTypeError     EventType = "error"
)

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// ProviderStatus indicates provider health.
type ProviderStatus struct {
	Available bool            `json:"available"`
	Provider  string          `json:"provider"`
	Message   string          `json:"message"`
	Health    *health.Metrics `json:"health,omitempty"`
}

// Send delivers ev unless ctx is cancelled first. Adapters use it so a
// stream goroutine never blocks on a reader that has gone away.
func Send(ctx context.Context, ch chan<- ChatEvent, ev ChatEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Completion is the drained form of a chat stream.
type Completion struct {
	Text  string
	Usage Usage
}

// Collect drains a chat stream into a single completion. An error event, or
// a stream that closes without a done event, is reported as an upstream
// failure of the named provider.
func Collect(ctx context.Context, providerName string, events <-chan ChatEvent) (Completion, error) {
	var (
		b    strings.Builder
		out  Completion
		done bool
	)
	for {
		select {
		case <-ctx.Done():
			return Completion{}, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				if !done {
					return Completion{}, dqerr.New(dqerr.CodeProviderUpstreamFailure,
						providerName+": stream ended without completion", dqerr.FieldProvider(providerName))
				}
				out.Text = b.String()
				return out, nil
			}
			switch ev.Type {
			case EventTypeTextDelta:
				b.WriteString(ev.Text)
			case EventTypeUsage:
				if ev.Usage != nil {
					out.Usage.InputTokens = max(out.Usage.InputTokens, ev.Usage.InputTokens)
					out.Usage.OutputTokens = max(out.Usage.OutputTokens, ev.Usage.OutputTokens)
				}
			case EventTypeError:
				return Completion{}, dqerr.New(dqerr.CodeProviderUpstreamFailure,
					providerName+": "+ev.Error, dqerr.FieldProvider(providerName))
			case EventTypeDone:
				done = true
			}
		}
	}
}
