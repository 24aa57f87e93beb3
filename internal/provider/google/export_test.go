// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package google

import (
	"github.com/sigil-dev/docquery/internal/provider"
	"google.golang.org/genai"
)

// ConvertMessages exposes convertMessages for white-box testing.
var ConvertMessages = func(msgs []provider.Message, systemPrompt string) ([]*genai.Content, string, error) {
	return convertMessages(msgs, systemPrompt)
}

// BuildConfig exposes buildConfig for white-box testing.
var BuildConfig = func(opts provider.ChatOptions, system string) *genai.GenerateContentConfig {
	return buildConfig(opts, system)
}
