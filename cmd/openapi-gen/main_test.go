// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSpec(t *testing.T) {
	spec, err := generateSpec()
	require.NoError(t, err)

	var doc struct {
		OpenAPI string                    `json:"openapi"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(spec, &doc))

	assert.Contains(t, doc.OpenAPI, "3.1")
	assert.Contains(t, doc.Paths["/upload/"], "post")
	assert.Contains(t, doc.Paths["/search/"], "post")
	assert.Contains(t, doc.Paths["/health"], "get")
}

func TestWriteSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api", "openapi", "spec.json")
	require.NoError(t, writeSpec(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, byte('{'), data[0])
}
