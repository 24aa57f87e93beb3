// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package document

import "testing"

// SetMaxDocxBodyBytes lowers the docx body cap for the duration of a test.
func SetMaxDocxBodyBytes(t *testing.T, n int64) {
	t.Helper()
	prev := maxDocxBodyBytes
	maxDocxBodyBytes = n
	t.Cleanup(func() { maxDocxBodyBytes = prev })
}
