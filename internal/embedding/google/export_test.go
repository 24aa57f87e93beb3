// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package google

// Transient exposes transient for white-box testing.
var Transient = transient
