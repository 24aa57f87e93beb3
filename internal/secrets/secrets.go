// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package secrets keeps provider credentials out of config files. A config
// value of the form keyring://service/key is replaced by the secret stored
// under that service and key in the OS keyring.
package secrets

import (
	"strings"

	dqerr "github.com/sigil-dev/docquery/pkg/errors"
)

// DefaultService is the keyring service used by the docquery CLI.
const DefaultService = "docquery"

const scheme = "keyring://"

// Store reads and writes secrets by service and key.
type Store interface {
	Set(service, key, value string) error
	// Get returns an error carrying CodeSecretNotFound when the key is absent.
	Get(service, key string) (string, error)
	Delete(service, key string) error
}

// Ref identifies a secret in a Store.
type Ref struct {
	Service string
	Key     string
}

func (r Ref) String() string {
	return scheme + r.Service + "/" + r.Key
}

// IsRef reports whether value uses the keyring:// scheme.
func IsRef(value string) bool {
	return strings.HasPrefix(value, scheme)
}

// ParseRef splits keyring://service/key. The key may itself contain slashes.
func ParseRef(value string) (Ref, error) {
	if !IsRef(value) {
		return Ref{}, dqerr.Errorf(dqerr.CodeSecretInvalidInput, "not a keyring reference: %q", value)
	}

	service, key, ok := strings.Cut(strings.TrimPrefix(value, scheme), "/")
	if !ok || service == "" || key == "" {
		return Ref{}, dqerr.Errorf(dqerr.CodeSecretInvalidInput,
			"invalid keyring reference %q: expected keyring://service/key", value)
	}

	return Ref{Service: service, Key: key}, nil
}

func checkRef(op, service, key string) error {
	if service == "" {
		return dqerr.Errorf(dqerr.CodeSecretInvalidInput, "secret %s: service must not be empty", op)
	}
	if key == "" {
		return dqerr.Errorf(dqerr.CodeSecretInvalidInput, "secret %s: key must not be empty", op)
	}
	return nil
}
