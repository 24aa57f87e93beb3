// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets

import (
	"log/slog"

	dqerr "github.com/sigil-dev/docquery/pkg/errors"
	"github.com/spf13/viper"
)

// Resolve returns the secret a keyring:// reference points at. Any other
// value is returned unchanged.
func Resolve(store Store, value string) (string, error) {
	if !IsRef(value) {
		return value, nil
	}

	ref, err := ParseRef(value)
	if err != nil {
		return "", err
	}

	secret, err := store.Get(ref.Service, ref.Key)
	if err != nil {
		return "", dqerr.Wrapf(err, dqerr.CodeSecretResolveFailure, "resolving %s", ref)
	}
	return secret, nil
}

// ResolveViper replaces every keyring:// string in v with its secret.
// Values that fail to resolve are cleared so an unresolved reference is never
// sent to a provider as an API key; the failure is logged.
func ResolveViper(v *viper.Viper, store Store) int {
	resolved := 0
	for _, key := range v.AllKeys() {
		val, ok := v.Get(key).(string)
		if !ok || !IsRef(val) {
			continue
		}

		secret, err := Resolve(store, val)
		if err != nil {
			slog.Warn("could not resolve keyring reference", "config_key", key, "error", err)
			v.Set(key, "")
			continue
		}

		v.Set(key, secret)
		resolved++
	}
	return resolved
}
