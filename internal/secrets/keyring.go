// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets

import (
	"errors"

	dqerr "github.com/sigil-dev/docquery/pkg/errors"
	"github.com/zalando/go-keyring"
)

// Keyring is a Store backed by the OS keyring (Keychain, Secret Service or
// Windows Credential Manager).
type Keyring struct{}

func NewKeyring() *Keyring {
	return &Keyring{}
}

func (Keyring) Set(service, key, value string) error {
	if err := checkRef("set", service, key); err != nil {
		return err
	}
	if err := keyring.Set(service, key, value); err != nil {
		return dqerr.Wrapf(err, dqerr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}
	return nil
}

func (Keyring) Get(service, key string) (string, error) {
	if err := checkRef("get", service, key); err != nil {
		return "", err
	}
	val, err := keyring.Get(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", dqerr.Errorf(dqerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return "", dqerr.Wrapf(err, dqerr.CodeSecretStoreFailure, "reading secret %s/%s", service, key)
	}
	return val, nil
}

func (Keyring) Delete(service, key string) error {
	if err := checkRef("delete", service, key); err != nil {
		return err
	}
	err := keyring.Delete(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return dqerr.Errorf(dqerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return dqerr.Wrapf(err, dqerr.CodeSecretStoreFailure, "deleting secret %s/%s", service, key)
	}
	return nil
}
