// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	"log/slog"
	"os"
	"path/filepath"

	dqerr "github.com/sigil-dev/docquery/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const redacted = "********"

// DefaultYAML renders the built-in defaults as a YAML document.
func DefaultYAML() ([]byte, error) {
	v := viper.New()
	SetDefaults(v)
	return MarshalSettings(v.AllSettings(), false)
}

// MarshalSettings renders a viper settings map as YAML. Values under an
// api_key field are masked unless reveal is set.
func MarshalSettings(settings map[string]any, reveal bool) ([]byte, error) {
	if !reveal {
		settings = redact(settings)
	}
	out, err := yaml.Marshal(settings)
	if err != nil {
		return nil, dqerr.Errorf(dqerr.CodeCLISetupFailure, "encoding config: %w", err)
	}
	return out, nil
}

// WriteDefault writes the default configuration to path. An existing file is
// left untouched unless force is set.
func WriteDefault(path string, force bool) error {
	if path == "" {
		return dqerr.New(dqerr.CodeConfigValidateInvalidValue, "config path must not be empty")
	}

	if _, err := os.Stat(path); err == nil && !force {
		return dqerr.Errorf(dqerr.CodeConfigValidateInvalidValue, "config file %s already exists", path)
	}

	data, err := DefaultYAML()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return dqerr.Errorf(dqerr.CodeConfigLoadReadFailure, "creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return dqerr.Errorf(dqerr.CodeConfigLoadReadFailure, "writing config %s: %w", path, err)
	}

	slog.Info("wrote default config", "path", path)
	return nil
}

func redact(settings map[string]any) map[string]any {
	out := make(map[string]any, len(settings))
	for k, val := range settings {
		switch typed := val.(type) {
		case map[string]any:
			out[k] = redact(typed)
		case string:
			if k == "api_key" && typed != "" {
				out[k] = redacted
			} else {
				out[k] = typed
			}
		default:
			out[k] = val
		}
	}
	return out
}
