// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The syncbox Authors

package config

// validate checks that the final merged [StructuredConfig] satisfies the
// engine invariants before it is used at startup. Zero thresholds are
// allowed; each component substitutes its own default.
//
// Returns nil if the configuration is valid, or a descriptive error
// otherwise.
func (cfg *StructuredConfig) validate() error {
	if cfg.Server.BaseURL == "" {
		return ErrInvalidServerConfigs
	}

	if cfg.Storage.CacheDir == "" {
		return ErrInvalidStorageConfigs
	}

	return nil
}
