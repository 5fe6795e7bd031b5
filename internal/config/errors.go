package config

import "errors"

// Validation errors returned by [StructuredConfig.validate] when required
// configuration groups are incomplete or invalid.
var (
	// ErrInvalidServerConfigs indicates invalid sync server settings
	// (for example, a missing base URL).
	ErrInvalidServerConfigs = errors.New("invalid server configuration")
	// ErrInvalidStorageConfigs indicates invalid local cache settings
	// (for example, an empty cache directory).
	ErrInvalidStorageConfigs = errors.New("invalid storage configuration")
)
