// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The syncbox Authors

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for the sync
// engine. It aggregates all sub-configurations and is populated by merging
// values from environment variables, command-line flags, and an optional
// JSON file.
//
// Struct tags:
//   - envPrefix — prefix applied to all nested env tag lookups (caarlos0/env).
//   - env       — direct environment variable name for scalar fields.
type StructuredConfig struct {
	// Server holds the sync server endpoint settings.
	Server Server `envPrefix:"SERVER_"`

	// Storage holds the local cache database settings.
	Storage Storage `envPrefix:"STORAGE_"`

	// Collector holds the call-batching thresholds.
	Collector Collector `envPrefix:"COLLECTOR_"`

	// Retry holds the transport backoff policy.
	Retry Retry `envPrefix:"RETRY_"`

	// Push holds the push-notification registration settings.
	Push Push `envPrefix:"PUSH_"`

	// Workers holds background job settings.
	Workers Workers `envPrefix:"WORKERS_"`

	// List holds lazy list behavior settings.
	List List `envPrefix:"LIST_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged on top of the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// Server holds the remote endpoint settings.
type Server struct {
	// BaseURL is the sync server root, e.g. "https://sync.example.com".
	// Env: SERVER_BASE_URL
	BaseURL string `env:"BASE_URL"`

	// RequestTimeout bounds a single HTTP exchange (e.g. "15s").
	// Env: SERVER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// Storage holds the local cache settings.
type Storage struct {
	// CacheDir is the directory holding the cache database file.
	// Env: STORAGE_CACHE_DIR
	CacheDir string `env:"CACHE_DIR"`
}

// Collector holds the batching thresholds of the call collector.
type Collector struct {
	// Limit is the bucket size that triggers an immediate flush.
	// Env: COLLECTOR_LIMIT
	Limit int `env:"LIMIT"`

	// Window is the delay between the first unflushed enqueue and the
	// scheduled flush (e.g. "3s").
	// Env: COLLECTOR_WINDOW
	Window time.Duration `env:"WINDOW"`

	// FetchRecheck is how long a blocked fetch caller waits before
	// rechecking (e.g. "10s").
	// Env: COLLECTOR_FETCH_RECHECK
	FetchRecheck time.Duration `env:"FETCH_RECHECK"`
}

// Retry holds the backoff policy of the retrying transport.
type Retry struct {
	// InitialDelay is the wait before the second attempt (e.g. "2s").
	// Env: RETRY_INITIAL_DELAY
	InitialDelay time.Duration `env:"INITIAL_DELAY"`

	// MaxDelay caps the doubling delay (e.g. "60s").
	// Env: RETRY_MAX_DELAY
	MaxDelay time.Duration `env:"MAX_DELAY"`

	// Attempts is the total number of tries including the first.
	// Env: RETRY_ATTEMPTS
	Attempts uint64 `env:"ATTEMPTS"`
}

// Push holds push-notification settings.
type Push struct {
	// RegistrationID identifies this device to the server's push channel.
	// Generated when empty.
	// Env: PUSH_REGISTRATION_ID
	RegistrationID string `env:"REGISTRATION_ID"`
}

// Workers holds background job settings.
type Workers struct {
	// SyncInterval is the period of the background refresh job; zero
	// disables the job.
	// Env: WORKERS_SYNC_INTERVAL
	SyncInterval time.Duration `env:"SYNC_INTERVAL"`
}

// List holds lazy list behavior settings.
type List struct {
	// AutoSave makes structural list mutations propagate save/delete
	// calls automatically.
	// Env: LIST_AUTO_SAVE
	AutoSave bool `env:"AUTO_SAVE"`
}

// GetStructuredConfig loads, merges, and validates the engine
// configuration from all available sources in the following priority order
// (last source wins for non-zero fields):
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
//
// Returns a fully populated *StructuredConfig or an error if any source
// fails to load or the final config fails validation.
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		build()
}
