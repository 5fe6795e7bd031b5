package config

import (
	"flag"
	"time"
)

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-server sync server base URL
//	-request-timeout single request timeout (e.g., "15s")
//	-cache-dir local cache database directory
//	-collector-limit bucket size triggering an immediate flush
//	-collector-window batching window (e.g., "3s")
//	-collector-fetch-recheck blocked fetch recheck period (e.g., "10s")
//	-retry-initial-delay first retry delay (e.g., "2s")
//	-retry-max-delay retry delay ceiling (e.g., "60s")
//	-retry-attempts total attempts per request
//	-push-id push registration id
//	-sync-interval background refresh period (0 disables)
//	-auto-save propagate list mutations automatically
//	-c/-config json file path with configs
func ParseFlags() *StructuredConfig {
	collect := registerFlags(flag.CommandLine)
	flag.Parse()
	return collect()
}

// registerFlags declares every flag on fs and returns a closure assembling
// the parsed values into a StructuredConfig.
func registerFlags(fs *flag.FlagSet) func() *StructuredConfig {
	var serverBaseURL string
	var requestTimeout time.Duration
	var cacheDir string
	var collectorLimit int
	var collectorWindow time.Duration
	var collectorFetchRecheck time.Duration
	var retryInitialDelay time.Duration
	var retryMaxDelay time.Duration
	var retryAttempts uint64
	var pushRegistrationID string
	var syncInterval time.Duration
	var autoSave bool
	var jsonConfigPath string

	fs.StringVar(&serverBaseURL, "server", "", "Sync server base URL")
	fs.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 15s)")
	fs.StringVar(&cacheDir, "cache-dir", "", "Local cache directory")
	fs.IntVar(&collectorLimit, "collector-limit", 0, "Bucket size triggering an immediate flush")
	fs.DurationVar(&collectorWindow, "collector-window", 0, "Batching window (e.g., 3s)")
	fs.DurationVar(&collectorFetchRecheck, "collector-fetch-recheck", 0, "Blocked fetch recheck period (e.g., 10s)")
	fs.DurationVar(&retryInitialDelay, "retry-initial-delay", 0, "First retry delay (e.g., 2s)")
	fs.DurationVar(&retryMaxDelay, "retry-max-delay", 0, "Retry delay ceiling (e.g., 60s)")
	fs.Uint64Var(&retryAttempts, "retry-attempts", 0, "Total attempts per request")
	fs.StringVar(&pushRegistrationID, "push-id", "", "Push registration id")
	fs.DurationVar(&syncInterval, "sync-interval", 0, "Background refresh period, 0 disables")
	fs.BoolVar(&autoSave, "auto-save", false, "Propagate list mutations automatically")
	fs.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	fs.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")

	return func() *StructuredConfig {
		return &StructuredConfig{
			Server: Server{
				BaseURL:        serverBaseURL,
				RequestTimeout: requestTimeout,
			},
			Storage: Storage{
				CacheDir: cacheDir,
			},
			Collector: Collector{
				Limit:        collectorLimit,
				Window:       collectorWindow,
				FetchRecheck: collectorFetchRecheck,
			},
			Retry: Retry{
				InitialDelay: retryInitialDelay,
				MaxDelay:     retryMaxDelay,
				Attempts:     retryAttempts,
			},
			Push: Push{
				RegistrationID: pushRegistrationID,
			},
			Workers: Workers{
				SyncInterval: syncInterval,
			},
			List: List{
				AutoSave: autoSave,
			},
			JSONFilePath: jsonConfigPath,
		}
	}
}
