package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type structuredJSONConfig struct {
	Server struct {
		BaseURL        string   `json:"base_url"`
		RequestTimeout Duration `json:"request_timeout"`
	} `json:"server,omitempty"`

	Storage struct {
		CacheDir string `json:"cache_dir"`
	} `json:"storage,omitempty"`

	Collector struct {
		Limit        int      `json:"limit"`
		Window       Duration `json:"window"`
		FetchRecheck Duration `json:"fetch_recheck"`
	} `json:"collector,omitempty"`

	Retry struct {
		InitialDelay Duration `json:"initial_delay"`
		MaxDelay     Duration `json:"max_delay"`
		Attempts     uint64   `json:"attempts"`
	} `json:"retry,omitempty"`

	Push struct {
		RegistrationID string `json:"registration_id"`
	} `json:"push,omitempty"`

	Workers struct {
		SyncInterval Duration `json:"sync_interval"`
	} `json:"workers,omitempty"`

	List struct {
		AutoSave bool `json:"auto_save"`
	} `json:"list,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg structuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		Server: Server{
			BaseURL:        jsonCfg.Server.BaseURL,
			RequestTimeout: time.Duration(jsonCfg.Server.RequestTimeout),
		},
		Storage: Storage{
			CacheDir: jsonCfg.Storage.CacheDir,
		},
		Collector: Collector{
			Limit:        jsonCfg.Collector.Limit,
			Window:       time.Duration(jsonCfg.Collector.Window),
			FetchRecheck: time.Duration(jsonCfg.Collector.FetchRecheck),
		},
		Retry: Retry{
			InitialDelay: time.Duration(jsonCfg.Retry.InitialDelay),
			MaxDelay:     time.Duration(jsonCfg.Retry.MaxDelay),
			Attempts:     jsonCfg.Retry.Attempts,
		},
		Push: Push{
			RegistrationID: jsonCfg.Push.RegistrationID,
		},
		Workers: Workers{
			SyncInterval: time.Duration(jsonCfg.Workers.SyncInterval),
		},
		List: List{
			AutoSave: jsonCfg.List.AutoSave,
		},
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON
// unmarshaling from strings like "1h", "30s".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
