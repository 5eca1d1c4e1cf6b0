package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the folio service.
type Config struct {
	Storage Storage `yaml:"storage"`
	Server  Server  `yaml:"server"`
	Finnhub Finnhub `yaml:"finnhub"`
	Alpaca  Alpaca  `yaml:"alpaca"`
	Stream  Stream  `yaml:"stream"`
	Poll    Poll    `yaml:"poll"`
	News    News    `yaml:"news"`
	Logging Logging `yaml:"logging"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Finnhub holds the credential and endpoints for the Finnhub API. An empty
// APIKey disables both the quote fetcher and the streaming client for this
// provider; that is inactivity, not an error.
type Finnhub struct {
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	StreamURL       string `yaml:"stream_url"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// Alpaca holds credentials for the alternate Alpaca data provider.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
}

// Stream controls reconnect behaviour of the streaming price client.
type Stream struct {
	BaseDelayMS int `yaml:"base_delay_ms"`
	MaxDelayMS  int `yaml:"max_delay_ms"`
}

// Poll controls the quote polling schedule.
type Poll struct {
	SelectedIntervalSec int `yaml:"selected_interval_sec"`
}

// News controls company-news fetching.
type News struct {
	DefaultDays int `yaml:"default_days"`
	MaxItems    int `yaml:"max_items"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// BaseDelay returns the stream reconnect base delay, defaulting to 300ms.
func (s Stream) BaseDelay() time.Duration {
	if s.BaseDelayMS <= 0 {
		return 300 * time.Millisecond
	}
	return time.Duration(s.BaseDelayMS) * time.Millisecond
}

// MaxDelay returns the stream reconnect delay cap, defaulting to 5s.
func (s Stream) MaxDelay() time.Duration {
	if s.MaxDelayMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(s.MaxDelayMS) * time.Millisecond
}

// SelectedInterval returns the selected-symbol poll interval, defaulting to 20s.
func (p Poll) SelectedInterval() time.Duration {
	if p.SelectedIntervalSec <= 0 {
		return 20 * time.Second
	}
	return time.Duration(p.SelectedIntervalSec) * time.Second
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		cfg.Finnhub.APIKey = v
	}
	if v := os.Getenv("FINNHUB_BASE_URL"); v != "" {
		cfg.Finnhub.BaseURL = v
	}
	if v := os.Getenv("FINNHUB_STREAM_URL"); v != "" {
		cfg.Finnhub.StreamURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
