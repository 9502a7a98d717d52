// Package config loads application settings from an optional YAML file,
// applies environment overrides and fills in defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "24h" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// WatchlistEntry names one series the warmer keeps fresh.
type WatchlistEntry struct {
	Symbol   string `yaml:"symbol"`
	Source   string `yaml:"source"`
	Interval string `yaml:"interval"`
	Adjusted bool   `yaml:"adjusted"`
}

type Config struct {
	DataDir string `yaml:"data_dir"`
	CSVDir  string `yaml:"csv_dir"`
	DBPath  string `yaml:"db_path"`
	Workers int    `yaml:"workers"`

	Log struct {
		Dir     string `yaml:"dir"`
		Level   string `yaml:"level"`
		Console bool   `yaml:"console"`
	} `yaml:"log"`

	Cache struct {
		// MaxAge turns cached series older than this into misses.
		// Zero trusts the cache forever.
		MaxAge Duration `yaml:"max_age"`
	} `yaml:"cache"`

	// Sources overrides provider endpoints, mainly for mirrors and tests.
	// Empty values keep the adapters' defaults.
	Sources struct {
		AkshareEndpoint string `yaml:"akshare_endpoint"`
		YahooEndpoint   string `yaml:"yahoo_endpoint"`
	} `yaml:"sources"`

	Warm struct {
		Cron      string           `yaml:"cron"`
		Watchlist []WatchlistEntry `yaml:"watchlist"`
	} `yaml:"warm"`

	Strategy struct {
		ShortWindow int     `yaml:"short_window"`
		LongWindow  int     `yaml:"long_window"`
		Size        float64 `yaml:"size"`
	} `yaml:"strategy"`
}

// Load reads cfg from a YAML file, then applies environment overrides.
// A missing file is fine; defaults cover everything.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.DataDir = getEnv("DATA_DIR", cfg.DataDir)
	cfg.CSVDir = getEnv("CSV_DIR", cfg.CSVDir)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.Workers = getEnvInt("WORKERS", cfg.Workers)
	cfg.Log.Dir = getEnv("LOG_DIR", cfg.Log.Dir)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Warm.Cron = getEnv("WARM_CRON", cfg.Warm.Cron)
	cfg.Sources.AkshareEndpoint = getEnv("AKSHARE_ENDPOINT", cfg.Sources.AkshareEndpoint)
	cfg.Sources.YahooEndpoint = getEnv("YAHOO_ENDPOINT", cfg.Sources.YahooEndpoint)
	if v := os.Getenv("CACHE_MAX_AGE"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse CACHE_MAX_AGE: %w", err)
		}
		cfg.Cache.MaxAge = Duration(parsed)
	}

	// Defaults
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.CSVDir == "" {
		cfg.CSVDir = "data/csv"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "data/manifest.db"
	}
	if cfg.Workers == 0 {
		cfg.Workers = 5
	}
	if cfg.Log.Dir == "" {
		cfg.Log.Dir = "logs"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Warm.Cron == "" {
		cfg.Warm.Cron = "0 0 18 * * 1-5"
	}
	if cfg.Strategy.ShortWindow == 0 {
		cfg.Strategy.ShortWindow = 5
	}
	if cfg.Strategy.LongWindow == 0 {
		cfg.Strategy.LongWindow = 20
	}
	if cfg.Strategy.Size == 0 {
		cfg.Strategy.Size = 1
	}

	return cfg, nil
}

// Validate checks field combinations that Load cannot default away.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive")
	}
	if c.Cache.MaxAge < 0 {
		return fmt.Errorf("cache.max_age must not be negative")
	}
	if c.Strategy.ShortWindow < 1 {
		return fmt.Errorf("strategy.short_window must be positive")
	}
	if c.Strategy.ShortWindow >= c.Strategy.LongWindow {
		return fmt.Errorf("strategy.short_window must be smaller than strategy.long_window")
	}
	for i, entry := range c.Warm.Watchlist {
		if entry.Symbol == "" {
			return fmt.Errorf("warm.watchlist[%d]: symbol is required", i)
		}
		if entry.Source == "" {
			return fmt.Errorf("warm.watchlist[%d]: source is required", i)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
