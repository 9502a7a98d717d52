package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DataDir != "data" {
		t.Errorf("DataDir = %q, want data", cfg.DataDir)
	}
	if cfg.Workers != 5 {
		t.Errorf("Workers = %d, want 5", cfg.Workers)
	}
	if cfg.Strategy.ShortWindow != 5 || cfg.Strategy.LongWindow != 20 {
		t.Errorf("Strategy windows = %d/%d, want 5/20", cfg.Strategy.ShortWindow, cfg.Strategy.LongWindow)
	}
	if got := time.Duration(cfg.Cache.MaxAge); got != 0 {
		t.Errorf("Cache.MaxAge = %v, want 0", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate on defaults: %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/feed
workers: 2
cache:
  max_age: 24h
sources:
  akshare_endpoint: http://mirror.internal/kline
warm:
  cron: "0 30 7 * * *"
  watchlist:
    - symbol: AAPL
      source: yfinance
      interval: 1d
      adjusted: true
    - symbol: 600000.SH
      source: akshare
strategy:
  short_window: 3
  long_window: 9
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DataDir != "/var/lib/feed" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.Workers)
	}
	if got := time.Duration(cfg.Cache.MaxAge); got != 24*time.Hour {
		t.Errorf("Cache.MaxAge = %v, want 24h", got)
	}
	if len(cfg.Warm.Watchlist) != 2 {
		t.Fatalf("watchlist size = %d, want 2", len(cfg.Warm.Watchlist))
	}
	if !cfg.Warm.Watchlist[0].Adjusted {
		t.Error("first watchlist entry should be adjusted")
	}
	if cfg.Warm.Watchlist[1].Source != "akshare" {
		t.Errorf("second watchlist source = %q", cfg.Warm.Watchlist[1].Source)
	}
	if cfg.Sources.AkshareEndpoint != "http://mirror.internal/kline" {
		t.Errorf("AkshareEndpoint = %q", cfg.Sources.AkshareEndpoint)
	}
	if cfg.Sources.YahooEndpoint != "" {
		t.Errorf("YahooEndpoint = %q, want adapter default", cfg.Sources.YahooEndpoint)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "data_dir: from-file\nworkers: 2\n")

	t.Setenv("DATA_DIR", "from-env")
	t.Setenv("WORKERS", "8")
	t.Setenv("CACHE_MAX_AGE", "1h30m")
	t.Setenv("YAHOO_ENDPOINT", "http://proxy.internal/chart")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "from-env" {
		t.Errorf("DataDir = %q, want from-env", cfg.DataDir)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Workers)
	}
	if got := time.Duration(cfg.Cache.MaxAge); got != 90*time.Minute {
		t.Errorf("Cache.MaxAge = %v, want 1h30m", got)
	}
	if cfg.Sources.YahooEndpoint != "http://proxy.internal/chart" {
		t.Errorf("YahooEndpoint = %q, want env override", cfg.Sources.YahooEndpoint)
	}
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, "cache:\n  max_age: soon\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unparseable max_age")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"negative max age", func(c *Config) { c.Cache.MaxAge = Duration(-time.Hour) }},
		{"short >= long", func(c *Config) { c.Strategy.ShortWindow = 20 }},
		{"watchlist missing symbol", func(c *Config) {
			c.Warm.Watchlist = []WatchlistEntry{{Source: "yfinance"}}
		}},
		{"watchlist missing source", func(c *Config) {
			c.Warm.Watchlist = []WatchlistEntry{{Symbol: "AAPL"}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
