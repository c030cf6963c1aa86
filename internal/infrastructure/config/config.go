package config

import (
	"errors"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	App struct {
		InitialCapital      float64  `toml:"initial_capital"`
		RefreshIntervalSecs int      `toml:"refresh_interval_secs"`
		Symbols             []string `toml:"symbols"`
	} `toml:"app"`

	Storage struct {
		Backends    []string `toml:"backends"` // any of: memory, sqlite, redis, postgres
		SQLitePath  string   `toml:"sqlite_path"`
		RedisAddr   string   `toml:"redis_addr"`
		RedisDB     int      `toml:"redis_db"`
		KeyPrefix   string   `toml:"key_prefix"`
		PostgresDSN string   `toml:"postgres_dsn"`
	} `toml:"storage"`

	MarketData struct {
		BaseURL   string `toml:"base_url"`
		WsURL     string `toml:"ws_url"`
		WsEnabled bool   `toml:"ws_enabled"`
	} `toml:"marketdata"`

	Replicator struct {
		Enabled     bool   `toml:"enabled"`
		BaseURL     string `toml:"base_url"`
		TimeoutSecs int    `toml:"timeout_secs"`
		MaxAttempts int    `toml:"max_attempts"`
		QueueSize   int    `toml:"queue_size"`
	} `toml:"replicator"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.InitialCapital <= 0 {
		cfg.App.InitialCapital = 10000
	}
	if cfg.App.RefreshIntervalSecs <= 0 {
		cfg.App.RefreshIntervalSecs = 5
	}
	if len(cfg.Storage.Backends) == 0 {
		cfg.Storage.Backends = []string{"memory"}
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/papertrade.db"
	}
	if cfg.Storage.KeyPrefix == "" {
		cfg.Storage.KeyPrefix = "papertrade"
	}
	if cfg.Replicator.TimeoutSecs <= 0 {
		cfg.Replicator.TimeoutSecs = 5
	}
	if cfg.Replicator.MaxAttempts <= 0 {
		cfg.Replicator.MaxAttempts = 3
	}
	if cfg.Replicator.QueueSize <= 0 {
		cfg.Replicator.QueueSize = 256
	}
}

func validate(cfg *Config) error {
	cfg.App.Symbols = normalizeSymbols(cfg.App.Symbols)

	for _, b := range cfg.Storage.Backends {
		switch b {
		case "memory", "sqlite":
		case "redis":
			if strings.TrimSpace(cfg.Storage.RedisAddr) == "" {
				return errors.New("storage.redis_addr empty but redis backend enabled")
			}
		case "postgres":
			if strings.TrimSpace(cfg.Storage.PostgresDSN) == "" {
				return errors.New("storage.postgres_dsn empty but postgres backend enabled")
			}
		default:
			return errors.New("unknown storage backend: " + b)
		}
	}

	if cfg.MarketData.WsEnabled && strings.TrimSpace(cfg.MarketData.WsURL) == "" {
		return errors.New("marketdata.ws_url empty but ws enabled")
	}
	if cfg.Replicator.Enabled && strings.TrimSpace(cfg.Replicator.BaseURL) == "" {
		return errors.New("replicator.base_url empty but replicator enabled")
	}
	return nil
}

// RefreshInterval returns the refresh cadence as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.App.RefreshIntervalSecs) * time.Second
}

// ReplicatorTimeout returns the per-attempt replication timeout.
func (c *Config) ReplicatorTimeout() time.Duration {
	return time.Duration(c.Replicator.TimeoutSecs) * time.Second
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
