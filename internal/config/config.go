// Package config holds the engine's global configuration knobs
// (spec.md §6), loaded from a JSON file with environment-variable
// overrides, following the flat JSON-tagged struct convention the
// teacher uses throughout config/config.go.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config aggregates every global (non-per-trader) knob the engine needs.
type Config struct {
	Engine   EngineConfig   `json:"engine"`
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`
	Vault    VaultConfig    `json:"vault"`
	Logging  LoggingConfig  `json:"logging"`
	Server   ServerConfig   `json:"server"`
}

// EngineConfig is the global knobs enumerated in spec.md §6.
type EngineConfig struct {
	TickTimeout                 time.Duration `json:"tick_timeout"`
	SourceTimeout                time.Duration `json:"source_timeout"`
	PriceTimeout                 time.Duration `json:"price_timeout"`
	HeartbeatInterval             time.Duration `json:"heartbeat_interval"`
	SubscriberBackpressureWindow time.Duration `json:"subscriber_backpressure_window"`
	MarketCloseJobAt             string        `json:"market_close_job_at"` // "17:45 Europe/Berlin"
	OvernightFeesAt               string        `json:"overnight_fees_at"`   // "17:40"
	OutcomeBackfillEvery          time.Duration `json:"outcome_backfill_every"`
}

// DefaultEngineConfig matches the defaults enumerated in spec.md §6.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TickTimeout:                  30 * time.Second,
		SourceTimeout:                5 * time.Second,
		PriceTimeout:                 10 * time.Second,
		HeartbeatInterval:            5 * time.Second,
		SubscriberBackpressureWindow: 4 * time.Second,
		MarketCloseJobAt:             "17:45 Europe/Berlin",
		OvernightFeesAt:              "17:40",
		OutcomeBackfillEvery:         time.Hour,
	}
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type VaultConfig struct {
	Address   string `json:"address"`
	Token     string `json:"token"`
	MountPath string `json:"mount_path"` // KV mount holding broker profiles
}

type LoggingConfig struct {
	Level      string `json:"level"`
	Output     string `json:"output"`
	JSONFormat bool   `json:"json_format"`
}

type ServerConfig struct {
	Addr        string   `json:"addr"`
	CORSOrigins []string `json:"cors_origins"`
}

// Load reads a JSON config file, then applies environment overrides.
// Missing path yields defaults with only environment applied.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Engine:  DefaultEngineConfig(),
		Logging: LoggingConfig{Level: "info", Output: "stdout", JSONFormat: true},
		Server:  ServerConfig{Addr: ":8080"},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = p
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database.Database = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("VAULT_ADDR"); v != "" {
		cfg.Vault.Address = v
	}
	if v := os.Getenv("VAULT_TOKEN"); v != "" {
		cfg.Vault.Token = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}
