// Package config defines the leaguebot configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by LEAGUE_* environment variables.
type Config struct {
	Wallet     WalletConfig     `toml:"wallet"`
	Access     AccessConfig     `toml:"access"`
	Store      StoreConfig      `toml:"store"`
	Postgres   PostgresConfig   `toml:"postgres"`
	SQLite     SQLiteConfig     `toml:"sqlite"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Gamma      GammaConfig      `toml:"gamma"`
	Resolution ResolutionConfig `toml:"resolution"`
	Notify     NotifyConfig     `toml:"notify"`
	Metrics    MetricsConfig    `toml:"metrics"`
	LogLevel   string           `toml:"log_level"`
}

// WalletConfig holds the operator key. The key signs archived resolution
// reports and its address is the default operator account.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	ChainID          int64  `toml:"chain_id"`
}

// Configured reports whether any key source is set.
func (w WalletConfig) Configured() bool {
	return w.PrivateKey != "" || w.EncryptedKeyPath != ""
}

// AccessConfig names the accounts allowed to perform privileged writes. An
// empty owner falls back to the wallet address.
type AccessConfig struct {
	Owner     string   `toml:"owner"`
	Operators []string `toml:"operators"`
}

// StoreConfig selects the ledger backend.
type StoreConfig struct {
	Driver string `toml:"driver"`
}

// PostgresConfig holds PostgreSQL connection parameters. DSN, when set,
// overrides the individual fields.
type PostgresConfig struct {
	DSN           string   `toml:"dsn"`
	Host          string   `toml:"host"`
	Port          int      `toml:"port"`
	Database      string   `toml:"database"`
	User          string   `toml:"user"`
	Password      string   `toml:"password"`
	SSLMode       string   `toml:"ssl_mode"`
	PoolMaxConns  int      `toml:"pool_max_conns"`
	PoolMinConns  int      `toml:"pool_min_conns"`
	RunMigrations bool     `toml:"run_migrations"`
	Timeout       duration `toml:"connect_timeout"`
}

// SQLiteConfig holds the embedded database path.
type SQLiteConfig struct {
	Path string `toml:"path"`
}

// RedisConfig holds Redis connection parameters and the features built on it.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	// Namespace prefixes every Redis key so several leagues can share one server.
	Namespace    string   `toml:"namespace"`
	EventStream  string   `toml:"event_stream"`
	EventChannel string   `toml:"event_channel"`
	StreamMaxLen int64    `toml:"stream_max_len"`
	MarketTTL    duration `toml:"market_ttl"`
}

// S3Config holds the report archive bucket.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// GammaConfig holds the Polymarket Gamma API endpoint and client limits.
type GammaConfig struct {
	Host          string   `toml:"host"`
	Timeout       duration `toml:"timeout"`
	RatePerSecond float64  `toml:"rate_per_second"`
	Burst         int      `toml:"burst"`
}

// ResolutionConfig controls resolution runs.
type ResolutionConfig struct {
	// Idempotent records applied deltas so a rerun does not double-count.
	Idempotent bool     `toml:"idempotent"`
	LockTTL    duration `toml:"lock_ttl"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// MetricsConfig holds the Pushgateway target. An empty URL disables pushing.
type MetricsConfig struct {
	PushgatewayURL string `toml:"pushgateway_url"`
	Job            string `toml:"job"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Wallet: WalletConfig{
			ChainID: 137,
		},
		Store: StoreConfig{
			Driver: DriverSQLite,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "league",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
			Timeout:       duration{10 * time.Second},
		},
		SQLite: SQLiteConfig{
			Path: "league.db",
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     10,
			MaxRetries:   3,
			EventStream:  "league:events",
			EventChannel: "league:events:live",
			StreamMaxLen: 10000,
			MarketTTL:    duration{5 * time.Minute},
		},
		S3: S3Config{
			Region:         "us-east-1",
			UseSSL:         true,
			ForcePathStyle: true,
			Prefix:         "reports",
		},
		Gamma: GammaConfig{
			Host:          "https://gamma-api.polymarket.com",
			Timeout:       duration{30 * time.Second},
			RatePerSecond: 5,
			Burst:         5,
		},
		Resolution: ResolutionConfig{
			LockTTL: duration{10 * time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"resolution_completed", "resolution_failed"},
		},
		Metrics: MetricsConfig{
			Job: "leaguebot",
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validDrivers = map[string]bool{
	DriverMemory:   true,
	DriverSQLite:   true,
	DriverPostgres: true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet
	if c.Wallet.PrivateKey != "" && c.Wallet.EncryptedKeyPath != "" {
		errs = append(errs, "wallet: set only one of private_key and encrypted_key_path")
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}
	if c.Wallet.ChainID <= 0 {
		errs = append(errs, "wallet: chain_id must be positive")
	}

	// Access
	if c.Access.Owner != "" && !common.IsHexAddress(c.Access.Owner) {
		errs = append(errs, fmt.Sprintf("access: owner %q is not a hex address", c.Access.Owner))
	}
	for _, op := range c.Access.Operators {
		if !common.IsHexAddress(op) {
			errs = append(errs, fmt.Sprintf("access: operator %q is not a hex address", op))
		}
	}

	// Store
	driver := strings.ToLower(c.Store.Driver)
	if !validDrivers[driver] {
		errs = append(errs, fmt.Sprintf("store: unknown driver %q (valid: memory, sqlite, postgres)", c.Store.Driver))
	}
	if driver == DriverSQLite && strings.TrimSpace(c.SQLite.Path) == "" {
		errs = append(errs, "sqlite: path must not be empty")
	}
	if driver == DriverPostgres {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.EventStream == "" {
			errs = append(errs, "redis: event_stream must not be empty")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	// Gamma
	if c.Gamma.Host == "" {
		errs = append(errs, "gamma: host must not be empty")
	}
	if c.Gamma.RatePerSecond < 0 {
		errs = append(errs, "gamma: rate_per_second must be >= 0")
	}

	// Resolution
	if c.Resolution.LockTTL.Duration <= 0 {
		errs = append(errs, "resolution: lock_ttl must be positive")
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
