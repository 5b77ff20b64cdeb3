package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies LEAGUE_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; call Config.Validate after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known LEAGUE_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "LEAGUE_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "LEAGUE_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "LEAGUE_WALLET_KEY_PASSWORD")
	setInt64(&cfg.Wallet.ChainID, "LEAGUE_WALLET_CHAIN_ID")

	// ── Access ──
	setStr(&cfg.Access.Owner, "LEAGUE_ACCESS_OWNER")
	setStringSlice(&cfg.Access.Operators, "LEAGUE_ACCESS_OPERATORS")

	// ── Store ──
	setStr(&cfg.Store.Driver, "LEAGUE_STORE_DRIVER")
	setStr(&cfg.SQLite.Path, "LEAGUE_SQLITE_PATH")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "LEAGUE_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "LEAGUE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "LEAGUE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "LEAGUE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "LEAGUE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "LEAGUE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "LEAGUE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "LEAGUE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "LEAGUE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "LEAGUE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "LEAGUE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "LEAGUE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "LEAGUE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "LEAGUE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "LEAGUE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "LEAGUE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "LEAGUE_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.Namespace, "LEAGUE_REDIS_NAMESPACE")
	setInt64(&cfg.Redis.StreamMaxLen, "LEAGUE_REDIS_STREAM_MAX_LEN")
	setDuration(&cfg.Redis.MarketTTL, "LEAGUE_REDIS_MARKET_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "LEAGUE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "LEAGUE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "LEAGUE_S3_REGION")
	setStr(&cfg.S3.Bucket, "LEAGUE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "LEAGUE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "LEAGUE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "LEAGUE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "LEAGUE_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "LEAGUE_S3_PREFIX")

	// ── Gamma ──
	setStr(&cfg.Gamma.Host, "LEAGUE_GAMMA_HOST")
	setDuration(&cfg.Gamma.Timeout, "LEAGUE_GAMMA_TIMEOUT")
	setFloat64(&cfg.Gamma.RatePerSecond, "LEAGUE_GAMMA_RATE_PER_SECOND")
	setInt(&cfg.Gamma.Burst, "LEAGUE_GAMMA_BURST")

	// ── Resolution ──
	setBool(&cfg.Resolution.Idempotent, "LEAGUE_RESOLUTION_IDEMPOTENT")
	setDuration(&cfg.Resolution.LockTTL, "LEAGUE_RESOLUTION_LOCK_TTL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "LEAGUE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "LEAGUE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "LEAGUE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "LEAGUE_NOTIFY_EVENTS")

	// ── Metrics ──
	setStr(&cfg.Metrics.PushgatewayURL, "LEAGUE_METRICS_PUSHGATEWAY_URL")
	setStr(&cfg.Metrics.Job, "LEAGUE_METRICS_JOB")

	setStr(&cfg.LogLevel, "LEAGUE_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the variable is
// present, non-empty and parses.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
