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
// built-in defaults, applies FACTORY_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known FACTORY_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Admin ──
	setStr(&cfg.Admin.PrivateKey, "FACTORY_ADMIN_PRIVATE_KEY")
	setStr(&cfg.Admin.EncryptedKeyPath, "FACTORY_ADMIN_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Admin.KeyPassword, "FACTORY_ADMIN_KEY_PASSWORD")
	setStr(&cfg.Admin.HMACSecret, "FACTORY_ADMIN_HMAC_SECRET")

	// ── Database ──
	setStr(&cfg.Database.DSN, "FACTORY_DATABASE_DSN")
	setStr(&cfg.Database.Host, "FACTORY_DATABASE_HOST")
	setInt(&cfg.Database.Port, "FACTORY_DATABASE_PORT")
	setStr(&cfg.Database.Database, "FACTORY_DATABASE_NAME")
	setStr(&cfg.Database.User, "FACTORY_DATABASE_USER")
	setStr(&cfg.Database.Password, "FACTORY_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "FACTORY_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "FACTORY_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "FACTORY_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "FACTORY_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "FACTORY_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FACTORY_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FACTORY_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "FACTORY_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "FACTORY_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "FACTORY_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "FACTORY_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "FACTORY_S3_REGION")
	setStr(&cfg.S3.Bucket, "FACTORY_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "FACTORY_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "FACTORY_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "FACTORY_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "FACTORY_S3_FORCE_PATH_STYLE")

	// ── Market ──
	setStr(&cfg.Market.FactoryAddress, "FACTORY_MARKET_FACTORY_ADDRESS")
	setStr(&cfg.Market.OrderBookAddress, "FACTORY_MARKET_ORDER_BOOK_ADDRESS")
	setStr(&cfg.Market.AuctionHouseAddress, "FACTORY_MARKET_AUCTION_HOUSE_ADDRESS")
	setStr(&cfg.Market.FeeRecipient, "FACTORY_MARKET_FEE_RECIPIENT")
	setStr(&cfg.Market.FungibleTemplate, "FACTORY_MARKET_FUNGIBLE_TEMPLATE")
	setStr(&cfg.Market.SemiFungibleTemplate, "FACTORY_MARKET_SEMI_FUNGIBLE_TEMPLATE")
	setStr(&cfg.Market.NonFungibleTemplate, "FACTORY_MARKET_NON_FUNGIBLE_TEMPLATE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "FACTORY_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "FACTORY_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "FACTORY_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "FACTORY_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "FACTORY_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "FACTORY_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimitPerMin, "FACTORY_SERVER_RATE_LIMIT_PER_MIN")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "FACTORY_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "FACTORY_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "FACTORY_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "FACTORY_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "FACTORY_MODE")
	setStr(&cfg.LogLevel, "FACTORY_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

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
