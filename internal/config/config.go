// Package config defines the top-level configuration for the factory
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by FACTORY_* environment variables.
type Config struct {
	Admin    AdminConfig    `toml:"admin"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Market   MarketConfig   `toml:"market"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// AdminConfig holds the registry owner's credentials. The derived address is
// the owner identity checked by the implementation registry, and the HMAC
// secret authenticates admin API requests.
type AdminConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	HMACSecret       string `toml:"hmac_secret"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the journal.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the settlement
// archive.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// MarketConfig holds the engine identities and fee destination. The factory,
// order book, and auction house each occupy a fixed address in the instance
// address space; the factory address seeds deterministic derivation, and the
// market engine addresses become trusted operators on every created asset.
type MarketConfig struct {
	FactoryAddress      string `toml:"factory_address"`
	OrderBookAddress    string `toml:"order_book_address"`
	AuctionHouseAddress string `toml:"auction_house_address"`
	FeeRecipient        string `toml:"fee_recipient"`

	// Template addresses seed the implementation registry at startup, one
	// per asset kind. Empty values leave the kind unregistered until an
	// admin call installs one.
	FungibleTemplate     string `toml:"fungible_template"`
	SemiFungibleTemplate string `toml:"semi_fungible_template"`
	NonFungibleTemplate  string `toml:"non_fungible_template"`
}

// ArchiveConfig holds settlement archival parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled         bool     `toml:"enabled"`
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	RateLimitPerMin int      `toml:"rate_limit_per_min"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "factory-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Market: MarketConfig{
			FactoryAddress:      "0x00000000000000000000000000000000000fac70",
			OrderBookAddress:    "0x000000000000000000000000000000000000b00c",
			AuctionHouseAddress: "0x00000000000000000000000000000000000a0c71",

			FungibleTemplate:     "0x0000000000000000000000000000000000000020",
			SemiFungibleTemplate: "0x0000000000000000000000000000000000001155",
			NonFungibleTemplate:  "0x0000000000000000000000000000000000000721",
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:         true,
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimitPerMin: 120,
		},
		Notify: NotifyConfig{
			Events: []string{"contract_created", "order_settled", "auction_settled"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"archive": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, archive, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Admin key: at least one credential source must be specified.
	if c.Admin.PrivateKey == "" && c.Admin.EncryptedKeyPath == "" {
		errs = append(errs, "admin: either private_key or encrypted_key_path must be set")
	}
	if c.Admin.EncryptedKeyPath != "" && c.Admin.KeyPassword == "" {
		errs = append(errs, "admin: key_password is required when encrypted_key_path is set")
	}
	if c.Admin.HMACSecret == "" {
		errs = append(errs, "admin: hmac_secret must not be empty")
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 and archive cadence, only checked when archival is enabled.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be > 0")
		}
	}

	// Market engine addresses must parse and be pairwise distinct.
	addrs := []struct {
		name string
		raw  string
	}{
		{"factory_address", c.Market.FactoryAddress},
		{"order_book_address", c.Market.OrderBookAddress},
		{"auction_house_address", c.Market.AuctionHouseAddress},
	}
	seen := map[common.Address]string{}
	for _, a := range addrs {
		if !common.IsHexAddress(a.raw) {
			errs = append(errs, fmt.Sprintf("market: %s %q is not a valid address", a.name, a.raw))
			continue
		}
		addr := common.HexToAddress(a.raw)
		if prev, dup := seen[addr]; dup {
			errs = append(errs, fmt.Sprintf("market: %s and %s must be distinct", prev, a.name))
		}
		seen[addr] = a.name
	}
	if c.Market.FeeRecipient != "" && !common.IsHexAddress(c.Market.FeeRecipient) {
		errs = append(errs, fmt.Sprintf("market: fee_recipient %q is not a valid address", c.Market.FeeRecipient))
	}
	for _, t := range []struct {
		name string
		raw  string
	}{
		{"fungible_template", c.Market.FungibleTemplate},
		{"semi_fungible_template", c.Market.SemiFungibleTemplate},
		{"non_fungible_template", c.Market.NonFungibleTemplate},
	} {
		if t.raw != "" && !common.IsHexAddress(t.raw) {
			errs = append(errs, fmt.Sprintf("market: %s %q is not a valid address", t.name, t.raw))
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimitPerMin < 0 {
			errs = append(errs, "server: rate_limit_per_min must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
