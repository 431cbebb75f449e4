package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	AES          AESConfig          `mapstructure:"aes"`
	Gateway      GatewayConfig      `mapstructure:"gateway"`
	Admin        AdminConfig        `mapstructure:"admin"`
	Withdrawal   WithdrawalConfig   `mapstructure:"withdrawal"`
	Sweep        SweepConfig        `mapstructure:"sweep"`
	Notification NotificationConfig `mapstructure:"notification"`
	Log          LogConfig          `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type AESConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key for AES-256
}

// GatewayConfig holds the HMAC credentials of the payment gateway that posts
// settlement webhooks. There is a single gateway collaborator, so its
// credentials live in config rather than a table.
type GatewayConfig struct {
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// AdminConfig holds the Argon2id hash of the static admin service token.
// The plaintext token is never stored.
type AdminConfig struct {
	TokenHash string `mapstructure:"token_hash"`
}

// WithdrawalConfig bounds the withdrawal workflow.
type WithdrawalConfig struct {
	MinAmount    int64 `mapstructure:"min_amount"`
	MaxAmount    int64 `mapstructure:"max_amount"`
	MonthlyLimit int   `mapstructure:"monthly_limit"`
	// CountRejected controls whether rejected withdrawals still consume the
	// monthly allowance. The source system never released the counter on
	// rejection; keeping that soft-limit behavior is the default.
	CountRejected bool `mapstructure:"count_rejected"`
	MaxRetries    int  `mapstructure:"max_retries"` // optimistic-conflict retries
}

// SweepConfig controls the background sweep of timed-out pending records.
type SweepConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	Interval           time.Duration `mapstructure:"interval"`
	PendingPurchaseTTL time.Duration `mapstructure:"pending_purchase_ttl"`
}

// NotificationConfig points at the external notification service.
type NotificationConfig struct {
	URL     string        `mapstructure:"url"`
	Secret  string        `mapstructure:"secret"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: MWL_ (Marketplace
// Wallet Ledger). Nested keys use underscore: MWL_DATABASE_HOST,
// MWL_WITHDRAWAL_MONTHLY_LIMIT, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "wallet_engine")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "marketplace-wallet-engine")
	v.SetDefault("aes.key", "")
	v.SetDefault("gateway.access_key", "")
	v.SetDefault("gateway.secret_key", "")
	v.SetDefault("admin.token_hash", "")
	v.SetDefault("withdrawal.min_amount", 10000)
	v.SetDefault("withdrawal.max_amount", 50000000)
	v.SetDefault("withdrawal.monthly_limit", 4)
	v.SetDefault("withdrawal.count_rejected", true)
	v.SetDefault("withdrawal.max_retries", 3)
	v.SetDefault("sweep.enabled", true)
	v.SetDefault("sweep.interval", "5m")
	v.SetDefault("sweep.pending_purchase_ttl", "30m")
	v.SetDefault("notification.url", "")
	v.SetDefault("notification.secret", "")
	v.SetDefault("notification.timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: MWL_DATABASE_HOST -> database.host
	v.SetEnvPrefix("MWL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required — env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
