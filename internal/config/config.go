// Package config holds the full service configuration. It layers the
// shared app config (service name, env, HTTP server, logging) with the
// ledger-specific sections: database, cache, broker, auth, market data
// and the order sweep.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	base "github.com/FrknKoseoglu/phintech-core/libs/config"
)

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConns       int32         `mapstructure:"max_conns"`
	MinConns       int32         `mapstructure:"min_conns"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	OrdersTopic string   `mapstructure:"orders_topic"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type MarketConfig struct {
	CryptoBaseURL string        `mapstructure:"crypto_base_url"`
	QuotesBaseURL string        `mapstructure:"quotes_base_url"`
	FreshFor      time.Duration `mapstructure:"fresh_for"`
}

type SweepConfig struct {
	// Secret guards the internal sweep trigger endpoint. When empty the
	// endpoint refuses all requests.
	Secret        string        `mapstructure:"secret"`
	Interval      time.Duration `mapstructure:"interval"`
	Concurrency   int           `mapstructure:"concurrency"`
	OracleTimeout time.Duration `mapstructure:"oracle_timeout"`
	SettleTimeout time.Duration `mapstructure:"settle_timeout"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
	// FallbackRate is the TRY-per-USD rate used when no live USDTRY
	// quote is available.
	FallbackRate float64 `mapstructure:"fallback_rate"`
}

type WalletConfig struct {
	// OpeningBalanceTRY is credited to every newly registered account.
	OpeningBalanceTRY float64 `mapstructure:"opening_balance_try"`
}

type Config struct {
	base.AppConfig `mapstructure:",squash"`

	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Market   MarketConfig   `mapstructure:"market"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PHIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path == "" {
		path = "config.yaml"
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required (set PHIN_AUTH_JWT_SECRET)")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required (set PHIN_DATABASE_URL)")
	}
	if c.Sweep.FallbackRate <= 0 {
		return fmt.Errorf("sweep.fallback_rate must be positive")
	}
	return nil
}

// Every key gets a default so PHIN_* env overrides resolve during
// Unmarshal even without a config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "phintech-core")
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_path", "/metrics")
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", "5s")
	v.SetDefault("http.write_timeout", "10s")
	v.SetDefault("http.idle_timeout", "60s")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.connect_timeout", "5s")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.orders_topic", "phintech.orders")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "24h")

	v.SetDefault("market.crypto_base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("market.quotes_base_url", "")
	v.SetDefault("market.fresh_for", "15s")

	v.SetDefault("sweep.secret", "")
	v.SetDefault("sweep.interval", "0s")
	v.SetDefault("sweep.concurrency", 4)
	v.SetDefault("sweep.oracle_timeout", "5s")
	v.SetDefault("sweep.settle_timeout", "5s")
	v.SetDefault("sweep.lock_ttl", "1m")
	v.SetDefault("sweep.fallback_rate", 34.4)

	v.SetDefault("wallet.opening_balance_try", 100000)
}
