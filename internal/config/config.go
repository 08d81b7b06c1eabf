package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv    string `mapstructure:"APP_ENV"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Upstream  UpstreamConfig
	Billing   BillingConfig
	FX        FXConfig
	Pricing   PricingConfig
	Catalog   CatalogConfig
	Reconcile ReconcileConfig
	Tracing   TracingConfig
}

type ServerConfig struct {
	Port    string        `mapstructure:"SERVER_PORT"`
	Timeout time.Duration `mapstructure:"SERVER_TIMEOUT"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"DB_DRIVER"`
	Host            string        `mapstructure:"DB_HOST"`
	Port            string        `mapstructure:"DB_PORT"`
	User            string        `mapstructure:"DB_USER"`
	Password        string        `mapstructure:"DB_PASSWORD"`
	Name            string        `mapstructure:"DB_NAME"`
	SSLMode         string        `mapstructure:"DB_SSL_MODE"`
	SQLitePath      string        `mapstructure:"DB_SQLITE_PATH"`
	MaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME"`
}

// RedisConfig with an empty host selects the in-process cache.
type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     string `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
	Prefix   string `mapstructure:"REDIS_PREFIX"`
}

type UpstreamConfig struct {
	URL     string        `mapstructure:"UPSTREAM_URL"`
	APIKey  string        `mapstructure:"UPSTREAM_API_KEY"`
	RPS     float64       `mapstructure:"UPSTREAM_RPS"`
	Timeout time.Duration `mapstructure:"UPSTREAM_TIMEOUT"`
}

type BillingConfig struct {
	URL     string        `mapstructure:"BILLING_URL"`
	Timeout time.Duration `mapstructure:"BILLING_TIMEOUT"`
}

type FXConfig struct {
	URL             string          `mapstructure:"FX_URL"`
	Currency        string          `mapstructure:"FX_CURRENCY"`
	DefaultRate     decimal.Decimal `mapstructure:"FX_DEFAULT_RATE"`
	RefreshInterval time.Duration   `mapstructure:"FX_REFRESH_INTERVAL"`
	Timeout         time.Duration   `mapstructure:"FX_TIMEOUT"`
}

type PricingConfig struct {
	MarkupLocal decimal.Decimal `mapstructure:"PRICING_MARKUP_LOCAL"`
}

type CatalogConfig struct {
	RefreshInterval time.Duration `mapstructure:"CATALOG_REFRESH_INTERVAL"`
}

type ReconcileConfig struct {
	Interval    time.Duration `mapstructure:"RECONCILE_INTERVAL"`
	Concurrency int           `mapstructure:"RECONCILE_CONCURRENCY"`
	BatchSize   int           `mapstructure:"RECONCILE_BATCH_SIZE"`
}

type TracingConfig struct {
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `mapstructure:"OTEL_SERVICE_NAME"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_TIMEOUT", 30*time.Second)

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "smmpanel")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_SQLITE_PATH", "smmpanel.db")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 5*time.Minute)

	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PREFIX", "smmpanel")

	v.SetDefault("UPSTREAM_RPS", 5.0)
	v.SetDefault("UPSTREAM_TIMEOUT", 15*time.Second)

	v.SetDefault("BILLING_TIMEOUT", 10*time.Second)

	v.SetDefault("FX_CURRENCY", "LKR")
	v.SetDefault("FX_DEFAULT_RATE", "310")
	v.SetDefault("FX_REFRESH_INTERVAL", 6*time.Hour)
	v.SetDefault("FX_TIMEOUT", 10*time.Second)

	v.SetDefault("PRICING_MARKUP_LOCAL", "50")

	v.SetDefault("CATALOG_REFRESH_INTERVAL", time.Hour)

	v.SetDefault("RECONCILE_INTERVAL", 30*time.Second)
	v.SetDefault("RECONCILE_CONCURRENCY", 4)
	v.SetDefault("RECONCILE_BATCH_SIZE", 200)

	v.SetDefault("OTEL_SERVICE_NAME", "smmpanel")
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	cfg.AppEnv = v.GetString("APP_ENV")
	cfg.LogLevel = v.GetString("LOG_LEVEL")

	cfg.Server.Port = v.GetString("SERVER_PORT")
	cfg.Server.Timeout = v.GetDuration("SERVER_TIMEOUT")

	cfg.Database.Driver = v.GetString("DB_DRIVER")
	cfg.Database.Host = v.GetString("DB_HOST")
	cfg.Database.Port = v.GetString("DB_PORT")
	cfg.Database.User = v.GetString("DB_USER")
	cfg.Database.Password = v.GetString("DB_PASSWORD")
	cfg.Database.Name = v.GetString("DB_NAME")
	cfg.Database.SSLMode = v.GetString("DB_SSL_MODE")
	cfg.Database.SQLitePath = v.GetString("DB_SQLITE_PATH")
	cfg.Database.MaxOpenConns = v.GetInt("DB_MAX_OPEN_CONNS")
	cfg.Database.MaxIdleConns = v.GetInt("DB_MAX_IDLE_CONNS")
	cfg.Database.ConnMaxLifetime = v.GetDuration("DB_CONN_MAX_LIFETIME")

	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetString("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")
	cfg.Redis.Prefix = v.GetString("REDIS_PREFIX")

	cfg.Upstream.URL = v.GetString("UPSTREAM_URL")
	cfg.Upstream.APIKey = v.GetString("UPSTREAM_API_KEY")
	cfg.Upstream.RPS = v.GetFloat64("UPSTREAM_RPS")
	cfg.Upstream.Timeout = v.GetDuration("UPSTREAM_TIMEOUT")

	cfg.Billing.URL = v.GetString("BILLING_URL")
	cfg.Billing.Timeout = v.GetDuration("BILLING_TIMEOUT")

	cfg.FX.URL = v.GetString("FX_URL")
	cfg.FX.Currency = v.GetString("FX_CURRENCY")
	cfg.FX.RefreshInterval = v.GetDuration("FX_REFRESH_INTERVAL")
	cfg.FX.Timeout = v.GetDuration("FX_TIMEOUT")

	var err error
	if cfg.FX.DefaultRate, err = decimal.NewFromString(v.GetString("FX_DEFAULT_RATE")); err != nil {
		return nil, fmt.Errorf("invalid FX_DEFAULT_RATE: %w", err)
	}
	if cfg.Pricing.MarkupLocal, err = decimal.NewFromString(v.GetString("PRICING_MARKUP_LOCAL")); err != nil {
		return nil, fmt.Errorf("invalid PRICING_MARKUP_LOCAL: %w", err)
	}

	cfg.Catalog.RefreshInterval = v.GetDuration("CATALOG_REFRESH_INTERVAL")

	cfg.Reconcile.Interval = v.GetDuration("RECONCILE_INTERVAL")
	cfg.Reconcile.Concurrency = v.GetInt("RECONCILE_CONCURRENCY")
	cfg.Reconcile.BatchSize = v.GetInt("RECONCILE_BATCH_SIZE")

	cfg.Tracing.OTLPEndpoint = v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.Tracing.ServiceName = v.GetString("OTEL_SERVICE_NAME")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if !c.FX.DefaultRate.IsPositive() {
		errs = append(errs, errors.New("FX_DEFAULT_RATE must be positive"))
	}
	if !c.Pricing.MarkupLocal.IsPositive() {
		errs = append(errs, errors.New("PRICING_MARKUP_LOCAL must be positive"))
	}
	if c.FX.Currency == "" {
		errs = append(errs, errors.New("FX_CURRENCY is required"))
	}
	if c.Upstream.RPS <= 0 {
		errs = append(errs, errors.New("UPSTREAM_RPS must be positive"))
	}
	if c.Reconcile.Interval <= 0 {
		errs = append(errs, errors.New("RECONCILE_INTERVAL must be positive"))
	}
	if c.Reconcile.Concurrency <= 0 {
		errs = append(errs, errors.New("RECONCILE_CONCURRENCY must be positive"))
	}
	if c.FX.RefreshInterval <= 0 {
		errs = append(errs, errors.New("FX_REFRESH_INTERVAL must be positive"))
	}
	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver))
	}

	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
