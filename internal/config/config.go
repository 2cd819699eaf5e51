package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Failure policies for a run whose source fails.
const (
	FailurePolicyIsolate = "isolate"
	FailurePolicyAbort   = "abort"
)

// ErrMissingDatabaseURL is returned when no connection string is configured.
var ErrMissingDatabaseURL = errors.New("database url is required (set DATABASE_URL)")

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	URL             string        `mapstructure:"url"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogLevel        string        `mapstructure:"log_level"`
	// startup waits for the database to come up
	ConnectAttempts  int           `mapstructure:"connect_attempts"`
	ConnectRetryWait time.Duration `mapstructure:"connect_retry_wait"`
}

// DSN returns the connection string handed to the gorm driver.
// For sqlite an optional "sqlite://" prefix is stripped.
func (c *DatabaseConfig) DSN() string {
	if c.ResolvedDriver() == "sqlite" {
		return strings.TrimPrefix(c.URL, "sqlite://")
	}
	return c.URL
}

// ResolvedDriver returns the configured driver, inferring it from the URL when empty.
func (c *DatabaseConfig) ResolvedDriver() string {
	if c.Driver != "" {
		return c.Driver
	}
	if strings.HasPrefix(c.URL, "postgres://") || strings.HasPrefix(c.URL, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
}

// HTTPConfig configures outbound calls to remote sources.
type HTTPConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	RetryCount       int           `mapstructure:"retry_count"`
	RetryWaitTime    time.Duration `mapstructure:"retry_wait_time"`
	RetryMaxWaitTime time.Duration `mapstructure:"retry_max_wait_time"`
	RateLimit        float64       `mapstructure:"rate_limit"` // requests per second, 0 disables
	UserAgent        string        `mapstructure:"user_agent"`
}

type SourcesConfig struct {
	CoinPaprika APISourceConfig `mapstructure:"coinpaprika"`
	CoinGecko   APISourceConfig `mapstructure:"coingecko"`
	LegacyCSV   CSVSourceConfig `mapstructure:"legacycsv"`
}

type APISourceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	Limit   int    `mapstructure:"limit"`
}

type CSVSourceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type PipelineConfig struct {
	FailurePolicy string        `mapstructure:"failure_policy"`
	RunTimeout    time.Duration `mapstructure:"run_timeout"`
}

type SchedulerConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"`
	RunOnStart bool          `mapstructure:"run_on_start"`
}

// StorageConfig configures the optional S3-compatible raw payload archive.
type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.BindEnv("server.port", "PORT")
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("pipeline.failure_policy", "ETL_FAILURE_POLICY")
	v.BindEnv("scheduler.interval", "ETL_INTERVAL")
	v.BindEnv("sources.legacycsv.path", "LEGACY_CSV_PATH")
	v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	v.BindEnv("storage.bucket", "S3_BUCKET")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.connect_attempts", 10)
	v.SetDefault("database.connect_retry_wait", 3*time.Second)

	v.SetDefault("http.timeout", 15*time.Second)
	v.SetDefault("http.retry_count", 2)
	v.SetDefault("http.retry_wait_time", 500*time.Millisecond)
	v.SetDefault("http.retry_max_wait_time", 5*time.Second)
	v.SetDefault("http.rate_limit", 2.0)
	v.SetDefault("http.user_agent", "cryptoetl/1.0")

	v.SetDefault("sources.coinpaprika.enabled", true)
	v.SetDefault("sources.coinpaprika.base_url", "https://api.coinpaprika.com")
	v.SetDefault("sources.coinpaprika.limit", 5)
	v.SetDefault("sources.coingecko.enabled", true)
	v.SetDefault("sources.coingecko.base_url", "https://api.coingecko.com")
	v.SetDefault("sources.coingecko.limit", 5)
	v.SetDefault("sources.legacycsv.enabled", true)
	v.SetDefault("sources.legacycsv.path", "data/legacy.csv")

	v.SetDefault("pipeline.failure_policy", FailurePolicyIsolate)
	v.SetDefault("pipeline.run_timeout", 10*time.Minute)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", time.Hour)
	v.SetDefault("scheduler.run_on_start", true)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.prefix", "raw")
}

// Validate checks required settings so the process fails fast at startup.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return ErrMissingDatabaseURL
	}
	switch c.Database.ResolvedDriver() {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database: unknown driver %q", c.Database.Driver)
	}

	switch c.Pipeline.FailurePolicy {
	case FailurePolicyIsolate, FailurePolicyAbort:
	default:
		return fmt.Errorf("pipeline: unknown failure_policy %q", c.Pipeline.FailurePolicy)
	}

	if c.Pipeline.RunTimeout <= 0 {
		return fmt.Errorf("pipeline: run_timeout must be positive")
	}

	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler: interval must be positive")
	}

	for name, src := range map[string]APISourceConfig{
		"coinpaprika": c.Sources.CoinPaprika,
		"coingecko":   c.Sources.CoinGecko,
	} {
		if !src.Enabled {
			continue
		}
		if src.BaseURL == "" {
			return fmt.Errorf("sources.%s: base_url is required", name)
		}
		if src.Limit <= 0 {
			return fmt.Errorf("sources.%s: limit must be positive", name)
		}
	}

	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage: bucket is required when enabled")
	}

	return nil
}
