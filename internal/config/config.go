package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Queue      QueueConfig      `yaml:"queue"`
	Worker     WorkerConfig     `yaml:"worker"`
	Delivery   DeliveryConfig   `yaml:"delivery"`
	Retry      RetryConfig      `yaml:"retry"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // "sqlite" or "postgres"
	Path     string         `yaml:"path"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	DBName         string `yaml:"dbname"`
	SSLMode        string `yaml:"sslmode"`
	MaxConnections int    `yaml:"max_connections"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type QueueConfig struct {
	Backend    string `yaml:"backend"` // "redis", "memory", or "failover"
	Name       string `yaml:"name"`
	MemorySize int    `yaml:"memory_size"`
}

type WorkerConfig struct {
	Count         int      `yaml:"count"`
	PopTimeout    Duration `yaml:"pop_timeout"`
	ShutdownGrace Duration `yaml:"shutdown_grace"`
}

type DeliveryConfig struct {
	TimeoutSeconds        int `yaml:"timeout_seconds"`
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds"`
	MaxBodyLogBytes       int `yaml:"max_body_log_bytes"`
}

// RetryConfig controls the default retry budget applied to tasks that
// don't request their own, and the base of the exponential backoff
// between attempts (delay = baseDelaySeconds^retryCount).
type RetryConfig struct {
	MaxRetries       int `yaml:"max_retries"`
	BaseDelaySeconds int `yaml:"base_delay_seconds"`
}

type SchedulerConfig struct {
	RetryScanInterval Duration `yaml:"retry_scan_interval"`
	RetryBatchSize    int      `yaml:"retry_batch_size"`
	RecoveryInterval  Duration `yaml:"recovery_interval"`
	StuckThreshold    Duration `yaml:"stuck_threshold"`
}

type BackupConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Interval      Duration `yaml:"interval"`
	RetentionDays int      `yaml:"retention_days"`
	StoragePath   string   `yaml:"storage_path"`
}

// Duration wraps time.Duration so config values can be written as
// human-readable strings ("30s", "5m") in YAML rather than raw
// nanosecond integers.
type Duration time.Duration

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML parses a duration string into its nanosecond form.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	PrometheusPort    int    `yaml:"prometheus_port"`
	LogLevel          string `yaml:"log_level"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
}

type APIRateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

// Load reads a .env file if present, then the YAML config at configPath,
// expanding ${VAR} references against the process environment before
// unmarshaling, and applies defaults and validation.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expanded := []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Database.Driver == "postgres" {
		if c.Database.Postgres.Host == "" {
			return errors.New("database.postgres.host is required when driver is postgres")
		}
	} else if c.Database.Path == "" {
		return errors.New("database.path is required for the sqlite driver")
	}

	if c.Queue.Backend != "redis" && c.Queue.Backend != "memory" && c.Queue.Backend != "failover" {
		return fmt.Errorf("unsupported queue backend: %s", c.Queue.Backend)
	}

	if c.Queue.Backend != "memory" && c.Redis.Address == "" {
		return errors.New("redis.address is required for the redis and failover queue backends")
	}

	if c.Worker.Count <= 0 {
		return errors.New("worker.count must be positive")
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "notification-relay"
	}
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/relay.db"
	}
	if c.Database.Postgres.MaxConnections == 0 {
		c.Database.Postgres.MaxConnections = 25
	}

	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}

	if c.Queue.Backend == "" {
		c.Queue.Backend = "memory"
	}
	if c.Queue.Name == "" {
		c.Queue.Name = "notification:queue"
	}
	if c.Queue.MemorySize == 0 {
		c.Queue.MemorySize = 1000
	}

	if c.Worker.Count == 0 {
		c.Worker.Count = 4
	}
	if c.Worker.PopTimeout == 0 {
		c.Worker.PopTimeout = Duration(5 * time.Second)
	}
	if c.Worker.ShutdownGrace == 0 {
		c.Worker.ShutdownGrace = Duration(30 * time.Second)
	}

	if c.Delivery.TimeoutSeconds == 0 {
		c.Delivery.TimeoutSeconds = 30
	}
	if c.Delivery.ConnectTimeoutSeconds == 0 {
		c.Delivery.ConnectTimeoutSeconds = 5
	}
	if c.Delivery.MaxBodyLogBytes == 0 {
		c.Delivery.MaxBodyLogBytes = 2000
	}

	if c.Retry.MaxRetries == 0 {
		c.Retry.MaxRetries = 5
	}
	if c.Retry.BaseDelaySeconds == 0 {
		c.Retry.BaseDelaySeconds = 2
	}

	if c.Scheduler.RetryScanInterval == 0 {
		c.Scheduler.RetryScanInterval = Duration(10 * time.Second)
	}
	if c.Scheduler.RetryBatchSize == 0 {
		c.Scheduler.RetryBatchSize = 100
	}
	if c.Scheduler.RecoveryInterval == 0 {
		c.Scheduler.RecoveryInterval = Duration(60 * time.Second)
	}
	if c.Scheduler.StuckThreshold == 0 {
		c.Scheduler.StuckThreshold = Duration(5 * time.Minute)
	}

	if c.Backup.RetentionDays == 0 {
		c.Backup.RetentionDays = 7
	}
	if c.Backup.Interval == 0 {
		c.Backup.Interval = Duration(24 * time.Hour)
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "data/backups"
	}

	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 10
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 20
	}
}
