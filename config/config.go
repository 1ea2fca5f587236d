package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. BOOKING_DATABASE_HOST.
const EnvPrefix = "BOOKING"

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type ServerConfig struct {
	Port               int           `mapstructure:"port" envconfig:"port"`
	BasePath           string        `mapstructure:"base_path" envconfig:"base_path"`
	Mode               string        `mapstructure:"mode" envconfig:"mode"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout" envconfig:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout" envconfig:"write_timeout"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout" envconfig:"request_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" envconfig:"shutdown_timeout"`
	StaticDir          string        `mapstructure:"static_dir" envconfig:"static_dir"`
	ExposeErrorDetails bool          `mapstructure:"expose_error_details" envconfig:"expose_error_details"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" envconfig:"driver"`
	Host            string        `mapstructure:"host" envconfig:"host"`
	Port            int           `mapstructure:"port" envconfig:"port"`
	User            string        `mapstructure:"user" envconfig:"user"`
	Password        string        `mapstructure:"password" envconfig:"password"`
	Name            string        `mapstructure:"name" envconfig:"name"`
	SSLMode         string        `mapstructure:"sslmode" envconfig:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" envconfig:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" envconfig:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" envconfig:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate" envconfig:"auto_migrate"`
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret" envconfig:"secret"`
	Issuer      string `mapstructure:"issuer" envconfig:"issuer"`
	ExpiryHours int    `mapstructure:"expiry_hours" envconfig:"expiry_hours"`
}

func (c JWTConfig) Expiry() time.Duration {
	return time.Duration(c.ExpiryHours) * time.Hour
}

type SecurityConfig struct {
	BcryptCost     int      `mapstructure:"bcrypt_cost" envconfig:"bcrypt_cost"`
	AllowedOrigins []string `mapstructure:"allowed_origins" envconfig:"allowed_origins"`
}

type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled" envconfig:"enabled"`
	RequestsPerSecond float64       `mapstructure:"rps" envconfig:"rps"`
	Burst             int           `mapstructure:"burst" envconfig:"burst"`
	ClientTTL         time.Duration `mapstructure:"client_ttl" envconfig:"client_ttl"`
}

type RedisConfig struct {
	URL           string        `mapstructure:"url" envconfig:"url"`
	ChannelPrefix string        `mapstructure:"channel_prefix" envconfig:"channel_prefix"`
	PoolSize      int           `mapstructure:"pool_size" envconfig:"pool_size"`
	MinIdleConns  int           `mapstructure:"min_idle_conns" envconfig:"min_idle_conns"`
	MaxRetries    int           `mapstructure:"max_retries" envconfig:"max_retries"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff" envconfig:"retry_backoff"`
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size" envconfig:"batch_size"`
	PollInterval  time.Duration `mapstructure:"poll_interval" envconfig:"poll_interval"`
	RetryAttempts int           `mapstructure:"retry_attempts" envconfig:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" envconfig:"retry_delay"`
	Retention     time.Duration `mapstructure:"retention" envconfig:"retention"`
	ClaimLease    time.Duration `mapstructure:"claim_lease" envconfig:"claim_lease"`
}

type MonitoringConfig struct {
	MetricsPath string `mapstructure:"metrics_path" envconfig:"metrics_path"`
	Namespace   string `mapstructure:"namespace" envconfig:"namespace"`
}

type LogConfig struct {
	Level   string `mapstructure:"level" envconfig:"level"`
	Console bool   `mapstructure:"console" envconfig:"console"`
}

type Config struct {
	Server     ServerConfig     `mapstructure:"server" envconfig:"server"`
	Database   DatabaseConfig   `mapstructure:"database" envconfig:"database"`
	JWT        JWTConfig        `mapstructure:"jwt" envconfig:"jwt"`
	Security   SecurityConfig   `mapstructure:"security" envconfig:"security"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit" envconfig:"rate_limit"`
	Redis      RedisConfig      `mapstructure:"redis" envconfig:"redis"`
	Outbox     OutboxConfig     `mapstructure:"outbox" envconfig:"outbox"`
	Monitoring MonitoringConfig `mapstructure:"monitoring" envconfig:"monitoring"`
	Log        LogConfig        `mapstructure:"log" envconfig:"log"`
}

var defaultSearchPaths = []string{".", "./config", "/app/config"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.base_path", "/api")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.request_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("server.expose_error_details", false)

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "booking")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("jwt.issuer", "booking-api")
	v.SetDefault("jwt.expiry_hours", 24)

	v.SetDefault("security.bcrypt_cost", 10)
	v.SetDefault("security.allowed_origins", []string{"*"})

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.rps", 20)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("rate_limit.client_ttl", "10m")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.channel_prefix", "booking")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", "100ms")

	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", "1s")
	v.SetDefault("outbox.retry_attempts", 3)
	v.SetDefault("outbox.retry_delay", "500ms")
	v.SetDefault("outbox.retention", "168h")
	v.SetDefault("outbox.claim_lease", "5m")

	v.SetDefault("monitoring.metrics_path", "/metrics")
	v.SetDefault("monitoring.namespace", "booking")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", false)
}

// LoadConfig reads .env, then config.yml from the search paths (defaults when
// absent), then applies BOOKING_* environment overrides.
func LoadConfig(searchPaths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if len(searchPaths) == 0 {
		searchPaths = defaultSearchPaths
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	if c.JWT.ExpiryHours <= 0 {
		return errors.New("jwt.expiry_hours must be positive")
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}
