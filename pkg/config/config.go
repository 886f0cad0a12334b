package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/inkwell/pkg/generate"
	"github.com/platinummonkey/inkwell/pkg/identity"
	"github.com/platinummonkey/inkwell/pkg/notify"
	"github.com/platinummonkey/inkwell/pkg/observability"
	"github.com/platinummonkey/inkwell/pkg/storage/postgres"
)

// Environment variables that locate the other configuration sources
const (
	EnvConfigFile = "INKWELL_CONFIG_FILE"
	EnvEnvFile    = "INKWELL_ENV_FILE"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Identity      identity.Config     `yaml:"identity"`
	Notify        NotifyConfig        `yaml:"notify"`
	Generation    generate.Config     `yaml:"generation"`
	Invitations   InvitationsConfig   `yaml:"invitations"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// DatabaseConfig selects and tunes the SQL database
type DatabaseConfig struct {
	Driver   string        `yaml:"driver"`
	URL      string        `yaml:"url"`
	MaxConns int           `yaml:"max_conns"`
	MinConns int           `yaml:"min_conns"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Connection converts the settings for postgres.Open
func (d DatabaseConfig) Connection() postgres.ConnectionConfig {
	return postgres.ConnectionConfig{
		Driver:      d.Driver,
		URL:         d.URL,
		MaxConns:    d.MaxConns,
		MinConns:    d.MinConns,
		Timeout:     d.Timeout,
		MaxLifetime: 30 * time.Minute,
		MaxIdleTime: 5 * time.Minute,
	}
}

// RedisConfig holds the optional Redis connection. An empty URL disables Redis.
type RedisConfig struct {
	URL        string `yaml:"url"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	MaxRetries int    `yaml:"max_retries"`
	PoolSize   int    `yaml:"pool_size"`
}

// Enabled reports whether a Redis URL is configured
func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

// Client converts the settings for postgres.NewRedisClient
func (r RedisConfig) Client() postgres.RedisConfig {
	return postgres.RedisConfig{
		URL:        r.URL,
		Password:   r.Password,
		DB:         r.DB,
		MaxRetries: r.MaxRetries,
		PoolSize:   r.PoolSize,
	}
}

// NotifyConfig configures invitation delivery and the links it contains
type NotifyConfig struct {
	notify.Config `yaml:",inline"`
	ClientURL     string `yaml:"client_url"`
}

// InvitationsConfig configures the stale invitation janitor
type InvitationsConfig struct {
	TTL      time.Duration `yaml:"ttl"`
	Schedule string        `yaml:"schedule"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level parses LogLevel
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// OTel converts the settings for observability.InitOTel
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigins:     []string{"*"},
			HealthPort:      "9090",
		},
		Database: DatabaseConfig{
			Driver:   postgres.DriverPostgres,
			MaxConns: 20,
			MinConns: 2,
			Timeout:  5 * time.Second,
		},
		Identity: identity.Config{
			CacheSize: identity.DefaultCacheSize,
			CacheTTL:  identity.DefaultCacheTTL,
		},
		Notify: NotifyConfig{
			Config:    notify.Config{Mode: notify.ModeLog, SMTP: notify.SMTPConfig{Port: 587}},
			ClientURL: "http://localhost:3000",
		},
		Generation: generate.Config{
			Model:              generate.DefaultModel,
			Timeout:            60 * time.Second,
			MaxRetries:         2,
			RateLimitPerMinute: 20,
		},
		Invitations: InvitationsConfig{
			TTL:      7 * 24 * time.Hour,
			Schedule: "@hourly",
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "inkwell",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
	}
}

// LoadConfig loads configuration from .env, the optional YAML file named by
// INKWELL_CONFIG_FILE and INKWELL_* environment variables, in that order of
// increasing precedence.
func LoadConfig() (*Config, error) {
	envFile := getEnv(EnvEnvFile, ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	return Load(os.Getenv(EnvConfigFile))
}

// Load builds the configuration from defaults, the YAML file at path (if
// not empty) and the environment, then validates it
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides file and default values with INKWELL_* variables
func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("INKWELL_HOST", s.Host)
	s.Port = getEnv("INKWELL_PORT", s.Port)
	s.HealthPort = getEnv("INKWELL_HEALTH_PORT", s.HealthPort)
	s.ReadTimeout = getEnvDuration("INKWELL_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("INKWELL_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("INKWELL_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("INKWELL_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.CORSOrigins = getEnvList("INKWELL_CORS_ORIGINS", s.CORSOrigins)

	d := &c.Database
	d.Driver = getEnv("INKWELL_DB_DRIVER", d.Driver)
	d.URL = getEnv("INKWELL_DATABASE_URL", d.URL)
	d.MaxConns = getEnvInt("INKWELL_DB_MAX_CONNS", d.MaxConns)
	d.MinConns = getEnvInt("INKWELL_DB_MIN_CONNS", d.MinConns)
	d.Timeout = getEnvDuration("INKWELL_DB_TIMEOUT", d.Timeout)

	r := &c.Redis
	r.URL = getEnv("INKWELL_REDIS_URL", r.URL)
	r.Password = getEnv("INKWELL_REDIS_PASSWORD", r.Password)
	r.DB = getEnvInt("INKWELL_REDIS_DB", r.DB)
	r.MaxRetries = getEnvInt("INKWELL_REDIS_MAX_RETRIES", r.MaxRetries)
	r.PoolSize = getEnvInt("INKWELL_REDIS_POOL_SIZE", r.PoolSize)

	id := &c.Identity
	id.IssuerURL = getEnv("INKWELL_OIDC_ISSUER_URL", id.IssuerURL)
	id.ClientID = getEnv("INKWELL_OIDC_CLIENT_ID", id.ClientID)
	id.SkipIssuerCheck = getEnvBool("INKWELL_OIDC_SKIP_ISSUER_CHECK", id.SkipIssuerCheck)
	id.CacheSize = getEnvInt("INKWELL_IDENTITY_CACHE_SIZE", id.CacheSize)
	id.CacheTTL = getEnvDuration("INKWELL_IDENTITY_CACHE_TTL", id.CacheTTL)

	n := &c.Notify
	n.Mode = notify.Mode(strings.ToLower(getEnv("INKWELL_NOTIFY_MODE", string(n.Mode))))
	n.SMTP.Host = getEnv("INKWELL_SMTP_HOST", n.SMTP.Host)
	n.SMTP.Port = getEnvInt("INKWELL_SMTP_PORT", n.SMTP.Port)
	n.SMTP.Username = getEnv("INKWELL_SMTP_USERNAME", n.SMTP.Username)
	n.SMTP.Password = getEnv("INKWELL_SMTP_PASSWORD", n.SMTP.Password)
	n.SMTP.From = getEnv("INKWELL_SMTP_FROM", n.SMTP.From)
	n.WebhookURL = getEnv("INKWELL_WEBHOOK_URL", n.WebhookURL)
	n.WebhookSecret = getEnv("INKWELL_WEBHOOK_SECRET", n.WebhookSecret)
	n.ClientURL = getEnv("INKWELL_CLIENT_URL", n.ClientURL)

	g := &c.Generation
	g.BaseURL = getEnv("INKWELL_OPENAI_BASE_URL", g.BaseURL)
	g.Model = getEnv("INKWELL_OPENAI_MODEL", g.Model)
	g.SystemAPIKey = getEnv("INKWELL_OPENAI_API_KEY", g.SystemAPIKey)
	g.Timeout = getEnvDuration("INKWELL_OPENAI_TIMEOUT", g.Timeout)
	g.MaxRetries = getEnvInt("INKWELL_OPENAI_MAX_RETRIES", g.MaxRetries)
	g.RateLimitPerMinute = getEnvInt("INKWELL_GENERATE_RATE_LIMIT", g.RateLimitPerMinute)

	c.Invitations.TTL = getEnvDuration("INKWELL_INVITE_TTL", c.Invitations.TTL)
	c.Invitations.Schedule = getEnv("INKWELL_JANITOR_SCHEDULE", c.Invitations.Schedule)

	o := &c.Observability
	o.LogLevel = getEnv("INKWELL_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("INKWELL_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("INKWELL_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("INKWELL_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("INKWELL_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("INKWELL_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("INKWELL_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("INKWELL_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Database.Driver {
	case postgres.DriverPostgres, postgres.DriverSQLite:
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}

	if c.Identity.IssuerURL == "" {
		return fmt.Errorf("OIDC issuer URL is required")
	}

	if err := c.Notify.Validate(); err != nil {
		return err
	}
	if c.Notify.ClientURL == "" {
		return fmt.Errorf("client URL is required for invitation links")
	}

	if c.Generation.RateLimitPerMinute < 0 {
		return fmt.Errorf("generation rate limit cannot be negative")
	}

	if c.Invitations.TTL <= 0 {
		return fmt.Errorf("invitation TTL must be positive")
	}
	if _, err := cron.ParseStandard(c.Invitations.Schedule); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", c.Invitations.Schedule, err)
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
