package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/idctl/pkg/observability"
)

// Session store types
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config holds all client configuration
type Config struct {
	API           APIConfig           `yaml:"api"`
	Session       SessionConfig       `yaml:"session"`
	Reconciler    ReconcilerConfig    `yaml:"reconciler"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// APIConfig holds identity API connection settings
type APIConfig struct {
	// BaseURL of the identity service, e.g. http://localhost:8000
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig holds session persistence and authorization settings
type SessionConfig struct {
	StoreType   string        `yaml:"store"`
	FileDir     string        `yaml:"file_dir"`
	RedisURL    string        `yaml:"redis_url"`
	RedisPrefix string        `yaml:"redis_prefix"`
	RedisTTL    time.Duration `yaml:"redis_ttl"`

	// IdentityServiceKey is the roles claim key that carries admin-ness
	IdentityServiceKey string `yaml:"identity_service_key"`
	AdminRole          string `yaml:"admin_role"`

	// ClearUndecodable removes a persisted token that cannot be decoded
	ClearUndecodable bool          `yaml:"clear_undecodable"`
	HydrationTimeout time.Duration `yaml:"hydration_timeout"`
}

// ReconcilerConfig holds assignment batch settings
type ReconcilerConfig struct {
	// Concurrency bounds in-flight assignment calls per save; 0 is unbounded
	Concurrency int `yaml:"concurrency"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// OTLPEndpoint is a host:port OTLP/gRPC collector; empty disables tracing
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 15 * time.Second,
		},
		Session: SessionConfig{
			StoreType:          StoreFile,
			FileDir:            defaultStateDir(),
			RedisPrefix:        "idctl:",
			IdentityServiceKey: "identity-service",
			AdminRole:          "admin",
			ClearUndecodable:   true,
			HydrationTimeout:   10 * time.Second,
		},
		Reconciler: ReconcilerConfig{
			Concurrency: 8,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "warn",
			LogFormat: string(observability.TextFormat),
		},
	}
}

// LoadConfig loads configuration from the config file named by IDCTL_CONFIG
// (or the default location) and then from environment variables
func LoadConfig() (*Config, error) {
	path := getEnv("IDCTL_CONFIG", "")
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
	}
	return load(path, explicit)
}

// LoadConfigFrom loads configuration from the given file, which must exist,
// and then from environment variables
func LoadConfigFrom(path string) (*Config, error) {
	return load(path, true)
}

func load(path string, mustExist bool) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			if mustExist || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	applyEnv(cfg)
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile overlays YAML file contents on cfg
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays IDCTL_* environment variables on cfg
func applyEnv(cfg *Config) {
	cfg.API.BaseURL = getEnv("IDCTL_API_URL", cfg.API.BaseURL)
	cfg.API.Timeout = getEnvDuration("IDCTL_TIMEOUT", cfg.API.Timeout)

	cfg.Session.StoreType = strings.ToLower(getEnv("IDCTL_SESSION_STORE", cfg.Session.StoreType))
	cfg.Session.FileDir = getEnv("IDCTL_SESSION_DIR", cfg.Session.FileDir)
	cfg.Session.RedisURL = getEnv("IDCTL_REDIS_URL", cfg.Session.RedisURL)
	cfg.Session.RedisPrefix = getEnv("IDCTL_REDIS_PREFIX", cfg.Session.RedisPrefix)
	cfg.Session.RedisTTL = getEnvDuration("IDCTL_REDIS_TTL", cfg.Session.RedisTTL)
	cfg.Session.IdentityServiceKey = getEnv("IDCTL_IDENTITY_SERVICE", cfg.Session.IdentityServiceKey)
	cfg.Session.AdminRole = getEnv("IDCTL_ADMIN_ROLE", cfg.Session.AdminRole)
	cfg.Session.ClearUndecodable = getEnvBool("IDCTL_CLEAR_UNDECODABLE", cfg.Session.ClearUndecodable)
	cfg.Session.HydrationTimeout = getEnvDuration("IDCTL_HYDRATION_TIMEOUT", cfg.Session.HydrationTimeout)

	cfg.Reconciler.Concurrency = getEnvInt("IDCTL_CONCURRENCY", cfg.Reconciler.Concurrency)

	cfg.Observability.LogLevel = getEnv("IDCTL_LOG_LEVEL", cfg.Observability.LogLevel)
	cfg.Observability.LogFormat = getEnv("IDCTL_LOG_FORMAT", cfg.Observability.LogFormat)
	cfg.Observability.OTLPEndpoint = getEnv("IDCTL_OTLP_ENDPOINT", cfg.Observability.OTLPEndpoint)
	cfg.Observability.OTLPInsecure = getEnvBool("IDCTL_OTLP_INSECURE", cfg.Observability.OTLPInsecure)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api base URL is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid api base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api base URL must be http or https: %s", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api timeout must be positive")
	}

	switch c.Session.StoreType {
	case StoreMemory:
	case StoreFile:
		if c.Session.FileDir == "" {
			return fmt.Errorf("session file dir is required for file store")
		}
	case StoreRedis:
		if c.Session.RedisURL == "" {
			return fmt.Errorf("redis URL is required for redis store")
		}
	default:
		return fmt.Errorf("invalid session store: %s (must be memory, file, or redis)", c.Session.StoreType)
	}

	if c.Session.IdentityServiceKey == "" {
		return fmt.Errorf("identity service key is required")
	}
	if c.Session.AdminRole == "" {
		return fmt.Errorf("admin role is required")
	}
	if c.Session.HydrationTimeout <= 0 {
		return fmt.Errorf("hydration timeout must be positive")
	}
	if c.Reconciler.Concurrency < 0 {
		return fmt.Errorf("reconciler concurrency cannot be negative")
	}

	switch observability.LogFormat(c.Observability.LogFormat) {
	case observability.TextFormat, observability.JSONFormat:
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Observability.LogFormat)
	}

	return nil
}

// Tracing returns the trace export settings
func (c *Config) Tracing() observability.TracingConfig {
	return observability.TracingConfig{
		Endpoint: c.Observability.OTLPEndpoint,
		Insecure: c.Observability.OTLPInsecure,
	}
}

// LogLevel returns the parsed observability log level
func (c *Config) LogLevel() observability.LogLevel {
	return observability.ParseLogLevel(c.Observability.LogLevel)
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "idctl", "config.yaml")
}

func defaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "idctl")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "idctl")
	}
	return filepath.Join(home, ".local", "state", "idctl")
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

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
