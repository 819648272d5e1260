package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Togather-Foundation/agenda/internal/validation"
)

// DevelopmentSecret is the fallback secret used outside production when
// SECRET_KEY is unset.
const DevelopmentSecret = "dev-secret-key"

// MinProductionSecretLength is the minimum SECRET_KEY length accepted in production.
const MinProductionSecretLength = 32

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Server      ServerConfig    `yaml:"server"`
	Database    DatabaseConfig  `yaml:"database"`
	Session     SessionConfig   `yaml:"session"`
	Auth        AuthConfig      `yaml:"auth"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Logging     LoggingConfig   `yaml:"logging"`
	Tracing     TracingConfig   `yaml:"tracing"`
	Metrics     MetricsConfig   `yaml:"metrics"`
	Environment string          `yaml:"environment"`
}

type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"`
}

type DatabaseConfig struct {
	// Driver selects the storage backend: "sqlite" (default) or "postgres".
	Driver         string `yaml:"driver"`
	Path           string `yaml:"path"`
	URL            string `yaml:"url"`
	MaxConnections int    `yaml:"max_connections"`
	MaxIdle        int    `yaml:"max_idle"`
}

type SessionConfig struct {
	Secret      string        `yaml:"secret"`
	TTL         time.Duration `yaml:"ttl"`
	CookieName  string        `yaml:"cookie_name"`
	Secure      bool          `yaml:"secure"`
	CSRFEnabled bool          `yaml:"csrf_enabled"`
}

type AuthConfig struct {
	BcryptCost int `yaml:"bcrypt_cost"`
}

type RateLimitConfig struct {
	// LoginPer15Minutes is the burst of login/register attempts per client;
	// tokens refill at one every three minutes. Zero disables the limiter.
	LoginPer15Minutes int      `yaml:"login_per_15_minutes"`
	TrustedProxyCIDRs []string `yaml:"trusted_proxy_cidrs"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	ServiceName  string  `yaml:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Defaults returns the configuration used when neither a config file nor
// environment variables provide a value.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			BaseURL: "http://localhost:8080",
		},
		Database: DatabaseConfig{
			Driver:         DriverSQLite,
			Path:           "events.db",
			MaxConnections: 10,
			MaxIdle:        5,
		},
		Session: SessionConfig{
			TTL:         14 * 24 * time.Hour,
			CookieName:  "agenda_session",
			CSRFEnabled: true,
		},
		Auth: AuthConfig{
			BcryptCost: bcrypt.DefaultCost,
		},
		RateLimit: RateLimitConfig{
			LoginPer15Minutes: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Exporter:    "stdout",
			ServiceName: "agenda",
			SampleRate:  1.0,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Environment: "development",
	}
}

// Load reads configuration from environment variables on top of Defaults.
func Load() (Config, error) {
	return LoadFile("")
}

// LoadFile reads an optional YAML file (empty path skips it) and then applies
// environment variables, which take precedence over file values.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := readYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)
	cfg.Server.BaseURL = getEnv("SERVER_BASE_URL", cfg.Server.BaseURL)

	cfg.Database.Driver = strings.ToLower(getEnv("DATABASE_DRIVER", cfg.Database.Driver))
	cfg.Database.Path = getEnv("DATABASE_PATH", cfg.Database.Path)
	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxConnections = getEnvInt("DATABASE_MAX_CONNECTIONS", cfg.Database.MaxConnections)
	cfg.Database.MaxIdle = getEnvInt("DATABASE_MAX_IDLE_CONNECTIONS", cfg.Database.MaxIdle)

	cfg.Session.Secret = getEnv("SECRET_KEY", cfg.Session.Secret)
	cfg.Session.TTL = getEnvDuration("SESSION_TTL", cfg.Session.TTL)
	cfg.Session.CookieName = getEnv("SESSION_COOKIE_NAME", cfg.Session.CookieName)
	cfg.Session.Secure = getEnvBool("SESSION_COOKIE_SECURE", cfg.Session.Secure)
	cfg.Session.CSRFEnabled = getEnvBool("CSRF_ENABLED", cfg.Session.CSRFEnabled)

	cfg.Auth.BcryptCost = getEnvInt("BCRYPT_COST", cfg.Auth.BcryptCost)

	cfg.RateLimit.LoginPer15Minutes = getEnvInt("RATE_LIMIT_LOGIN", cfg.RateLimit.LoginPer15Minutes)
	if cidrs := getEnv("TRUSTED_PROXY_CIDRS", ""); cidrs != "" {
		cfg.RateLimit.TrustedProxyCIDRs = splitList(cidrs)
	}

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	cfg.Tracing.Enabled = getEnvBool("TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = getEnv("TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.ServiceName = getEnv("TRACING_SERVICE_NAME", cfg.Tracing.ServiceName)
	cfg.Tracing.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Tracing.OTLPEndpoint)
	cfg.Tracing.SampleRate = getEnvFloat("TRACING_SAMPLE_RATE", cfg.Tracing.SampleRate)

	cfg.Metrics.Enabled = getEnvBool("METRICS_ENABLED", cfg.Metrics.Enabled)

	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsProduction reports whether the configured environment is production.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("DATABASE_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q (must be %q or %q)", c.Database.Driver, DriverSQLite, DriverPostgres)
	}

	if c.Session.Secret == "" {
		if c.IsProduction() {
			return fmt.Errorf("SECRET_KEY is required in production")
		}
		c.Session.Secret = DevelopmentSecret
	}
	if c.IsProduction() && len(c.Session.Secret) < MinProductionSecretLength {
		return fmt.Errorf("SECRET_KEY must be at least %d bytes in production", MinProductionSecretLength)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.Session.CookieName == "" {
		return fmt.Errorf("SESSION_COOKIE_NAME must not be empty")
	}

	if err := validation.ValidateBaseURL(c.Server.BaseURL, "SERVER_BASE_URL", c.Session.Secure); err != nil {
		return err
	}

	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvDuration accepts Go duration strings ("36h") or a bare number of hours.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if hours, err := strconv.Atoi(value); err == nil {
		return time.Duration(hours) * time.Hour
	}
	return fallback
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
