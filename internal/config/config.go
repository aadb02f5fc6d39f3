// Package config provides application configuration management.
// Configuration is read once at process start from defaults, an optional config
// file and WEAVEFEED_ACCOUNTS_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "WEAVEFEED_ACCOUNTS_"

// DefaultAdminPassword is the seed credential used when none is configured.
const DefaultAdminPassword = "admin"

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	// Config file location, env only.
	ConfigFile         string `env:"CONFIG_FILE" mapstructure:"-"`
	ConfigFileRequired bool   `env:"CONFIG_FILE_REQUIRED" mapstructure:"-"`

	Database DatabaseConfig `envPrefix:"DB_" mapstructure:"database"`
	Logging  LoggingConfig  `envPrefix:"LOG_" mapstructure:"logging"`
	Admin    AdminConfig    `envPrefix:"ADMIN_" mapstructure:"admin"`
	Redis    RedisConfig    `envPrefix:"REDIS_" mapstructure:"redis"`
	Login    LoginConfig    `envPrefix:"LOGIN_" mapstructure:"login"`
}

// DatabaseConfig describes how to reach the accounts database.
type DatabaseConfig struct {
	Driver         string        `env:"DRIVER" mapstructure:"driver"`
	User           string        `env:"USER" mapstructure:"user"`
	Password       string        `env:"PASSWORD" mapstructure:"password"`
	Name           string        `env:"NAME" mapstructure:"name"`
	Host           string        `env:"HOST" mapstructure:"host"`
	Port           int           `env:"PORT" mapstructure:"port"`
	SSLMode        string        `env:"SSLMODE" mapstructure:"sslmode"`
	Path           string        `env:"PATH" mapstructure:"path"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" mapstructure:"connect_timeout"`
	MaxConns       int32         `env:"MAX_CONNS" mapstructure:"max_conns"`
	MinConns       int32         `env:"MIN_CONNS" mapstructure:"min_conns"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string `env:"LEVEL" mapstructure:"level"`
	Format string `env:"FORMAT" mapstructure:"format"`
}

// AdminConfig is the administrator account seeded by bootstrap.
type AdminConfig struct {
	Username    string `env:"USERNAME" mapstructure:"username"`
	Email       string `env:"EMAIL" mapstructure:"email"`
	Password    string `env:"PASSWORD" mapstructure:"password"`
	DisplayName string `env:"DISPLAY_NAME" mapstructure:"display_name"`
}

// RedisConfig is optional; an empty URL disables login throttling.
type RedisConfig struct {
	URL string `env:"URL" mapstructure:"url"`
}

// LoginConfig tunes failed-login throttling.
type LoginConfig struct {
	RatePerMinute int `env:"RATE_PER_MINUTE" mapstructure:"rate_per_minute"`
	Burst         int `env:"BURST" mapstructure:"burst"`
}

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:         DriverPostgres,
			User:           "__INVALID__",
			Password:       "__INVALID__",
			Name:           "__INVALID__",
			Host:           "127.0.0.1",
			Port:           5432,
			SSLMode:        "disable",
			Path:           "accounts.db",
			ConnectTimeout: 5 * time.Second,
			MaxConns:       10,
			MinConns:       1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Admin: AdminConfig{
			Username:    "admin",
			Email:       "admin@weavefeed.local",
			Password:    DefaultAdminPassword,
			DisplayName: "Administrator",
		},
		Login: LoginConfig{
			RatePerMinute: 10,
			Burst:         5,
		},
	}
}

// LoadOptions adjusts how Load resolves configuration.
type LoadOptions struct {
	// ConfigFile overrides CONFIG_FILE when non-empty.
	ConfigFile string
	// Environment replaces the process environment when non-nil.
	Environment map[string]string
}

// Load builds the Config: defaults, then the config file, then environment.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()

	envOpts := env.Options{Prefix: EnvPrefix, Environment: opts.Environment}

	// First pass only discovers the config file location.
	if err := env.ParseWithOptions(cfg, envOpts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if opts.ConfigFile != "" {
		cfg.ConfigFile = opts.ConfigFile
	}

	if cfg.ConfigFile != "" {
		if err := readFile(cfg); err != nil {
			return nil, err
		}
		// Environment wins over the file.
		if err := env.ParseWithOptions(cfg, envOpts); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		if opts.ConfigFile != "" {
			cfg.ConfigFile = opts.ConfigFile
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(cfg *Config) error {
	v := viper.New()
	v.SetConfigFile(cfg.ConfigFile)

	if err := v.ReadInConfig(); err != nil {
		if cfg.ConfigFileRequired {
			return fmt.Errorf("failed to read config file %s: %w", cfg.ConfigFile, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", cfg.ConfigFile, err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to decode config file %s: %w", cfg.ConfigFile, err)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Errorf("database port %d out of range", c.Database.Port))
		}
		if c.Database.Host == "" {
			errs = append(errs, errors.New("database host is required"))
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database path is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}

	if c.Database.MaxConns < 1 {
		errs = append(errs, errors.New("database max_conns must be at least 1"))
	}
	if c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		errs = append(errs, fmt.Errorf("database min_conns %d must be between 0 and max_conns", c.Database.MinConns))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q", c.Logging.Format))
	}

	if strings.TrimSpace(c.Admin.Username) == "" {
		errs = append(errs, errors.New("admin username is required"))
	}
	if c.Admin.Password == "" {
		errs = append(errs, errors.New("admin password is required"))
	}

	if c.Login.RatePerMinute < 0 || c.Login.Burst < 0 {
		errs = append(errs, errors.New("login throttle settings must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// DSN returns a keyword/value connection string for PostgreSQL.
func (d DatabaseConfig) DSN() string {
	parts := []string{
		"host=" + quoteDSNValue(d.Host),
		"port=" + strconv.Itoa(d.Port),
		"user=" + quoteDSNValue(d.User),
		"password=" + quoteDSNValue(d.Password),
		"dbname=" + quoteDSNValue(d.Name),
	}
	if d.SSLMode != "" {
		parts = append(parts, "sslmode="+quoteDSNValue(d.SSLMode))
	}
	if d.ConnectTimeout > 0 {
		secs := int(d.ConnectTimeout.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		parts = append(parts, "connect_timeout="+strconv.Itoa(secs))
	}
	return strings.Join(parts, " ")
}

// LogValue keeps the password out of logs.
func (d DatabaseConfig) LogValue() slog.Value {
	if d.Driver == DriverSQLite {
		return slog.GroupValue(
			slog.String("driver", d.Driver),
			slog.String("path", d.Path),
		)
	}
	return slog.GroupValue(
		slog.String("driver", d.Driver),
		slog.String("host", d.Host),
		slog.Int("port", d.Port),
		slog.String("user", d.User),
		slog.String("name", d.Name),
	)
}

// quoteDSNValue quotes a libpq keyword value when it holds spaces, quotes or
// backslashes.
func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}
