// Package config loads dashboard settings from defaults, an optional config
// file and TELESCOPE_DASHBOARD_* environment variables, in that order of
// increasing precedence.
package config

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/go-errors/errors"
	"github.com/spf13/viper"

	"github.com/strrl/telescope-dashboard/pkg/catalog"
	"github.com/strrl/telescope-dashboard/pkg/store"
)

// EnvPrefix prefixes environment overrides, e.g. TELESCOPE_DASHBOARD_STORAGE_DSN.
const EnvPrefix = "TELESCOPE_DASHBOARD"

// Gate names with built-in credential checks.
const (
	GateBasic = "basic"
	GateToken = "token"
)

// Middleware names, in their default order.
const (
	MiddlewareRecover   = "recover"
	MiddlewareRequestID = "request_id"
	MiddlewareLogging   = "logging"
	MiddlewareGzip      = "gzip"
)

// Middlewares lists every known middleware name.
var Middlewares = []string{MiddlewareRecover, MiddlewareRequestID, MiddlewareLogging, MiddlewareGzip}

// Config is the dashboard configuration.
type Config struct {
	Enabled     bool                 `mapstructure:"enabled" yaml:"enabled"`
	Path        string               `mapstructure:"path" yaml:"path"`
	Listen      string               `mapstructure:"listen" yaml:"listen"`
	Gate        string               `mapstructure:"gate" yaml:"gate"`
	Auth        AuthConfig           `mapstructure:"auth" yaml:"auth"`
	Storage     StorageConfig        `mapstructure:"storage" yaml:"storage"`
	PerPage     int                  `mapstructure:"per_page" yaml:"per_page"`
	MaxPerPage  int                  `mapstructure:"max_per_page" yaml:"max_per_page"`
	RouteGroups []catalog.RouteGroup `mapstructure:"route_groups" yaml:"route_groups"`
	Middleware  []string             `mapstructure:"middleware" yaml:"middleware"`
	Log         LogConfig            `mapstructure:"log" yaml:"log"`
}

// AuthConfig holds gate credentials.
type AuthConfig struct {
	// Users maps username to bcrypt hash. Keys are lowercased by the loader.
	Users map[string]string `mapstructure:"users" yaml:"users"`
	Token string            `mapstructure:"token" yaml:"token"`
}

// StorageConfig selects the entry database.
type StorageConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SlogLevel parses Level, defaulting to info.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, &ConfigError{Field: "log.level", Message: err.Error()}
	}
	return level, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		Path:    "telescope-dashboard",
		Listen:  ":8080",
		Gate:    "viewTelescope",
		Auth:    AuthConfig{Users: map[string]string{}},
		Storage: StorageConfig{
			Driver: store.DriverDuckDB,
			DSN:    "telescope.duckdb",
		},
		PerPage:    50,
		MaxPerPage: 200,
		RouteGroups: []catalog.RouteGroup{
			{Name: "api", Pattern: "/api/v*"},
			{Name: "nova-api", Pattern: "/nova-api/*"},
			{Name: "web", Pattern: "/*"},
		},
		Middleware: slices.Clone(Middlewares),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("enabled", d.Enabled)
	v.SetDefault("path", d.Path)
	v.SetDefault("listen", d.Listen)
	v.SetDefault("gate", d.Gate)
	v.SetDefault("auth.users", d.Auth.Users)
	v.SetDefault("auth.token", d.Auth.Token)
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.dsn", d.Storage.DSN)
	v.SetDefault("per_page", d.PerPage)
	v.SetDefault("max_per_page", d.MaxPerPage)

	groups := make([]map[string]any, len(d.RouteGroups))
	for i, g := range d.RouteGroups {
		groups[i] = map[string]any{"name": g.Name, "pattern": g.Pattern}
	}
	v.SetDefault("route_groups", groups)
	v.SetDefault("middleware", d.Middleware)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads the configuration. file may be empty, in which case only
// defaults and the environment apply. The result is validated.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Errorf("decode config: %w", err)
	}
	cfg.Path = strings.Trim(cfg.Path, "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.PerPage < 1 {
		return &ConfigError{Field: "per_page", Message: "must be at least 1"}
	}
	if c.MaxPerPage < c.PerPage {
		return &ConfigError{Field: "max_per_page", Message: "must not be less than per_page"}
	}
	if !slices.Contains(store.Drivers, c.Storage.Driver) {
		return &ConfigError{Field: "storage.driver", Message: "unsupported driver " + c.Storage.Driver}
	}
	for _, m := range c.Middleware {
		if !slices.Contains(Middlewares, m) {
			return &ConfigError{Field: "middleware", Message: "unknown middleware " + m}
		}
	}
	seen := map[string]bool{}
	for _, g := range c.RouteGroups {
		if g.Name == "" || g.Pattern == "" {
			return &ConfigError{Field: "route_groups", Message: "every group needs a name and a pattern"}
		}
		if seen[g.Name] {
			return &ConfigError{Field: "route_groups", Message: "duplicate group " + g.Name}
		}
		seen[g.Name] = true
	}
	switch c.Gate {
	case GateBasic:
		if len(c.Auth.Users) == 0 {
			return &ConfigError{Field: "auth.users", Message: "required by the basic gate"}
		}
	case GateToken:
		if c.Auth.Token == "" {
			return &ConfigError{Field: "auth.token", Message: "required by the token gate"}
		}
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return &ConfigError{Field: "log.format", Message: "must be text or json"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
