package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/urbanisme-sn/portail/internal/utils"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	Models   ModelsConfig   `mapstructure:"models"`
	Form     FormConfig     `mapstructure:"form"`
	Export   ExportConfig   `mapstructure:"export"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	Mode        string   `mapstructure:"mode"`         // "development" or "production"
	CORSOrigins []string `mapstructure:"cors_origins"` // Allowed origins; "*" allows any
	Timezone    string   `mapstructure:"timezone"`     // IANA zone used for displayed dates
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`            // "sqlite" or "postgres"
	DSN             string `mapstructure:"dsn"`               // Connection string
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`    // Maximum idle connections (Postgres)
	MaxOpenConns    int    `mapstructure:"max_open_conns"`    // Maximum open connections (Postgres)
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // Connection max lifetime in minutes (Postgres)
	LogLevel        string `mapstructure:"log_level"`         // GORM log level; defaults to log.level
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"` // Secret for JWT signing
}

// LogConfig holds logging configuration
type LogConfig struct {
	Format string `mapstructure:"format"` // "json" or "text"
	Level  string `mapstructure:"level"`  // "debug", "info", "warn", "error"
}

// ModelsConfig points at extra model definitions loaded at startup
type ModelsConfig struct {
	ConfigDir string `mapstructure:"config_dir"` // Directory of yaml/toml/json definitions
}

// FormConfig holds form defaults
type FormConfig struct {
	HiddenFieldPolicy string `mapstructure:"hidden_field_policy"` // "clear" or "retain"
	MaxFileSize       string `mapstructure:"max_file_size"`       // e.g. "10MB"
	DirectVisibility  bool   `mapstructure:"direct_visibility"`   // Ignore whether a dependency's target is itself shown
}

// ExportConfig holds export limits
type ExportConfig struct {
	MaxRows int `mapstructure:"max_rows"`
}

// MaxFileSizeBytes parses Form.MaxFileSize.
func (c *Config) MaxFileSizeBytes() (int64, error) {
	return utils.ParseBytes(c.Form.MaxFileSize)
}

// Location returns the display time zone, falling back to UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	if c.Server.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Server.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults for local development
	v.SetDefault("server.port", 8460)
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.timezone", "Africa/Dakar")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./portail.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60) // 60 minutes
	v.SetDefault("auth.jwt_secret", "change-me-in-production")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "info")
	v.SetDefault("models.config_dir", "./models")
	v.SetDefault("form.hidden_field_policy", "clear")
	v.SetDefault("form.max_file_size", "10MB")
	v.SetDefault("form.direct_visibility", false)
	v.SetDefault("export.max_rows", 10000)

	// Read from config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/portail/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, using defaults
	}

	// Environment variables override
	v.SetEnvPrefix("PORTAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if _, err := cfg.MaxFileSizeBytes(); err != nil {
		return nil, fmt.Errorf("invalid form.max_file_size: %w", err)
	}

	return &cfg, nil
}
