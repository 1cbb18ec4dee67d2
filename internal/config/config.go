// Package config provides application configuration loaded from an optional
// YAML file and environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	App      AppConfig      `yaml:"app"`
	Delegate DelegateConfig `yaml:"delegate"`
	Cache    CacheConfig    `yaml:"cache"`
	Events   EventsConfig   `yaml:"events"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"read_timeout"`  // seconds
	WriteTimeout int    `yaml:"write_timeout"` // seconds
	IdleTimeout  int    `yaml:"idle_timeout"`  // seconds
	CORSOrigin   string `yaml:"cors_origin"`
}

// DatabaseConfig holds store connection settings.
// URL wins over the discrete postgres fields when set.
type DatabaseConfig struct {
	Driver     string `yaml:"driver"` // postgres | sqlite
	URL        string `yaml:"url"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	DBName     string `yaml:"dbname"`
	SSLMode    string `yaml:"sslmode"`
	SQLitePath string `yaml:"sqlite_path"`
	Debug      bool   `yaml:"debug"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev        bool   `yaml:"dev"`
	Migrations bool   `yaml:"migrations"`
	LogLevel   string `yaml:"log_level"`
	APIBase    string `yaml:"api_base"`
}

// DelegateConfig configures the optional natural-language-to-SQL service.
// An empty BaseURL disables forwarding.
type DelegateConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig configures the dashboard aggregate cache.
type CacheConfig struct {
	TTL         time.Duration `yaml:"ttl"`
	Size        int           `yaml:"size"`
	RefreshCron string        `yaml:"refresh_cron"`
}

// EventsConfig configures chat query event publishing. An empty URL disables it.
type EventsConfig struct {
	AMQPURL    string `yaml:"amqp_url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// MigrationURL returns the PostgreSQL connection string in URL format,
// as golang-migrate expects it.
func (d DatabaseConfig) MigrationURL() string {
	if d.URL != "" {
		return d.URL
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "3001",
			ReadTimeout:  15,
			WriteTimeout: 15,
			IdleTimeout:  60,
			CORSOrigin:   "*",
		},
		Database: DatabaseConfig{
			Driver:     "postgres",
			Host:       "localhost",
			Port:       5432,
			User:       "analytics",
			Password:   "analytics",
			DBName:     "flowbit_analytics",
			SSLMode:    "disable",
			SQLitePath: "./data/analytics.db",
		},
		App: AppConfig{
			Dev:      true,
			LogLevel: "info",
			APIBase:  "/api",
		},
		Delegate: DelegateConfig{
			Timeout: 5 * time.Second,
		},
		Cache: CacheConfig{
			TTL:         60 * time.Second,
			Size:        64,
			RefreshCron: "@every 5m",
		},
		Events: EventsConfig{
			Exchange:   "analytics",
			RoutingKey: "chat.query",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvInt("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvInt("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvInt("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.CORSOrigin = getEnv("CORS_ORIGIN", c.Server.CORSOrigin)

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvInt("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("DB_NAME", c.Database.DBName)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.SQLitePath = getEnv("SQLITE_PATH", c.Database.SQLitePath)
	c.Database.Debug = getEnvBool("DB_DEBUG", c.Database.Debug)

	c.App.Dev = getEnvBool("DEV", c.App.Dev)
	c.App.Migrations = getEnvBool("MIGRATIONS", c.App.Migrations)
	c.App.LogLevel = getEnv("LOG_LEVEL", c.App.LogLevel)
	c.App.APIBase = getEnv("API_BASE", c.App.APIBase)

	// VANNA_API_BASE_URL is the historical name of the delegate setting.
	c.Delegate.BaseURL = getEnv("DELEGATE_BASE_URL", getEnv("VANNA_API_BASE_URL", c.Delegate.BaseURL))
	c.Delegate.Timeout = getEnvDuration("DELEGATE_TIMEOUT", c.Delegate.Timeout)

	c.Cache.TTL = getEnvDuration("CACHE_TTL", c.Cache.TTL)
	c.Cache.Size = getEnvInt("CACHE_SIZE", c.Cache.Size)
	if v, ok := os.LookupEnv("CACHE_REFRESH_CRON"); ok {
		c.Cache.RefreshCron = v
	}

	c.Events.AMQPURL = getEnv("AMQP_URL", c.Events.AMQPURL)
	c.Events.Exchange = getEnv("AMQP_EXCHANGE", c.Events.Exchange)
	c.Events.RoutingKey = getEnv("AMQP_ROUTING_KEY", c.Events.RoutingKey)
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Server.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Server.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" && (c.Database.Host == "" || c.Database.DBName == "") {
			errs = append(errs, "postgres driver requires DATABASE_URL or DB_HOST and DB_NAME")
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			errs = append(errs, "sqlite driver requires SQLITE_PATH")
		}
		if c.App.Migrations {
			errs = append(errs, "SQL migrations are only available for the postgres driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid database driver '%s': must be postgres or sqlite", c.Database.Driver))
	}

	if c.Delegate.BaseURL != "" {
		if u, err := url.Parse(c.Delegate.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("invalid delegate base URL '%s': must be an absolute http(s) URL", c.Delegate.BaseURL))
		}
	}
	if c.Delegate.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("invalid delegate timeout %v: must be positive", c.Delegate.Timeout))
	}

	if c.Cache.Size < 1 {
		errs = append(errs, fmt.Sprintf("invalid cache size %d: must be at least 1", c.Cache.Size))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Sprintf("invalid cache TTL %v: must not be negative", c.Cache.TTL))
	}
	if c.Cache.RefreshCron != "" {
		if _, err := cron.ParseStandard(c.Cache.RefreshCron); err != nil {
			errs = append(errs, fmt.Sprintf("invalid cache refresh schedule '%s': %v", c.Cache.RefreshCron, err))
		}
	}

	if c.Events.AMQPURL != "" {
		if u, err := url.Parse(c.Events.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.Events.AMQPURL, err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.Events.Exchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP_URL is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
