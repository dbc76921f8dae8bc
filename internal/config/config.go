// Package config loads drape's configuration from file, environment and
// flags bound to a viper instance.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kiesman99/drape/internal/logging"
	"github.com/kiesman99/drape/internal/observability"
	"github.com/kiesman99/drape/internal/overlay"
	"github.com/kiesman99/drape/internal/raster"
	"github.com/kiesman99/drape/internal/tiler"
	"github.com/kiesman99/drape/pkg/tile"
)

// Store kinds.
const (
	StoreFile = "file"
	StoreHTTP = "http"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig                `mapstructure:"server"`
	Store    StoreConfig                 `mapstructure:"store"`
	Cache    CacheConfig                 `mapstructure:"cache"`
	Database DatabaseConfig              `mapstructure:"database"`
	Render   RenderConfig                `mapstructure:"render"`
	Log      logging.Config              `mapstructure:"log"`
	Tracing  observability.TracingConfig `mapstructure:"tracing"`
	Overlays []overlay.Overlay           `mapstructure:"overlays"`
}

type ServerConfig struct {
	Bind    string        `mapstructure:"bind"`
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Bind, s.Port)
}

// StoreConfig selects where original images are read from.
type StoreConfig struct {
	Kind      string            `mapstructure:"kind"` // file | http
	Root      string            `mapstructure:"root"`
	BaseURL   string            `mapstructure:"base_url"`
	UserAgent string            `mapstructure:"user_agent"`
	Timeout   time.Duration     `mapstructure:"timeout"`
	Headers   map[string]string `mapstructure:"headers"`
}

// CacheConfig enables the Valkey cache in front of the store.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Addr    string        `mapstructure:"addr"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// DatabaseConfig points at the Postgres overlay registry. An empty DSN
// disables it.
type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	Migrate  bool   `mapstructure:"migrate"`
}

type RenderConfig struct {
	Dimension     int    `mapstructure:"dimension"`
	Placeholder   string `mapstructure:"placeholder"` // fill | blank
	Interpolation string `mapstructure:"interpolation"`
	Compression   string `mapstructure:"compression"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.bind", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout", 30*time.Second)

	v.SetDefault("store.kind", StoreFile)
	v.SetDefault("store.root", ".")
	v.SetDefault("store.base_url", "")
	v.SetDefault("store.user_agent", "drape/1.0.0")
	v.SetDefault("store.timeout", 30*time.Second)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.ttl", 10*time.Minute)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.migrate", false)

	v.SetDefault("render.dimension", tile.DefaultDimension)
	v.SetDefault("render.placeholder", "fill")
	v.SetDefault("render.interpolation", "bilinear")
	v.SetDefault("render.compression", "default")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.add_source", false)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "drape")
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Load applies defaults and DRAPE_* environment overrides to v, then
// unmarshals and validates the result. Any config file must already have
// been read into v.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)

	// DRAPE_STORE_BASE_URL → store.base_url
	v.SetEnvPrefix("DRAPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.Timeout <= 0 {
		errs = append(errs, "server.timeout must be positive")
	}

	switch strings.ToLower(c.Store.Kind) {
	case StoreFile:
		if c.Store.Root == "" {
			errs = append(errs, "store.root is required for the file store")
		}
	case StoreHTTP:
		if c.Store.BaseURL == "" {
			errs = append(errs, "store.base_url is required for the http store")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.kind must be file or http, got %q", c.Store.Kind))
	}
	if c.Store.Timeout < 0 {
		errs = append(errs, "store.timeout must not be negative")
	}

	if c.Cache.Enabled {
		if c.Cache.Addr == "" {
			errs = append(errs, "cache.addr is required when the cache is enabled")
		}
		if c.Cache.TTL <= 0 {
			errs = append(errs, "cache.ttl must be positive")
		}
	}

	if c.Database.MaxConns < 0 {
		errs = append(errs, "database.max_conns must not be negative")
	}

	if c.Render.Dimension <= 0 || c.Render.Dimension > tiler.MaxDimension {
		errs = append(errs, fmt.Sprintf("render.dimension must be 1-%d, got %d", tiler.MaxDimension, c.Render.Dimension))
	}
	if _, err := tiler.ParsePlaceholderMode(c.Render.Placeholder); err != nil {
		errs = append(errs, "render.placeholder: "+err.Error())
	}
	if _, err := raster.Interpolator(c.Render.Interpolation); err != nil {
		errs = append(errs, "render.interpolation: "+err.Error())
	}
	if _, err := raster.CompressionLevel(c.Render.Compression); err != nil {
		errs = append(errs, "render.compression: "+err.Error())
	}

	if c.Tracing.Enabled && (c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1) {
		errs = append(errs, "tracing.sample_ratio must be within [0, 1]")
	}

	if _, err := overlay.NewStatic(c.Overlays...); err != nil {
		errs = append(errs, "overlays: "+err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
