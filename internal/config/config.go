// Package config loads and validates partscout configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/partscout/internal/extract"
	"github.com/JakeFAU/partscout/internal/source"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendGCS    = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Render    RenderConfig    `mapstructure:"render"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Selectors SelectorsConfig `mapstructure:"selectors"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// RenderConfig configures page rendering. Headless selects chromedp for inventory pages;
// sold results are fetched statically and promoted to the browser when incomplete.
type RenderConfig struct {
	Headless            bool   `mapstructure:"headless"`
	Visible             bool   `mapstructure:"visible"`
	MaxParallel         int    `mapstructure:"max_parallel"`
	MaxParallelBranches int    `mapstructure:"max_parallel_branches"`
	UserAgent           string `mapstructure:"user_agent"`
	RespectRobots       bool   `mapstructure:"respect_robots"`
	NavTimeoutSeconds   int    `mapstructure:"nav_timeout_seconds"`
	WaitTimeoutSeconds  int    `mapstructure:"wait_timeout_seconds"`
	FetchTimeoutSeconds int    `mapstructure:"fetch_timeout_seconds"`
	ScrollRounds        int    `mapstructure:"scroll_rounds"`
	ScrollPauseMs       int    `mapstructure:"scroll_pause_ms"`
	SettleMs            int    `mapstructure:"settle_ms"`
	// PromotionThreshold is the body size below which a script-heavy static page is re-rendered
	// in the browser.
	PromotionThreshold int `mapstructure:"promotion_threshold"`
}

// RateLimitConfig bounds requests per target host.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// SourcesConfig points at the inventory and sold-search sites.
type SourcesConfig struct {
	InventoryURL    string          `mapstructure:"inventory_url"`
	SoldSearchURL   string          `mapstructure:"sold_search_url"`
	PageSize        int             `mapstructure:"page_size"`
	Branches        []source.Branch `mapstructure:"branches"`
	DefaultMinPrice float64         `mapstructure:"default_min_price"`
	DefaultMaxPrice float64         `mapstructure:"default_max_price"`
	Buckets         int             `mapstructure:"buckets"`
}

// SelectorsConfig overrides extractor selectors. Empty fields keep the defaults.
type SelectorsConfig struct {
	Inventory extract.InventorySelectors `mapstructure:"inventory"`
	Market    extract.MarketSelectors    `mapstructure:"market"`
}

// StorageConfig selects where rendered snapshots are archived.
type StorageConfig struct {
	Backend       string `mapstructure:"backend"`
	Bucket        string `mapstructure:"bucket"`
	BaseDir       string `mapstructure:"base_dir"`
	Prefix        string `mapstructure:"prefix"`
	ContentType   string `mapstructure:"content_type"`
	KeepSnapshots bool   `mapstructure:"keep_snapshots"`
}

// DBConfig controls access to the report database. An empty DSN keeps reports in memory.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// PubSubConfig holds metadata for report notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PARTSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 120)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("render.headless", true)
	v.SetDefault("render.max_parallel", 2)
	v.SetDefault("render.max_parallel_branches", 3)
	v.SetDefault("render.user_agent", "partscout/0.1")
	v.SetDefault("render.respect_robots", false)
	v.SetDefault("render.nav_timeout_seconds", 45)
	v.SetDefault("render.wait_timeout_seconds", 15)
	v.SetDefault("render.fetch_timeout_seconds", 30)
	v.SetDefault("render.scroll_rounds", 3)
	v.SetDefault("render.scroll_pause_ms", 1500)
	v.SetDefault("render.settle_ms", 500)
	v.SetDefault("render.promotion_threshold", 2048)
	v.SetDefault("ratelimit.rps", 0.5)
	v.SetDefault("ratelimit.burst", 1)
	v.SetDefault("sources.inventory_url", source.DefaultInventoryURL)
	v.SetDefault("sources.sold_search_url", source.DefaultSoldSearchURL)
	v.SetDefault("sources.page_size", 42)
	v.SetDefault("sources.default_min_price", 150)
	v.SetDefault("sources.default_max_price", 600)
	v.SetDefault("sources.buckets", extract.DefaultBuckets)
	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.base_dir", "")
	v.SetDefault("storage.prefix", "snapshots")
	v.SetDefault("storage.content_type", "text/html; charset=utf-8")
	v.SetDefault("storage.keep_snapshots", true)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "market_reports")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime", time.Hour)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Render.Headless && c.Render.MaxParallel <= 0 {
		return fmt.Errorf("render.max_parallel must be > 0 when headless is enabled")
	}
	if c.Render.ScrollRounds < 0 {
		return fmt.Errorf("render.scroll_rounds must be >= 0")
	}
	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("ratelimit.rps must be >= 0")
	}
	if c.Sources.DefaultMinPrice < 0 || c.Sources.DefaultMinPrice > c.Sources.DefaultMaxPrice {
		return fmt.Errorf("sources.default_min_price must be between 0 and sources.default_max_price")
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendLocal:
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir must be set for the local backend")
		}
	case BackendGCS:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q must be one of memory, local, gcs", c.Storage.Backend)
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	return nil
}

// RequestTimeout is the per-request budget of the HTTP API.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// Catalog converts the sources section into a catalog configuration.
func (c Config) Catalog() source.Config {
	return source.Config{
		InventoryURL:  c.Sources.InventoryURL,
		SoldSearchURL: c.Sources.SoldSearchURL,
		Branches:      c.Sources.Branches,
		PageSize:      c.Sources.PageSize,
		ItemSearchMin: c.Sources.DefaultMinPrice,
		ItemSearchMax: c.Sources.DefaultMaxPrice,
	}
}

// Extract converts the selectors section into an extractor configuration.
func (c Config) Extract() extract.Config {
	return extract.Config{Inventory: c.Selectors.Inventory, Market: c.Selectors.Market}
}
