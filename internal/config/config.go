// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/restockd/restockd/internal/fetch"
	"github.com/restockd/restockd/internal/logging"
	"github.com/restockd/restockd/internal/snapshot"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Store     StoreConfig     `mapstructure:"store"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Logging   logging.Config  `mapstructure:"logging"`
	Watchlist []WatchlistItem `mapstructure:"watchlist"`
}

// WatchlistItem declares one product to track. Items are seeded into the
// store at startup; URLs already present are left untouched.
type WatchlistItem struct {
	Name  string `mapstructure:"name"`
	Brand string `mapstructure:"brand"`
	URL   string `mapstructure:"url"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// SchedulerConfig governs the periodic sweep.
type SchedulerConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
	PaceMs          int `mapstructure:"pace_ms"`
	WarmupSeconds   int `mapstructure:"warmup_seconds"`
}

// FetchConfig configures the fetch pipeline and its fallback channels.
type FetchConfig struct {
	UserAgent      string             `mapstructure:"user_agent"`
	TimeoutSeconds int                `mapstructure:"timeout_seconds"`
	MinBodyBytes   int                `mapstructure:"min_body_bytes"`
	Mirrors        []fetch.MirrorSpec `mapstructure:"mirrors"`
}

// HeadlessConfig configures the headless rendering channel.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// StoreConfig selects the product store backend.
type StoreConfig struct {
	// Backend is "memory" or "postgres".
	Backend string `mapstructure:"backend"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int    `mapstructure:"max_conns"`
	MinConns        int    `mapstructure:"min_conns"`
	MaxConnLifeMins int    `mapstructure:"max_conn_life_minutes"`
}

// PubSubConfig holds metadata for restock notifications. Both fields empty
// means notifications go to the log sink.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// SnapshotConfig selects where raw page bodies are archived.
type SnapshotConfig struct {
	// Backend is "none", "memory", "local" or "gcs".
	Backend string               `mapstructure:"backend"`
	Local   snapshot.LocalConfig `mapstructure:"local"`
	GCS     snapshot.GCSConfig   `mapstructure:"gcs"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RESTOCKD")
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
	v.SetDefault("scheduler.interval_seconds", 600)
	v.SetDefault("scheduler.pace_ms", 2500)
	v.SetDefault("scheduler.warmup_seconds", 5)
	v.SetDefault("fetch.user_agent", fetch.DefaultUserAgent)
	v.SetDefault("fetch.timeout_seconds", 10)
	v.SetDefault("fetch.min_body_bytes", fetch.DefaultMinBodyBytes)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 20)
	v.SetDefault("store.backend", "memory")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_life_minutes", 30)
	v.SetDefault("snapshot.backend", "none")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scheduler.IntervalSeconds <= 0 {
		return fmt.Errorf("scheduler.interval_seconds must be > 0")
	}
	if c.Scheduler.PaceMs < 0 {
		return fmt.Errorf("scheduler.pace_ms must be >= 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.MinBodyBytes < 0 {
		return fmt.Errorf("fetch.min_body_bytes must be >= 0")
	}
	for i, mirror := range c.Fetch.Mirrors {
		if mirror.Name == "" {
			return fmt.Errorf("fetch.mirrors[%d].name is required", i)
		}
		if !strings.Contains(mirror.Endpoint, "%s") {
			return fmt.Errorf("fetch.mirrors[%d].endpoint must contain a %%s placeholder", i)
		}
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	switch c.Store.Backend {
	case "memory":
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn is required for the postgres store backend")
		}
	default:
		return fmt.Errorf("store.backend must be memory or postgres, got %q", c.Store.Backend)
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	switch c.Snapshot.Backend {
	case "", "none", "memory":
	case "local":
		if c.Snapshot.Local.BaseDir == "" {
			return fmt.Errorf("snapshot.local.base_dir is required for the local snapshot backend")
		}
	case "gcs":
		if c.Snapshot.GCS.Bucket == "" {
			return fmt.Errorf("snapshot.gcs.bucket is required for the gcs snapshot backend")
		}
	default:
		return fmt.Errorf("snapshot.backend must be none, memory, local or gcs, got %q", c.Snapshot.Backend)
	}
	for i, item := range c.Watchlist {
		if item.Name == "" {
			return fmt.Errorf("watchlist[%d].name is required", i)
		}
		if item.URL == "" {
			return fmt.Errorf("watchlist[%d].url is required", i)
		}
	}
	return nil
}
