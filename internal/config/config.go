// Package config loads loglayout settings from defaults, an optional
// config file and LOGLAYOUT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/qmjianda/loglayout-sub001/internal/engine"
	"github.com/qmjianda/loglayout-sub001/internal/history"
	"github.com/qmjianda/loglayout-sub001/internal/logging"
	"github.com/qmjianda/loglayout-sub001/internal/processor"
	"github.com/qmjianda/loglayout-sub001/internal/source"
	"github.com/qmjianda/loglayout-sub001/internal/view"
)

// EnvPrefix prefixes every environment override, e.g.
// LOGLAYOUT_SERVER_ADDR or LOGLAYOUT_ENGINE_DEBOUNCE_SMALL.
const EnvPrefix = "LOGLAYOUT"

// Config is the full configuration tree.
type Config struct {
	Engine  EngineConfig   `mapstructure:"engine"`
	Source  SourceConfig   `mapstructure:"source"`
	Server  ServerConfig   `mapstructure:"server"`
	Presets PresetConfig   `mapstructure:"presets"`
	Log     logging.Config `mapstructure:"log"`
}

type EngineConfig struct {
	BatchSize    int             `mapstructure:"batch_size"`
	Buckets      int             `mapstructure:"buckets"`
	HistoryLimit int             `mapstructure:"history_limit"`
	Debounce     engine.Debounce `mapstructure:"debounce"`
}

type SourceConfig struct {
	BatchLines    int           `mapstructure:"batch_lines"`
	Follow        bool          `mapstructure:"follow"`
	StatsInterval time.Duration `mapstructure:"stats_interval"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// TokenHash is a bcrypt hash; empty disables auth.
	TokenHash       string        `mapstructure:"token_hash"`
	WebDir          string        `mapstructure:"web_dir"`
	MaxWindow       int           `mapstructure:"max_window"`
	Background      string        `mapstructure:"background"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type PresetConfig struct {
	// Driver is "bundle" or "sqlite".
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	// AutosaveDir holds per-source layer journals; empty disables autosave.
	AutosaveDir string `mapstructure:"autosave_dir"`
}

// DataDir is where presets and autosave journals live by default.
func DataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "loglayout")
	}
	return ".loglayout"
}

func setDefaults(v *viper.Viper) {
	data := DataDir()

	v.SetDefault("engine.batch_size", engine.DefaultBatchSize)
	v.SetDefault("engine.buckets", processor.DefaultBuckets)
	v.SetDefault("engine.history_limit", history.DefaultLimit)
	v.SetDefault("engine.debounce.small", engine.DefaultDebounce.Small)
	v.SetDefault("engine.debounce.medium", engine.DefaultDebounce.Medium)
	v.SetDefault("engine.debounce.large", engine.DefaultDebounce.Large)
	v.SetDefault("engine.debounce.small_lines", engine.DefaultDebounce.SmallLines)
	v.SetDefault("engine.debounce.medium_lines", engine.DefaultDebounce.MediumLines)

	v.SetDefault("source.batch_lines", source.DefaultBatchLines)
	v.SetDefault("source.follow", false)
	v.SetDefault("source.stats_interval", time.Second)

	v.SetDefault("server.addr", ":8089")
	v.SetDefault("server.token_hash", "")
	v.SetDefault("server.web_dir", "")
	v.SetDefault("server.max_window", 5000)
	v.SetDefault("server.background", view.DefaultBackground)
	v.SetDefault("server.idle_timeout", 30*time.Minute)
	v.SetDefault("server.cleanup_interval", time.Minute)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("presets.driver", "bundle")
	v.SetDefault("presets.path", filepath.Join(data, "presets.llb"))
	v.SetDefault("presets.autosave_dir", filepath.Join(data, "autosave"))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 14)
	v.SetDefault("log.no_color", false)
	v.SetDefault("log.quiet", false)
}

// Load reads the configuration. An explicit path must exist; without one
// loglayout.{yaml,toml,json} is looked up in the working directory and
// DataDir, and a missing file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("loglayout")
		v.AddConfigPath(".")
		v.AddConfigPath(DataDir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// EngineOptions converts the engine section into session options.
func (c Config) EngineOptions(metrics *engine.Metrics, log zerolog.Logger) engine.Options {
	return engine.Options{
		BatchSize:    c.Engine.BatchSize,
		Buckets:      c.Engine.Buckets,
		Debounce:     c.Engine.Debounce,
		HistoryLimit: c.Engine.HistoryLimit,
		Metrics:      metrics,
		Logger:       log,
	}
}
