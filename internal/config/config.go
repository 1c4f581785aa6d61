// Package config loads application configuration from file and environment
// and owns global logger initialization.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Search  SearchConfig  `yaml:"search" mapstructure:"search"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Render  RenderConfig  `yaml:"render" mapstructure:"render"`
	Offline OfflineConfig `yaml:"offline" mapstructure:"offline"`
	Scoring ScoringConfig `yaml:"scoring" mapstructure:"scoring"`
	FX      FXConfig      `yaml:"fx" mapstructure:"fx"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// SearchConfig holds per-operation defaults; a request may override any of
// them within the validated bounds.
type SearchConfig struct {
	Pages       int `yaml:"pages" mapstructure:"pages"`
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// FetchConfig configures the online HTTP fetcher.
type FetchConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
	Proxy          string  `yaml:"proxy" mapstructure:"proxy"`
	Cookie         string  `yaml:"cookie" mapstructure:"cookie"`
}

// RenderConfig configures the headless-browser fallback for blocked pages.
type RenderConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	WaitAfterLoadSecs int  `yaml:"wait_after_load_secs" mapstructure:"wait_after_load_secs"`
}

// OfflineConfig configures snapshot-directory acquisition.
type OfflineConfig struct {
	SnapshotDir string `yaml:"snapshot_dir" mapstructure:"snapshot_dir"`
}

// ScoringConfig points at the factory-trust rules file. Empty means the
// built-in defaults.
type ScoringConfig struct {
	RulesPath string `yaml:"rules_path" mapstructure:"rules_path"`
}

// FXConfig configures the currency-rate cache.
type FXConfig struct {
	CacheDir string        `yaml:"cache_dir" mapstructure:"cache_dir"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
	CBRURL   string        `yaml:"cbr_url" mapstructure:"cbr_url"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("search.pages", 1)
	v.SetDefault("search.concurrency", 3)
	v.SetDefault("search.timeout_secs", 15)
	v.SetDefault("fetch.base_url", "https://s.1688.com/selloffer/offer_search.htm")
	v.SetDefault("fetch.requests_per_sec", 2.0)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("render.enabled", false)
	v.SetDefault("render.wait_after_load_secs", 2)
	v.SetDefault("offline.snapshot_dir", "snapshots")
	v.SetDefault("fx.cache_dir", ".cache")
	v.SetDefault("fx.ttl", time.Hour)
	v.SetDefault("fx.cbr_url", "https://www.cbr.ru/scripts/XML_daily.asp")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a given command depends on. Mode is "search"
// or "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Search.Pages < 1 || c.Search.Pages > 50 {
		problems = append(problems, "search.pages must be between 1 and 50")
	}
	if c.Search.Concurrency < 1 || c.Search.Concurrency > 10 {
		problems = append(problems, "search.concurrency must be between 1 and 10")
	}
	if c.Search.TimeoutSecs <= 0 {
		problems = append(problems, "search.timeout_secs must be > 0")
	}
	if c.Fetch.RequestsPerSec <= 0 {
		problems = append(problems, "fetch.requests_per_sec must be > 0")
	}
	if c.FX.TTL <= 0 {
		problems = append(problems, "fx.ttl must be > 0")
	}

	switch mode {
	case "search":
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
