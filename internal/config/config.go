// Package config loads application configuration from config.yaml and
// RECON_* environment variables, with defaults for every tolerance. All
// matching and merge thresholds live here; nothing is hard-coded in the
// engine packages.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kunalmkv/ringbav2-sub000/internal/adjust"
	"github.com/kunalmkv/ringbav2-sub000/internal/match"
	"github.com/kunalmkv/ringbav2-sub000/internal/propagate"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig       `yaml:"store" mapstructure:"store"`
	LeadSource LeadSourceConfig  `yaml:"leadsource" mapstructure:"leadsource"`
	Ringba     RingbaConfig      `yaml:"ringba" mapstructure:"ringba"`
	Match      MatchConfig       `yaml:"match" mapstructure:"match"`
	Adjust     AdjustConfig      `yaml:"adjust" mapstructure:"adjust"`
	Propagate  PropagateConfig   `yaml:"propagate" mapstructure:"propagate"`
	Categories map[string]string `yaml:"categories" mapstructure:"categories"`
	Log        LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
}

// LeadSourceConfig holds lead-delivery reporting API settings.
type LeadSourceConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	EmptyPageLimit int    `yaml:"empty_page_limit" mapstructure:"empty_page_limit"`
	MaxPages       int    `yaml:"max_pages" mapstructure:"max_pages"`
}

// RingbaConfig holds routing-platform API settings.
type RingbaConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	PageSize      int     `yaml:"page_size" mapstructure:"page_size"`
	WriteRPS      float64 `yaml:"write_rps" mapstructure:"write_rps"`
	RetryAttempts int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// MatchConfig exposes the candidate-scoring tolerances.
type MatchConfig struct {
	SameDayWindowMin     int     `yaml:"same_day_window_min" mapstructure:"same_day_window_min"`
	AdjacentDayWindowMin int     `yaml:"adjacent_day_window_min" mapstructure:"adjacent_day_window_min"`
	PayoutTolerance      float64 `yaml:"payout_tolerance" mapstructure:"payout_tolerance"`
	DurationToleranceSec int     `yaml:"duration_tolerance_sec" mapstructure:"duration_tolerance_sec"`
	UseDuration          bool    `yaml:"use_duration" mapstructure:"use_duration"`
}

// AdjustConfig exposes the adjustment-merge tolerances.
type AdjustConfig struct {
	WindowMin        int     `yaml:"window_min" mapstructure:"window_min"`
	AmountTolerance  float64 `yaml:"amount_tolerance" mapstructure:"amount_tolerance"`
	TimeToleranceSec int     `yaml:"time_tolerance_sec" mapstructure:"time_tolerance_sec"`
}

// PropagateConfig exposes payout propagation behavior.
type PropagateConfig struct {
	PushRemote      bool    `yaml:"push_remote" mapstructure:"push_remote"`
	WriteDelayMs    int     `yaml:"write_delay_ms" mapstructure:"write_delay_ms"`
	FlagClearAmount float64 `yaml:"flag_clear_amount" mapstructure:"flag_clear_amount"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads config.yaml (optional) and the environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RECON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("leadsource.empty_page_limit", 3)
	v.SetDefault("leadsource.max_pages", 100)
	v.SetDefault("ringba.page_size", 500)
	v.SetDefault("ringba.write_rps", 2.0)
	v.SetDefault("ringba.retry_attempts", 3)
	v.SetDefault("match.same_day_window_min", 30)
	v.SetDefault("match.adjacent_day_window_min", 1440)
	v.SetDefault("match.payout_tolerance", 0.01)
	v.SetDefault("match.duration_tolerance_sec", 30)
	v.SetDefault("match.use_duration", false)
	v.SetDefault("adjust.window_min", 120)
	v.SetDefault("adjust.amount_tolerance", 0.01)
	v.SetDefault("adjust.time_tolerance_sec", 60)
	v.SetDefault("propagate.push_remote", true)
	v.SetDefault("propagate.write_delay_ms", 250)
	v.SetDefault("propagate.flag_clear_amount", 0.01)

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

// MatchSettings converts the flat settings into the matcher's config.
func (c *Config) MatchSettings() match.Config {
	cfg := match.DefaultConfig()
	if c.Match.SameDayWindowMin > 0 {
		cfg.SameDayWindowMin = c.Match.SameDayWindowMin
	}
	if c.Match.AdjacentDayWindowMin > 0 {
		cfg.AdjacentDayWindowMin = c.Match.AdjacentDayWindowMin
	}
	if c.Match.PayoutTolerance > 0 {
		cfg.PayoutTolerance = decimal.NewFromFloat(c.Match.PayoutTolerance)
	}
	if c.Match.DurationToleranceSec > 0 {
		cfg.DurationToleranceSec = c.Match.DurationToleranceSec
	}
	cfg.UseDuration = c.Match.UseDuration
	return cfg
}

// AdjustSettings converts the flat settings into the merge engine's config.
func (c *Config) AdjustSettings() adjust.Config {
	cfg := adjust.DefaultConfig()
	if c.Adjust.WindowMin > 0 {
		cfg.WindowMin = c.Adjust.WindowMin
	}
	if c.Adjust.AmountTolerance > 0 {
		cfg.AmountTolerance = decimal.NewFromFloat(c.Adjust.AmountTolerance)
	}
	if c.Adjust.TimeToleranceSec > 0 {
		cfg.TimeTolerance = time.Duration(c.Adjust.TimeToleranceSec) * time.Second
	}
	return cfg
}

// PropagateSettings converts the flat settings into the propagator's config.
func (c *Config) PropagateSettings() propagate.Config {
	cfg := propagate.DefaultConfig()
	cfg.PushRemote = c.Propagate.PushRemote
	if c.Propagate.WriteDelayMs > 0 {
		cfg.WriteDelay = time.Duration(c.Propagate.WriteDelayMs) * time.Millisecond
	}
	if c.Propagate.FlagClearAmount > 0 {
		cfg.FlagClearAmount = decimal.NewFromFloat(c.Propagate.FlagClearAmount)
	}
	return cfg
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
