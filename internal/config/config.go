// Package config loads the application configuration: YAML file, struct
// defaults, environment overrides (plus .env when present), then
// validation. Every command shares one Config; unused sections keep their
// defaults.
package config

import (
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"marketlab/internal/backtest"
	"marketlab/internal/cardindex"
	"marketlab/internal/feed"
	"marketlab/internal/optimize"
	"marketlab/internal/signal"
	redisstore "marketlab/internal/store/redis"
)

// IndexConfig describes the composite card index to build.
type IndexConfig struct {
	Name         string                  `yaml:"name" default:"composite"`
	SMAWindow    int                     `yaml:"sma_window" default:"7" validate:"gt=0"`
	ROCDays      int                     `yaml:"roc_days" default:"30" validate:"gt=0"`
	MACDFast     int                     `yaml:"macd_fast" default:"12" validate:"gt=1"`
	MACDSlow     int                     `yaml:"macd_slow" default:"26" validate:"gt=1"`
	MACDSignal   int                     `yaml:"macd_signal" default:"9" validate:"gt=1"`
	Constituents []cardindex.Constituent `yaml:"constituents" validate:"dive"`
}

// Config is the root configuration for all commands.
type Config struct {
	LogLevel   string `yaml:"log_level" default:"info" validate:"oneof=debug info warn error"`
	DataDir    string `yaml:"data_dir" default:"data"`
	SQLitePath string `yaml:"sqlite_path" default:"data/marketlab.db"`

	MetricsAddr string `yaml:"metrics_addr" default:":9090"`

	// NotifyWebhook receives operational alerts from the ingest daemon.
	// Empty logs alerts instead.
	NotifyWebhook string `yaml:"notify_webhook" validate:"omitempty,url"`

	Redis redisstore.Config `yaml:"redis"`
	Feed  feed.Config       `yaml:"feed"`

	Strategy signal.StrategyConfig `yaml:"strategy"`
	Backtest backtest.Config       `yaml:"backtest"`
	Optimize optimize.Config       `yaml:"optimize"`
	Ranges   optimize.Ranges       `yaml:"ranges"`
	Index    IndexConfig           `yaml:"index"`
}

// Load builds the Config: .env (if present) → YAML file (path may be empty)
// → defaults for everything unset → env overrides → validation.
func Load(path string) (*Config, error) {
	// .env is a developer convenience; absence is normal.
	_ = godotenv.Load()

	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	c.applyEnv()

	if err := validator.New().Struct(&c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// applyEnv overrides the infrastructure knobs from the environment.
func (c *Config) applyEnv() {
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.DataDir = getEnv("DATA_DIR", c.DataDir)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)
	c.NotifyWebhook = getEnv("NOTIFY_WEBHOOK", c.NotifyWebhook)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
