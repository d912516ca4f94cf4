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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Providers ProvidersConfig `yaml:"providers" mapstructure:"providers"`
	Waterfall WaterfallConfig `yaml:"waterfall" mapstructure:"waterfall"`
	Refresh   RefreshConfig   `yaml:"refresh" mapstructure:"refresh"`
	Roster    RosterConfig    `yaml:"roster" mapstructure:"roster"`
	Deal      DealConfig      `yaml:"deal" mapstructure:"deal"`
	Queue     QueueConfig     `yaml:"queue" mapstructure:"queue"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ProvidersConfig holds credentials and tuning for contact data providers.
type ProvidersConfig struct {
	PDL           PDLConfig        `yaml:"pdl" mapstructure:"pdl"`
	EmailCheck    EmailCheckConfig `yaml:"emailcheck" mapstructure:"emailcheck"`
	TimeoutSecs   int              `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	DefaultRegion string           `yaml:"default_region" mapstructure:"default_region"`
}

// PDLConfig holds People Data Labs API settings.
type PDLConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
	CostPerCall float64 `yaml:"cost_per_call" mapstructure:"cost_per_call"`
}

// EmailCheckConfig holds the email verification provider settings.
type EmailCheckConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
	CostPerCall float64 `yaml:"cost_per_call" mapstructure:"cost_per_call"`
}

// WaterfallConfig configures the verification waterfall.
type WaterfallConfig struct {
	// Order lists provider names per field, cheapest/most-authoritative first.
	Order map[string][]string `yaml:"order" mapstructure:"order"`
	// CorroborationBoost is added once per extra provider that independently
	// confirmed the winning value. Capped so confidence never exceeds 100.
	CorroborationBoost int `yaml:"corroboration_boost" mapstructure:"corroboration_boost"`
	// MaxCostUSD caps external spend per field resolution.
	MaxCostUSD float64 `yaml:"max_cost_usd" mapstructure:"max_cost_usd"`
}

// RefreshConfig configures the tier sweep scheduler.
type RefreshConfig struct {
	MaxPerRun  int `yaml:"max_per_run" mapstructure:"max_per_run"`
	MaxWorkers int `yaml:"max_workers" mapstructure:"max_workers"`
}

// RosterConfig configures buyer-group sizing.
type RosterConfig struct {
	MaxMembers int `yaml:"max_members" mapstructure:"max_members"`
}

// DealConfig describes the deal the buyer group is being assembled for.
// Deal size shifts role classification for financial leadership.
type DealConfig struct {
	SizeUSD  float64 `yaml:"size_usd" mapstructure:"size_usd"`
	Category string  `yaml:"category" mapstructure:"category"`
}

// QueueConfig configures the asynq re-run queue.
type QueueConfig struct {
	RedisURL    string `yaml:"redis_url" mapstructure:"redis_url"`
	Name        string `yaml:"name" mapstructure:"name"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the webhook/feed HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ProviderTimeout returns the per-call timeout for adapter requests.
func (c ProvidersConfig) ProviderTimeout() time.Duration {
	if c.TimeoutSecs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ROSTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("providers.timeout_secs", 10)
	v.SetDefault("providers.default_region", "US")
	v.SetDefault("providers.pdl.base_url", "https://api.peopledatalabs.com/v5")
	v.SetDefault("providers.pdl.rate_per_sec", 10)
	v.SetDefault("providers.pdl.burst", 10)
	v.SetDefault("providers.pdl.cost_per_call", 0.03)
	v.SetDefault("providers.emailcheck.base_url", "https://api.emailcheck.io/v1")
	v.SetDefault("providers.emailcheck.rate_per_sec", 25)
	v.SetDefault("providers.emailcheck.burst", 25)
	v.SetDefault("providers.emailcheck.cost_per_call", 0.004)
	v.SetDefault("waterfall.order", map[string][]string{
		"email": {"emailcheck", "pdl"},
		"phone": {"pdl"},
	})
	v.SetDefault("waterfall.corroboration_boost", 10)
	v.SetDefault("waterfall.max_cost_usd", 0.25)
	v.SetDefault("refresh.max_per_run", 200)
	v.SetDefault("refresh.max_workers", 8)
	v.SetDefault("roster.max_members", 12)
	v.SetDefault("queue.name", "rerun")
	v.SetDefault("queue.concurrency", 4)

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
