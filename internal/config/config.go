// Package config loads application configuration from file and environment
// and initializes the global logger.
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
	Catalog     CatalogConfig     `yaml:"catalog" mapstructure:"catalog"`
	Pricing     PricingConfig     `yaml:"pricing" mapstructure:"pricing"`
	Negotiation NegotiationConfig `yaml:"negotiation" mapstructure:"negotiation"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// CatalogConfig points at the ingredient catalog definition. An empty path
// selects the built-in catalog.
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PricingConfig configures the demand-adjusted pricing strategy.
type PricingConfig struct {
	DemandWindowMins  int `yaml:"demand_window_mins" mapstructure:"demand_window_mins"`
	PriceValidityMins int `yaml:"price_validity_mins" mapstructure:"price_validity_mins"`
}

// DemandWindow returns the trailing window demand counts are taken over.
func (p PricingConfig) DemandWindow() time.Duration {
	return time.Duration(p.DemandWindowMins) * time.Minute
}

// NegotiationConfig configures the decision path.
type NegotiationConfig struct {
	DecisionTimeoutSecs int     `yaml:"decision_timeout_secs" mapstructure:"decision_timeout_secs"`
	RequestsPerSecond   float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BreakerFailures     int     `yaml:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerResetSecs    int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// DecisionTimeout bounds a single AI decision call.
func (n NegotiationConfig) DecisionTimeout() time.Duration {
	return time.Duration(n.DecisionTimeoutSecs) * time.Second
}

// AnthropicConfig holds Anthropic API settings. An empty key disables the
// AI decision path; negotiations then use the deterministic rule.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP server.
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
	v.SetEnvPrefix("MARKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("pricing.demand_window_mins", 240)
	v.SetDefault("pricing.price_validity_mins", 1440)
	v.SetDefault("negotiation.decision_timeout_secs", 10)
	v.SetDefault("negotiation.requests_per_second", 2.0)
	v.SetDefault("negotiation.breaker_failures", 5)
	v.SetDefault("negotiation.breaker_reset_secs", 30)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "market.db")
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
