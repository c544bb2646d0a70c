package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/rawblock/txrisk-engine/internal/heuristics"
	"github.com/rawblock/txrisk-engine/pkg/models"
)

// Configuration is resolved once at startup from, in order of
// precedence: environment variables (TXRISK_ prefix), an optional
// config file (txrisk.yaml), and the built-in defaults. The resolved
// value is immutable; nothing re-reads the environment at runtime.

// Webhook is one alert delivery endpoint.
type Webhook struct {
	Name        string          `mapstructure:"name"`
	URL         string          `mapstructure:"url"`
	MinSeverity models.Severity `mapstructure:"min_severity"`
}

// Config is the resolved process configuration.
type Config struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AuthToken      string   `mapstructure:"auth_token"`
	LogLevel       string   `mapstructure:"log_level"`

	RateLimitPerMin int `mapstructure:"rate_limit_per_min"`
	RateLimitBurst  int `mapstructure:"rate_limit_burst"`

	// Current market gas average in Gwei for the per-transaction gas
	// rating; 0 disables the market adjustment.
	MarketGasGwei float64 `mapstructure:"market_gas_gwei"`

	Webhooks []Webhook `mapstructure:"webhooks"`

	Detection DetectionConfig `mapstructure:"detection"`
}

// DetectionConfig carries the operator-tunable detector cutoffs. Only
// the calibration knobs are exposed; the structural guards (minimum
// sample sizes) are part of the detectors' statistical validity and
// stay fixed.
type DetectionConfig struct {
	ZCritical          float64 `mapstructure:"z_critical"`
	ZHigh              float64 `mapstructure:"z_high"`
	WashDetectScore    float64 `mapstructure:"wash_detect_score"`
	BotDetectProb      float64 `mapstructure:"bot_detect_prob"`
	CoordDetectScore   float64 `mapstructure:"coord_detect_score"`
	InvestigationScore float64 `mapstructure:"investigation_score"`
	HighGasGwei        float64 `mapstructure:"high_gas_gwei"`
	DustAmountETH      float64 `mapstructure:"dust_amount_eth"`
}

// Load resolves the configuration. configPath may be empty, in which
// case only the working directory is searched for txrisk.yaml and a
// missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	defaults := heuristics.DefaultThresholds()
	v.SetDefault("port", 8085)
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("log_level", "info")
	v.SetDefault("rate_limit_per_min", 30)
	v.SetDefault("rate_limit_burst", 10)
	v.SetDefault("market_gas_gwei", 0.0)
	v.SetDefault("detection.z_critical", defaults.ZCritical)
	v.SetDefault("detection.z_high", defaults.ZHigh)
	v.SetDefault("detection.wash_detect_score", defaults.WashDetectScore)
	v.SetDefault("detection.bot_detect_prob", defaults.BotDetectProb)
	v.SetDefault("detection.coord_detect_score", defaults.CoordDetectScore)
	v.SetDefault("detection.investigation_score", defaults.InvestigationScore)
	v.SetDefault("detection.high_gas_gwei", defaults.HighGasGwei)
	v.SetDefault("detection.dust_amount_eth", defaults.DustAmountETH)

	v.SetEnvPrefix("TXRISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	} else {
		v.SetConfigName("txrisk")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Detection.ZHigh <= 0 || c.Detection.ZCritical < c.Detection.ZHigh {
		return fmt.Errorf("z thresholds must satisfy 0 < z_high <= z_critical, got %v/%v",
			c.Detection.ZHigh, c.Detection.ZCritical)
	}
	for _, w := range c.Webhooks {
		if w.Name == "" || w.URL == "" {
			return fmt.Errorf("webhook entries need both name and url")
		}
	}
	return nil
}

// Thresholds materializes the detector configuration: the fixed
// structural guards plus the operator overrides.
func (c *Config) Thresholds() heuristics.Thresholds {
	t := heuristics.DefaultThresholds()
	t.ZCritical = c.Detection.ZCritical
	t.ZHigh = c.Detection.ZHigh
	t.WashDetectScore = c.Detection.WashDetectScore
	t.BotDetectProb = c.Detection.BotDetectProb
	t.CoordDetectScore = c.Detection.CoordDetectScore
	t.InvestigationScore = c.Detection.InvestigationScore
	t.HighGasGwei = c.Detection.HighGasGwei
	t.DustAmountETH = c.Detection.DustAmountETH
	return t
}
