// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	PageSpeed PageSpeedConfig `mapstructure:"pagespeed"`
	WhatsApp  WhatsAppConfig  `mapstructure:"whatsapp"`
	Quota     QuotaConfig     `mapstructure:"quota"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
}

// PageSpeedConfig configures the upstream analysis API and its retry policy.
type PageSpeedConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxAttempts    int    `mapstructure:"max_attempts"`
	BackoffBaseMs  int    `mapstructure:"backoff_base_ms"`
}

// WhatsAppConfig holds messaging provider credentials and timeouts.
type WhatsAppConfig struct {
	InstanceID     string `mapstructure:"instance_id"`
	AccessToken    string `mapstructure:"access_token"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// QuotaConfig governs the per-client audit quota.
type QuotaConfig struct {
	MaxAuditsPerDay    int `mapstructure:"max_audits_per_day"`
	MaxRecipients      int `mapstructure:"max_recipients"`
	ResetIntervalHours int `mapstructure:"reset_interval_hours"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RELAY")
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

// Every key needs a default entry, even when it defaults to empty: viper's
// AutomaticEnv only resolves keys it already knows about, so a key without one
// would silently ignore its RELAY_* environment variable.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.rate_limit_rps", 5.0)
	v.SetDefault("server.rate_limit_burst", 10)
	v.SetDefault("pagespeed.api_key", "")
	v.SetDefault("pagespeed.base_url", "https://www.googleapis.com/pagespeedonline/v5/runPagespeed")
	v.SetDefault("pagespeed.timeout_seconds", 60)
	v.SetDefault("pagespeed.max_attempts", 3)
	v.SetDefault("pagespeed.backoff_base_ms", 1000)
	v.SetDefault("whatsapp.instance_id", "")
	v.SetDefault("whatsapp.access_token", "")
	v.SetDefault("whatsapp.base_url", "https://whats-api.dxing.in/api/send")
	v.SetDefault("whatsapp.timeout_seconds", 30)
	v.SetDefault("quota.max_audits_per_day", 3)
	v.SetDefault("quota.max_recipients", 3)
	v.SetDefault("quota.reset_interval_hours", 24)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits. Missing upstream
// credentials are deliberately not validated here: their absence surfaces as
// a 500 from the relevant orchestrator, not a startup crash.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.PageSpeed.TimeoutSeconds <= 0 {
		return fmt.Errorf("pagespeed.timeout_seconds must be > 0")
	}
	if c.PageSpeed.MaxAttempts <= 0 {
		return fmt.Errorf("pagespeed.max_attempts must be > 0")
	}
	if c.WhatsApp.TimeoutSeconds <= 0 {
		return fmt.Errorf("whatsapp.timeout_seconds must be > 0")
	}
	if c.Quota.MaxAuditsPerDay <= 0 {
		return fmt.Errorf("quota.max_audits_per_day must be > 0")
	}
	if c.Quota.MaxRecipients <= 0 {
		return fmt.Errorf("quota.max_recipients must be > 0")
	}
	if c.Quota.ResetIntervalHours <= 0 {
		return fmt.Errorf("quota.reset_interval_hours must be > 0")
	}
	return nil
}

// PageSpeedTimeout returns the per-attempt timeout for upstream analysis calls.
func (c Config) PageSpeedTimeout() time.Duration {
	return time.Duration(c.PageSpeed.TimeoutSeconds) * time.Second
}

// PageSpeedBackoffBase returns the first retry delay; later delays double it.
func (c Config) PageSpeedBackoffBase() time.Duration {
	return time.Duration(c.PageSpeed.BackoffBaseMs) * time.Millisecond
}

// WhatsAppTimeout returns the per-delivery timeout for messaging calls.
func (c Config) WhatsAppTimeout() time.Duration {
	return time.Duration(c.WhatsApp.TimeoutSeconds) * time.Second
}

// QuotaResetInterval returns the wall-clock interval between full quota resets.
func (c Config) QuotaResetInterval() time.Duration {
	return time.Duration(c.Quota.ResetIntervalHours) * time.Hour
}
