package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Quota.MaxAuditsPerDay != 3 || cfg.Quota.MaxRecipients != 3 {
		t.Fatalf("expected quota defaults 3/3, got %+v", cfg.Quota)
	}
	if got := cfg.PageSpeedTimeout(); got != 60*time.Second {
		t.Fatalf("expected 60s pagespeed timeout, got %v", got)
	}
	if got := cfg.PageSpeedBackoffBase(); got != time.Second {
		t.Fatalf("expected 1s backoff base, got %v", got)
	}
	if got := cfg.WhatsAppTimeout(); got != 30*time.Second {
		t.Fatalf("expected 30s whatsapp timeout, got %v", got)
	}
	if got := cfg.QuotaResetInterval(); got != 24*time.Hour {
		t.Fatalf("expected 24h reset interval, got %v", got)
	}
}

func TestLoadCredentialsFromEnvironmentOnly(t *testing.T) {
	t.Setenv("RELAY_PAGESPEED_API_KEY", "env-ps-key")
	t.Setenv("RELAY_WHATSAPP_INSTANCE_ID", "env-inst")
	t.Setenv("RELAY_WHATSAPP_ACCESS_TOKEN", "env-tok")
	t.Setenv("RELAY_SERVER_CORS_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.PageSpeed.APIKey != "env-ps-key" {
		t.Fatalf("expected pagespeed api key from env, got %q", cfg.PageSpeed.APIKey)
	}
	if cfg.WhatsApp.InstanceID != "env-inst" || cfg.WhatsApp.AccessToken != "env-tok" {
		t.Fatalf("expected whatsapp credentials from env, got %+v", cfg.WhatsApp)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[0] != "https://a.example.com" {
		t.Fatalf("expected cors origins from env, got %v", cfg.Server.CORSOrigins)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  cors_origins: ["https://app.example.com"]
  rate_limit_rps: 2.5
  rate_limit_burst: 4
pagespeed:
  api_key: ps-key
  timeout_seconds: 45
  max_attempts: 5
  backoff_base_ms: 250
whatsapp:
  instance_id: inst-9
  access_token: tok-9
  timeout_seconds: 15
quota:
  max_audits_per_day: 10
  max_recipients: 5
  reset_interval_hours: 12
logging:
  development: true
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "https://app.example.com" {
		t.Fatalf("expected cors origins override, got %v", cfg.Server.CORSOrigins)
	}
	if cfg.PageSpeed.APIKey != "ps-key" || cfg.PageSpeed.MaxAttempts != 5 {
		t.Fatalf("expected pagespeed overrides to apply: %+v", cfg.PageSpeed)
	}
	if cfg.WhatsApp.InstanceID != "inst-9" || cfg.WhatsApp.AccessToken != "tok-9" {
		t.Fatalf("expected whatsapp credentials to load: %+v", cfg.WhatsApp)
	}
	if cfg.Quota.MaxAuditsPerDay != 10 || cfg.Quota.ResetIntervalHours != 12 {
		t.Fatalf("expected quota overrides to apply: %+v", cfg.Quota)
	}
	if !cfg.Logging.Development {
		t.Fatalf("expected development logging enabled")
	}
	if got := cfg.PageSpeedBackoffBase(); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms backoff base, got %v", got)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:    ServerConfig{Port: 8080},
		PageSpeed: PageSpeedConfig{TimeoutSeconds: 60, MaxAttempts: 3},
		WhatsApp:  WhatsAppConfig{TimeoutSeconds: 30},
		Quota:     QuotaConfig{MaxAuditsPerDay: 3, MaxRecipients: 3, ResetIntervalHours: 24},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "invalid pagespeed timeout",
			cfg: func() Config {
				c := base
				c.PageSpeed.TimeoutSeconds = 0
				return c
			}(),
			want: "pagespeed.timeout_seconds",
		},
		{
			name: "invalid attempts",
			cfg: func() Config {
				c := base
				c.PageSpeed.MaxAttempts = 0
				return c
			}(),
			want: "pagespeed.max_attempts",
		},
		{
			name: "invalid whatsapp timeout",
			cfg: func() Config {
				c := base
				c.WhatsApp.TimeoutSeconds = 0
				return c
			}(),
			want: "whatsapp.timeout_seconds",
		},
		{
			name: "invalid audits per day",
			cfg: func() Config {
				c := base
				c.Quota.MaxAuditsPerDay = 0
				return c
			}(),
			want: "quota.max_audits_per_day",
		},
		{
			name: "invalid recipients",
			cfg: func() Config {
				c := base
				c.Quota.MaxRecipients = 0
				return c
			}(),
			want: "quota.max_recipients",
		},
		{
			name: "invalid reset interval",
			cfg: func() Config {
				c := base
				c.Quota.ResetIntervalHours = 0
				return c
			}(),
			want: "quota.reset_interval_hours",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
