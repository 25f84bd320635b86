package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const validConfig = `
providers:
  - name: finnhub
    base_url: https://finnhub.io/api/v1
    api_key: test-key
    daily_limit: 1000
    cost: 0.001
    priority: 1
    enabled: true
    timeout: 10s
  - name: yahoo
    base_url: https://query1.finance.yahoo.com
    daily_limit: 0
    priority: 100
    enabled: true

processor:
  poll_interval: 5m
  staleness_window: 5m
  workers: 4

cache:
  sweep_interval: 1m

notifications:
  email:
    enabled: true
    api_url: https://api.resend.com/emails
    api_key: email-key
    from: alerts@stokalert.io
  sms:
    enabled: false
  telegram:
    enabled: false

storage:
  file_path: ./data/stokalert.json
  max_alert_logs: 10000
  persistence_interval: 5m

logging:
  level: info
  console: true
`

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if len(cfg.Providers) != 2 {
		t.Fatalf("providers = %d, want 2", len(cfg.Providers))
	}
	p := cfg.Providers[0]
	if p.Name != "finnhub" || p.DailyLimit != 1000 || p.Cost != 0.001 || p.Timeout != 10*time.Second {
		t.Errorf("unexpected provider config: %+v", p)
	}
	if cfg.Processor.PollInterval != 5*time.Minute {
		t.Errorf("poll interval = %v, want 5m", cfg.Processor.PollInterval)
	}
	if !cfg.Notifications.Email.Enabled || cfg.Notifications.Email.APIKey != "email-key" {
		t.Errorf("unexpected email config: %+v", cfg.Notifications.Email)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "providers: []\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Processor.PollInterval != 5*time.Minute {
		t.Errorf("default poll interval = %v, want 5m", cfg.Processor.PollInterval)
	}
	if cfg.Processor.Workers != 4 {
		t.Errorf("default workers = %d, want 4", cfg.Processor.Workers)
	}
	if cfg.Storage.MaxAlertLogs != 10000 {
		t.Errorf("default max alert logs = %d, want 10000", cfg.Storage.MaxAlertLogs)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default log level = %q, want info", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults-only config must validate, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load of a missing file must fail")
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			"provider without name",
			func(c *Config) { c.Providers = []ProviderConfig{{BaseURL: "https://x"}} },
			"name is required",
		},
		{
			"provider without base url",
			func(c *Config) { c.Providers = []ProviderConfig{{Name: "finnhub"}} },
			"base_url is required",
		},
		{
			"negative daily limit",
			func(c *Config) {
				c.Providers = []ProviderConfig{{Name: "finnhub", BaseURL: "https://x", DailyLimit: -1}}
			},
			"daily_limit",
		},
		{
			"poll interval too short",
			func(c *Config) { c.Processor.PollInterval = 30 * time.Second },
			"poll_interval",
		},
		{
			"staleness window too short",
			func(c *Config) { c.Processor.StalenessWindow = 10 * time.Second },
			"staleness_window",
		},
		{
			"zero workers",
			func(c *Config) { c.Processor.Workers = 0 },
			"workers",
		},
		{
			"sweep interval too short",
			func(c *Config) { c.Cache.SweepInterval = 100 * time.Millisecond },
			"sweep_interval",
		},
		{
			"email enabled without key",
			func(c *Config) { c.Notifications.Email = EmailConfig{Enabled: true, From: "a@b.c"} },
			"api_key",
		},
		{
			"sms enabled without credentials",
			func(c *Config) { c.Notifications.SMS = SMSConfig{Enabled: true, From: "+1555"} },
			"account_sid",
		},
		{
			"telegram enabled without chat id",
			func(c *Config) { c.Notifications.Telegram = TelegramConfig{Enabled: true, BotToken: "t"} },
			"chat_id",
		},
		{
			"empty storage path",
			func(c *Config) { c.Storage.FilePath = "" },
			"file_path",
		},
		{
			"bad log level",
			func(c *Config) { c.Logging.Level = "verbose" },
			"logging.level",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, validConfig))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tc.mutate(cfg)
			err = cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("error = %q, want it to mention %q", err, tc.wantMsg)
			}
		})
	}
}
