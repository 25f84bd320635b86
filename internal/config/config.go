package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Providers     []ProviderConfig    `mapstructure:"providers"`
	Processor     ProcessorConfig     `mapstructure:"processor"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// ProviderConfig holds one market-data provider's endpoint and quota settings
type ProviderConfig struct {
	Name       string        `mapstructure:"name"`
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	DailyLimit int           `mapstructure:"daily_limit"`
	Cost       float64       `mapstructure:"cost"`
	Priority   int           `mapstructure:"priority"`
	Enabled    bool          `mapstructure:"enabled"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// ProcessorConfig holds alert-processing behavior configuration
type ProcessorConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	StalenessWindow time.Duration `mapstructure:"staleness_window"`
	Workers         int           `mapstructure:"workers"`
}

// CacheConfig holds cache behavior configuration
type CacheConfig struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// NotificationsConfig holds per-channel notification configuration
type NotificationsConfig struct {
	Email    EmailConfig    `mapstructure:"email"`
	SMS      SMSConfig      `mapstructure:"sms"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// EmailConfig holds transactional-email provider configuration
type EmailConfig struct {
	APIURL  string `mapstructure:"api_url"`
	APIKey  string `mapstructure:"api_key"`
	From    string `mapstructure:"from"`
	Enabled bool   `mapstructure:"enabled"`
}

// SMSConfig holds SMS messaging provider configuration
type SMSConfig struct {
	APIURL     string `mapstructure:"api_url"`
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	From       string `mapstructure:"from"`
	Enabled    bool   `mapstructure:"enabled"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	Enabled  bool   `mapstructure:"enabled"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	FilePath            string        `mapstructure:"file_path"`
	MaxAlertLogs        int           `mapstructure:"max_alert_logs"`
	PersistenceInterval time.Duration `mapstructure:"persistence_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("STOKALERT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Processor defaults
	v.SetDefault("processor.poll_interval", "5m")
	v.SetDefault("processor.staleness_window", "5m")
	v.SetDefault("processor.workers", 4)

	// Cache defaults
	v.SetDefault("cache.sweep_interval", "1m")

	// Storage defaults
	v.SetDefault("storage.file_path", "./data/stokalert.json")
	v.SetDefault("storage.max_alert_logs", 10000)
	v.SetDefault("storage.persistence_interval", "5m")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", false)
	v.SetDefault("logging.file_path", "./data/stokalert.log")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age_days", 30)
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate provider config
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d].name is required", i)
		}
		if p.BaseURL == "" {
			return fmt.Errorf("providers[%d].base_url is required", i)
		}
		if p.DailyLimit < 0 {
			return fmt.Errorf("providers[%d].daily_limit must not be negative", i)
		}
		if p.Cost < 0 {
			return fmt.Errorf("providers[%d].cost must not be negative", i)
		}
	}

	// Validate processor config
	if c.Processor.PollInterval < 1*time.Minute {
		return fmt.Errorf("processor.poll_interval must be at least 1 minute")
	}
	if c.Processor.StalenessWindow < 1*time.Minute {
		return fmt.Errorf("processor.staleness_window must be at least 1 minute")
	}
	if c.Processor.Workers < 1 {
		return fmt.Errorf("processor.workers must be at least 1")
	}

	// Validate cache config
	if c.Cache.SweepInterval < 1*time.Second {
		return fmt.Errorf("cache.sweep_interval must be at least 1 second")
	}

	// Validate notification config
	if c.Notifications.Email.Enabled {
		if c.Notifications.Email.APIKey == "" {
			return fmt.Errorf("notifications.email.api_key is required when email is enabled")
		}
		if c.Notifications.Email.From == "" {
			return fmt.Errorf("notifications.email.from is required when email is enabled")
		}
	}
	if c.Notifications.SMS.Enabled {
		if c.Notifications.SMS.AccountSID == "" || c.Notifications.SMS.AuthToken == "" {
			return fmt.Errorf("notifications.sms.account_sid and auth_token are required when sms is enabled")
		}
		if c.Notifications.SMS.From == "" {
			return fmt.Errorf("notifications.sms.from is required when sms is enabled")
		}
	}
	if c.Notifications.Telegram.Enabled {
		if c.Notifications.Telegram.BotToken == "" {
			return fmt.Errorf("notifications.telegram.bot_token is required when telegram is enabled")
		}
		if c.Notifications.Telegram.ChatID == "" {
			return fmt.Errorf("notifications.telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate storage config
	if c.Storage.FilePath == "" {
		return fmt.Errorf("storage.file_path is required")
	}
	if c.Storage.MaxAlertLogs < 1 {
		return fmt.Errorf("storage.max_alert_logs must be at least 1")
	}
	if c.Storage.PersistenceInterval < 1*time.Minute {
		return fmt.Errorf("storage.persistence_interval must be at least 1 minute")
	}

	// Validate logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	return nil
}
