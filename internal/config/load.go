package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load,
// e.g. TASKFLOW_DATABASE_URL for database.url.
const EnvPrefix = "TASKFLOW"

// defaults lists every configuration key with its default value. Keys must be
// registered here for environment overrides to reach Unmarshal.
var defaults = map[string]any{
	"server.port":             8080,
	"server.log_level":        "info",
	"server.shutdown_timeout": 10 * time.Second,
	"server.frontend_url":     "http://localhost:3000",

	"database.url":               "",
	"database.max_open_conns":    25,
	"database.max_idle_conns":    25,
	"database.conn_max_lifetime": 5 * time.Minute,

	"auth.jwt_secret":                     "",
	"auth.bcrypt_cost":                    10,
	"auth.token_lifetime_minutes":         60,
	"auth.refresh_token_lifetime_minutes": 10080,
	"auth.reset_token_lifetime":           24 * time.Hour,

	"chat.bot_token":       "",
	"chat.webhook_url":     "",
	"chat.signing_secret":  "",
	"chat.api_base_url":    "https://slack.com/api",
	"chat.default_channel": "#task-notifications",
	"chat.ops_channel":     "",
	"chat.timeout":         5 * time.Second,
	"chat.replay_window":   5 * time.Minute,

	"dispatcher.workers":           4,
	"dispatcher.queue_size":        256,
	"dispatcher.task_base_delay":   30 * time.Second,
	"dispatcher.task_max_delay":    60 * time.Second,
	"dispatcher.digest_delay":      300 * time.Second,
	"dispatcher.maintenance_delay": time.Hour,
	"dispatcher.batch_concurrency": 8,

	"sweep.enabled":                true,
	"sweep.summary_hour":           18,
	"sweep.retention_hour":         2,
	"sweep.archive_after_days":     90,
	"sweep.history_retention_days": 365,
	"sweep.retention_retry_delay":  time.Hour,
	"sweep.reminder_limit":         10,

	"cache.enabled": true,
	"cache.ttl":     300 * time.Second,

	"mail.host":     "",
	"mail.port":     587,
	"mail.username": "",
	"mail.password": "",
	"mail.from":     "taskflow@example.com",
}

// Load configuration from a .env file, environment variables and an optional
// config.yaml. Environment variables take precedence over the config file.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// ChatDeliveryEnabled reports whether any outbound chat mode is configured.
func (c ChatConfig) ChatDeliveryEnabled() bool {
	return c.BotToken != "" || c.WebhookURL != ""
}
