package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	Auth       AuthConfig       `mapstructure:"auth" validate:"required"`
	Chat       ChatConfig       `mapstructure:"chat"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher" validate:"required"`
	Sweep      SweepConfig      `mapstructure:"sweep" validate:"required"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Mail       MailConfig       `mapstructure:"mail"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	// FrontendURL is the base for links placed in chat messages and emails.
	FrontendURL string `mapstructure:"frontend_url" validate:"required,url"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" validate:"required,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret                   string        `mapstructure:"jwt_secret" validate:"required,min=32"`
	BCryptCost                  int           `mapstructure:"bcrypt_cost" validate:"gte=4,lte=31"`
	TokenLifetimeMinutes        int           `mapstructure:"token_lifetime_minutes" validate:"gt=0"`
	RefreshTokenLifetimeMinutes int           `mapstructure:"refresh_token_lifetime_minutes" validate:"gtfield=TokenLifetimeMinutes"`
	ResetTokenLifetime          time.Duration `mapstructure:"reset_token_lifetime" validate:"gt=0"`
}

// ChatConfig configures outbound chat delivery and inbound request verification.
// Delivery is disabled when neither BotToken nor WebhookURL is set.
type ChatConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	WebhookURL     string        `mapstructure:"webhook_url" validate:"omitempty,url"`
	SigningSecret  string        `mapstructure:"signing_secret"`
	APIBaseURL     string        `mapstructure:"api_base_url" validate:"required,url"`
	DefaultChannel string        `mapstructure:"default_channel" validate:"required"`
	OpsChannel     string        `mapstructure:"ops_channel"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gte=1s,lte=9s"`
	ReplayWindow   time.Duration `mapstructure:"replay_window" validate:"gt=0"`
}

// DispatcherConfig sizes the notification worker pool and its retry delays.
type DispatcherConfig struct {
	Workers          int           `mapstructure:"workers" validate:"gte=1,lte=64"`
	QueueSize        int           `mapstructure:"queue_size" validate:"gte=1"`
	TaskBaseDelay    time.Duration `mapstructure:"task_base_delay" validate:"gt=0"`
	TaskMaxDelay     time.Duration `mapstructure:"task_max_delay" validate:"gtefield=TaskBaseDelay"`
	DigestDelay      time.Duration `mapstructure:"digest_delay" validate:"gt=0"`
	MaintenanceDelay time.Duration `mapstructure:"maintenance_delay" validate:"gt=0"`
	BatchConcurrency int           `mapstructure:"batch_concurrency" validate:"gte=1"`
}

// SweepConfig controls the scheduled due-date, summary and retention sweeps.
type SweepConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	SummaryHour          int           `mapstructure:"summary_hour" validate:"gte=0,lte=23"`
	RetentionHour        int           `mapstructure:"retention_hour" validate:"gte=0,lte=23"`
	ArchiveAfterDays     int           `mapstructure:"archive_after_days" validate:"gt=0"`
	HistoryRetentionDays int           `mapstructure:"history_retention_days" validate:"gt=0"`
	RetentionRetryDelay  time.Duration `mapstructure:"retention_retry_delay" validate:"gt=0"`
	ReminderLimit        int           `mapstructure:"reminder_limit" validate:"gt=0"`
}

// CacheConfig controls the in-process cache used for task listings.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl" validate:"required_if=Enabled true"`
}

// MailConfig configures the SMTP relay. Mail is logged instead of sent when Host is empty.
type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"omitempty,gt=0,lt=65536"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from" validate:"required,email"`
}
