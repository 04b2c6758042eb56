package main

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskflow-api/internal/config"
)

// loadAppConfig loads the application configuration from the environment,
// an optional .env file and an optional config.yaml.
func loadAppConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	slog.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)

	if !cfg.Chat.ChatDeliveryEnabled() {
		slog.Warn("chat delivery not configured, notifications will be dropped")
	}
	if cfg.Chat.SigningSecret == "" {
		slog.Warn("chat signing secret not set, inbound chat requests will be refused")
	}

	return cfg, nil
}
