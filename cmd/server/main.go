// Package main implements the entry point for the Taskflow API server, which
// manages tasks and announces their lifecycle to the team chat.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	migrateCmd := flag.String("migrate", "", "run a migration command (up, down, status, version, redo, reset) and exit")
	verifyMigrations := flag.Bool("verify-migrations", false, "exit non-zero unless every migration is applied")
	flag.Parse()

	if err := run(*migrateCmd, *verifyMigrations, flag.Args()); err != nil {
		log.Fatalf("taskflow-api: %v", err)
	}
}

func run(migrateCmd string, verifyOnly bool, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}

	logger, err := setupAppLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := setupAppDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if migrateCmd != "" || verifyOnly {
		defer func() { _ = db.Close() }()
		return handleMigrations(ctx, db, logger, migrateCmd, verifyOnly, args)
	}

	app, err := newApplication(cfg, logger, db)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	logger.Info("starting taskflow api", slog.Int("port", cfg.Server.Port))
	return app.Run(ctx)
}
