package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"

	"github.com/phrazzld/taskflow-api/internal/platform/postgres"
)

// handleMigrations runs a goose command, or only verifies that the schema is
// current when verifyOnly is set.
func handleMigrations(
	ctx context.Context,
	db *sql.DB,
	logger *slog.Logger,
	migrateCmd string,
	verifyOnly bool,
	args []string,
) error {
	if verifyOnly {
		logger.Info("verifying migrations")
		if err := postgres.VerifyMigrations(ctx, db); err != nil {
			return fmt.Errorf("migration verification failed: %w", err)
		}
		logger.Info("all migrations applied")
		return nil
	}

	if !slices.Contains(postgres.MigrationCommands, migrateCmd) {
		return fmt.Errorf("unknown migration command %q (valid: %v)", migrateCmd, postgres.MigrationCommands)
	}
	return postgres.Migrate(ctx, db, logger, migrateCmd, args...)
}
