package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/phrazzld/taskflow-api/internal/platform/postgres"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "migrate [" + strings.Join(postgres.MigrationCommands, "|") + "] [args...]",
		Short: "Apply or inspect database migrations",
		Example: `  taskflowctl migrate up
  taskflowctl migrate status
  taskflowctl migrate --verify`,
		Args: func(cmd *cobra.Command, args []string) error {
			if verify {
				return cobra.NoArgs(cmd, args)
			}
			if len(args) == 0 {
				return fmt.Errorf("a migration command is required (valid: %s)", strings.Join(postgres.MigrationCommands, ", "))
			}
			if !slices.Contains(postgres.MigrationCommands, args[0]) {
				return fmt.Errorf("unknown migration command %q (valid: %s)", args[0], strings.Join(postgres.MigrationCommands, ", "))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			db, err := postgres.Open(ctx, cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer func() { _ = db.Close() }()

			if verify {
				if err := postgres.VerifyMigrations(ctx, db); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "all migrations applied")
				return nil
			}
			return postgres.Migrate(ctx, db, log, args[0], args[1:]...)
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "exit non-zero unless every migration is applied")
	return cmd
}
