package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"flowtrack/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Create or update the SQLite schema at --db to the latest version.
The server and worker also migrate on startup; this command lets an
operator do it ahead of a deploy or inspect the current version.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			dbPath := cfg.SQLiteDBPath
			out := cmd.OutOrStdout()

			if status, _ := cmd.Flags().GetBool("status"); status {
				v, dirty, err := storage.MigrationVersion(dbPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "schema version %d (dirty: %t)\n", v, dirty)
				return nil
			}

			slog.Info("Starting database migration", "database", dbPath)
			if err := storage.RunMigrations(dbPath); err != nil {
				return err
			}
			v, _, err := storage.MigrationVersion(dbPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "database %s at schema version %d\n", dbPath, v)
			return nil
		},
	}
	cmd.Flags().Bool("status", false, "show the current version without applying migrations")
	return cmd
}
