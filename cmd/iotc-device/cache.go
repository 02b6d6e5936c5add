package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/iotc-device/internal/assignment"
	"github.com/nerrad567/iotc-device/migrations"
)

func newCacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the assignment cache",
		Long: `Manage the SQLite assignment cache at assignment_cache.path.

The commands work on the configured file whether or not the cache is
enabled for run and provision.`,
	}
	cmd.AddCommand(
		newCacheListCmd(configPath),
		newCacheForgetCmd(configPath),
		newCacheResetCmd(configPath),
	)
	return cmd
}

func newCacheListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached hub assignments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			db, err := a.openCacheDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // Read-only command

			entries, err := assignment.NewSQLiteRepository(db.DB).List(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "no cached assignments")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SCOPE\tDEVICE\tHUB\tASSIGNED\tLAST USED")
			for _, e := range entries {
				lastUsed := "never"
				if e.LastUsed != nil {
					lastUsed = e.LastUsed.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.ScopeID, e.DeviceID, e.Host, e.AssignedAt.Format(time.RFC3339), lastUsed)
			}
			return w.Flush()
		},
	}
}

func newCacheForgetCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "forget",
		Short: "Drop the configured device's cached hub so the next run provisions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			db, err := a.openCacheDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // Best effort close after write

			repo := assignment.NewSQLiteRepository(db.DB)
			if err := repo.Forget(ctx, a.identity.ScopeID, a.identity.DeviceID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "forgot %s/%s\n", a.identity.ScopeID, a.identity.DeviceID)
			return nil
		},
	}
}

func newCacheResetCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Drop and recreate the cache schema, discarding every entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			db, err := a.openCacheDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // Best effort close after write

			applied, _, err := db.MigrationStatus(ctx, migrations.FS)
			if err != nil {
				return err
			}
			for range applied {
				if err := db.MigrateDown(ctx, migrations.FS); err != nil {
					return fmt.Errorf("rolling back cache schema: %w", err)
				}
			}
			if err := db.Migrate(ctx, migrations.FS); err != nil {
				return fmt.Errorf("recreating cache schema: %w", err)
			}

			a.log.Info("assignment cache reset", "path", db.Path(), "migrations", len(applied))
			fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", db.Path())
			return nil
		},
	}
}
