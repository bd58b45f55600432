package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solatis/rulekeeper/internal/core/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()
		return applyMigrations(cmd.Context(), rt)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		database, err := rt.openDB(cmd.Context())
		if err != nil {
			return err
		}
		status, err := db.MigrateStatus(cmd.Context(), database)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "MIGRATION\tSTATUS\tAPPLIED AT\tDURATION")
		for _, s := range status {
			state, appliedAt, duration := "pending", "-", "-"
			if s.Applied {
				state = "applied"
				duration = fmt.Sprintf("%dms", s.ExecutionMs)
				if s.AppliedAt != nil {
					appliedAt = s.AppliedAt.Format(time.RFC3339)
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, state, appliedAt, duration)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
}

func applyMigrations(ctx context.Context, rt *runtime) error {
	database, err := rt.openDB(ctx)
	if err != nil {
		return err
	}
	applied, err := db.MigrateUp(ctx, database)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	rt.logger.Info("Migrations complete",
		zap.String("driver", rt.cfg.Database.Driver),
		zap.Int("applied", applied),
	)
	return nil
}
