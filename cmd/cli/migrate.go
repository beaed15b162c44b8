package main

import (
	"github.com/nimasrn/dv-referral-ledger/internal/bootstrap"
	"github.com/nimasrn/dv-referral-ledger/pkg/logger"
	"github.com/nimasrn/dv-referral-ledger/pkg/pg"
	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "./migrations", "Directory holding goose migrations")

	run := func(command string) func(*cobra.Command, []string) error {
		return func(*cobra.Command, []string) error {
			logger.Info("running migrations", "command", command, "dir", dir)
			return pg.MigrateCommand(bootstrap.WritePostgres(), dir, command)
		}
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
	}
	steps := down.Flags().IntP("steps", "n", 1, "Number of migrations to roll back")
	down.RunE = func(c *cobra.Command, args []string) error {
		for i := 0; i < *steps; i++ {
			if err := run("down")(c, args); err != nil {
				return err
			}
		}
		return nil
	}

	cmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply all pending migrations", RunE: run("up")},
		down,
		&cobra.Command{Use: "status", Short: "Show migration status", RunE: run("status")},
		&cobra.Command{Use: "redo", Short: "Roll back and reapply the latest migration", RunE: run("redo")},
		&cobra.Command{Use: "version", Short: "Print the current schema version", RunE: run("version")},
	)
	return cmd
}
