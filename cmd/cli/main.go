package main

import (
	"os"

	"github.com/nimasrn/dv-referral-ledger/internal/config"
	"github.com/nimasrn/dv-referral-ledger/pkg/logger"
	"github.com/spf13/cobra"
)

var envPath string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operational tools for the referral ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Load(envPath)
		},
	}
	root.PersistentFlags().StringVar(&envPath, "env", "", "Path to a .env file")

	root.AddCommand(
		newMigrateCommand(),
		newLedgerCommand(),
		newTokenCommand(),
	)
	return root
}

func main() {
	defer logger.Sync()
	if err := newRootCommand().Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
