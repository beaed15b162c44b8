package main

import (
	"fmt"

	"github.com/nimasrn/dv-referral-ledger/internal/bootstrap"
	"github.com/nimasrn/dv-referral-ledger/internal/processor"
	"github.com/nimasrn/dv-referral-ledger/internal/repository"
	"github.com/spf13/cobra"
)

func newLedgerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reconcile",
		Short: "Compare cached balances with ledger sums once",
		RunE: func(c *cobra.Command, _ []string) error {
			db, err := bootstrap.OpenDB()
			if err != nil {
				return fmt.Errorf("connect to pg: %w", err)
			}
			return reconcile(c, processor.NewLedgerReconciler(repository.NewLedgerRepository(db), "manual"))
		},
	})
	return cmd
}

func reconcile(c *cobra.Command, r *processor.LedgerReconciler) error {
	drift, err := r.Reconcile(c.Context())
	if err != nil {
		return err
	}
	out := c.OutOrStdout()
	if len(drift) == 0 {
		fmt.Fprintln(out, "ledger consistent")
		return nil
	}
	for _, d := range drift {
		fmt.Fprintf(out, "user %d: cached=%d ledger=%d\n", d.UserID, d.Cached, d.LedgerSum)
	}
	return fmt.Errorf("%d users drifted", len(drift))
}
