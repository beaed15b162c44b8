package main

import (
	"fmt"

	"github.com/nimasrn/dv-referral-ledger/internal/config"
	"github.com/nimasrn/dv-referral-ledger/internal/model"
	"github.com/nimasrn/dv-referral-ledger/pkg/jwt"
	"github.com/spf13/cobra"
)

func newTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "API token tools",
	}

	var subject, role string
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue a bearer token signed with JWT_SECRET",
		RunE: func(c *cobra.Command, _ []string) error {
			if !model.Role(role).Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			cfg := config.Get()
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			tok, err := jwt.NewManager(cfg.JWTSecret, cfg.JWTTokenTTL).Issue(subject, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), tok)
			return nil
		},
	}
	issue.Flags().StringVar(&subject, "subject", "", "Token subject, the user id")
	issue.Flags().StringVar(&role, "role", string(model.RoleAdmin), "Role claim: user, agent or admin")
	_ = issue.MarkFlagRequired("subject")

	cmd.AddCommand(issue)
	return cmd
}
