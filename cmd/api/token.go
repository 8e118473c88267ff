package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cygnus-loan-engine/internal/adapter/middleware"
	"cygnus-loan-engine/internal/domain/authz"
)

func init() {
	rootCmd.AddCommand(issueTokenCmd)
	issueTokenCmd.Flags().StringSlice("ops", nil, "Operations to authorize (create_loan, make_repayment, liquidate_collateral, deposit)")
	issueTokenCmd.Flags().Duration("ttl", 15*time.Minute, "Token lifetime (0 for no expiry)")
}

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token ACCOUNT",
	Short: "Sign an Ax-Principal-Token for ACCOUNT",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.JWTSecret == "" {
			return errors.New("JWT_SECRET is required")
		}
		raw, _ := cmd.Flags().GetStringSlice("ops")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if len(raw) == 0 {
			return errors.New("--ops is required")
		}
		ops := make([]authz.Op, len(raw))
		for i, op := range raw {
			ops[i] = authz.Op(op)
		}
		tok, err := middleware.SignPrincipalToken(middleware.TokenConfig{
			Secret: []byte(cfg.JWTSecret),
			Issuer: cfg.JWTIssuer,
		}, args[0], ttl, ops...)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}
