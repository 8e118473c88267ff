package main

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"cygnus-loan-engine/internal/domain/authz"
	accountuc "cygnus-loan-engine/internal/usecase/account"
)

func init() {
	rootCmd.AddCommand(depositCmd)
}

var depositCmd = &cobra.Command{
	Use:   "deposit ACCOUNT ASSET AMOUNT",
	Short: "Credit an account as the operator",
	Long: `Credit AMOUNT whole units of ASSET to ACCOUNT. The command acts as
OPERATOR_ACCOUNT and is meant for local funding and test setups.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := decimal.NewFromString(args[2])
		if err != nil {
			return fmt.Errorf("amount %q: %w", args[2], err)
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = st.close() }()

		g := authz.Grants{}
		g.Add(cfg.OperatorAccount, authz.OpDeposit)
		ctx := authz.WithGrants(cmd.Context(), g)

		t, err := newAccountUsecase(st).Deposit(ctx, accountuc.DepositInput{
			Operator: cfg.OperatorAccount, Account: args[0], Asset: args[1], Amount: amount,
		})
		if err != nil {
			return err
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(t)
	},
}
