package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scanCmd)
}

var scanCmd = &cobra.Command{
	Use:   "scan-overdue",
	Short: "List active loans with an overdue installment",
	Long: `Print one JSON line per active loan whose earliest unpaid installment
is past due. The scan never liquidates; the lender has to ask for that.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = st.close() }()

		reports, err := newLoanUsecase(st, nil, nil).ScanOverdue(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, r := range reports {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		log.Info("overdue scan done", "overdue", len(reports))
		return nil
	},
}
