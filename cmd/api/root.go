package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"cygnus-loan-engine/internal/config"
	"cygnus-loan-engine/pkg/logger"
)

var (
	cfg       *config.Config
	log       *slog.Logger
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "loan-engine",
	Short: "Collateralized peer-to-peer loan engine",
	Long: `loan-engine lends a principal against locked collateral, collects
fixed installments, and hands the collateral to the lender once an
installment is overdue. Configuration comes from CONFIG_FILE (TOML) and
environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return err
		}
		l, closer, err := logger.New(c.Log)
		if err != nil {
			return err
		}
		slog.SetDefault(l)
		cfg, log, logCloser = c, l, closer
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}
