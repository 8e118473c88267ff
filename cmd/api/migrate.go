package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the storage schema and seed the loan counter",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = st.close() }()
		if err := st.migrate(); err != nil {
			return err
		}
		log.Info("schema ready", "store", cfg.StoreDriver)
		return nil
	},
}
