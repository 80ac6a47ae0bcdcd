package main

import (
	"github.com/spf13/cobra"
	"github.com/suPer8Hu/ai-studio/internal/db"
	"github.com/suPer8Hu/ai-studio/internal/log"
)

var migrateCMD = &cobra.Command{
	Use:   "migrate",
	Short: "migrate",
	Long:  `create or update database tables`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := initialize()
		if err != nil {
			return err
		}
		gdb, err := db.Connect(cfg.DBDSN)
		if err != nil {
			return err
		}
		if err := db.Migrate(gdb); err != nil {
			return err
		}
		log.L().Info("migration done")
		return nil
	},
}

func init() {
	rootCMD.AddCommand(migrateCMD)
}
