package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/techagentng/collabhub/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		gormDB, err := db.GetDB(conf)
		if err != nil {
			return err
		}
		defer gormDB.Close()
		log.Info().Msg("migrations completed")
		return nil
	},
}
