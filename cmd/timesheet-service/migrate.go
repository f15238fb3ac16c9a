package main

import (
	"github.com/medflow/timesheet-service/internal/timesheet/repository"
	"github.com/medflow/timesheet-service/pkg/database"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			db, err := database.New(&cfg.Database, log)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := db.Migrate(cmd.Context(), repository.Migrations())
			if err != nil {
				return err
			}

			log.Info().Strs("applied", applied).Msg("migrations complete")
			return nil
		},
	}
}
