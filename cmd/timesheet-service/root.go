package main

import (
	"fmt"

	"github.com/medflow/timesheet-service/pkg/config"
	"github.com/medflow/timesheet-service/pkg/logger"
	"github.com/spf13/cobra"
)

// newRootCmd creates the top-level command. Running it without a subcommand
// starts the HTTP server.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           config.ServiceName,
		Short:         "Weekly timesheet calendar service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newTokenCmd(),
	)

	return root
}

func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadWithValidation()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, logger.New(config.ServiceName, cfg.Server.Environment), nil
}
