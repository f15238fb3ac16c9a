package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/medflow/timesheet-service/pkg/auth"
	"github.com/medflow/timesheet-service/pkg/config"
	"github.com/spf13/cobra"
)

// newTokenCmd issues bearer tokens for local testing against the API.
func newTokenCmd() *cobra.Command {
	var (
		id  auth.Identity
		ttl time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed development token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if config.IsProductionLike(cfg.Server.Environment) {
				return errors.New("token issuing is disabled in " + cfg.Server.Environment)
			}
			if id.UserID == "" {
				return errors.New("--user is required")
			}

			token, err := auth.NewManager(&cfg.JWT).Sign(id, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&id.UserID, "user", "", "user id carried by the token")
	cmd.Flags().StringVar(&id.Name, "name", "", "display name")
	cmd.Flags().StringVar(&id.Email, "email", "", "email address")
	cmd.Flags().StringSliceVar(&id.Roles, "role", []string{config.DefaultEmployeeRole}, "role names, repeatable")
	cmd.Flags().StringSliceVar(&id.Permissions, "permission", nil, "extra permissions, repeatable")
	cmd.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "token lifetime")

	return cmd
}
