package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"flowtrack/internal/auth"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for local development",
		Long: `Token signs an HS256 JWT for --owner with AUTH_JWT_SECRET, so the API
can be exercised without the identity provider.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret := viper.GetString("auth_jwt_secret")
			if secret == "" {
				return errors.New("AUTH_JWT_SECRET is not set")
			}
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive, got %s", ttl)
			}

			token, err := auth.NewVerifier(secret, viper.GetString("auth_audience")).Issue(owner(), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Duration("ttl", time.Hour, "token lifetime")
	return cmd
}
