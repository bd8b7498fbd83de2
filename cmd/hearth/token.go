package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/hearth/internal/auth"
	"github.com/nerrad567/hearth/internal/infrastructure/config"
)

func newTokenCmd(configPath *string) *cobra.Command {
	var subject, role string
	var ttl int

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token",
		Long:  `Signs a token with security.jwt.secret. Viewers may read status and history; operators may also send commands.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadOrDefault(resolveConfigPath(*configPath))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cfg.Security.JWT.Secret == "" {
				return fmt.Errorf("security.jwt.secret is not set, authentication is disabled")
			}
			if ttl <= 0 {
				ttl = cfg.Security.JWT.TokenTTL
			}

			token, err := auth.GenerateToken(subject, auth.Role(role), cfg.Security.JWT.Secret, ttl)
			if err != nil {
				return fmt.Errorf("generating token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "hearth-cli", "token subject")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleOperator), "role: viewer or operator")
	cmd.Flags().IntVar(&ttl, "ttl", 0, "lifetime in minutes (default security.jwt.token_ttl)")
	return cmd
}
