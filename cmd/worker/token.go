package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/notifier/pkg/auth"
)

const jwtIssuer = "notifier"

var (
	tokenSubject string
	tokenRole    string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the ops API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Security.JWTSecret == "" {
			return errors.New("security.jwt_secret is not set")
		}
		if tokenRole != auth.RoleViewer && tokenRole != auth.RoleOperator {
			return fmt.Errorf("unknown role %q", tokenRole)
		}

		token, err := auth.NewJWTService(cfg.Security.JWTSecret, jwtIssuer).GenerateToken(tokenSubject, tokenRole, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "who the token is issued to")
	tokenCmd.Flags().StringVar(&tokenRole, "role", auth.RoleViewer, "viewer or operator")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("subject")
}
