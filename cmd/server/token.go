package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/makeasinger/songgen/internal/auth"
)

func newTokenCmd(c *cli) *cobra.Command {
	var userID, email string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a legacy HMAC token for local development",
		Long: `Token signs a bearer token with JWT_SECRET for the given user. It expires
after jwt.expiration hours; 0 mints a token without expiry.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			if c.cfg.JWT.Secret == "" {
				return errors.New("JWT_SECRET is not set")
			}

			ttl := time.Duration(c.cfg.JWT.Expiration) * time.Hour
			token, err := auth.NewLegacyVerifier(c.cfg.JWT.Secret).Issue(userID, email, ttl)
			if err != nil {
				return err
			}
			cmd.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to embed")
	cmd.Flags().StringVar(&email, "email", "", "optional email claim")
	return cmd
}
