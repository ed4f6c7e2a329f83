package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/makeasinger/songgen/internal/apperr"
)

func newResolveCmd(c *cli) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "resolve <jobId>",
		Short: "Resolve the playable URL of a job",
		Long: `Resolve runs the same tiered lookup as GET /api/generation/play/:jobId
and prints the URL. Found URLs are written back to the job and the call
counts as one listen.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}

			comps, err := newComponents(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer comps.Close()

			url, err := comps.resolver.ResolvePlayURL(cmd.Context(), args[0], userID)
			if err != nil {
				cmd.PrintErrf("resolve failed (%s): %v\n", apperr.KindOf(err), err)
				return err
			}
			cmd.Println(url)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "requesting user id")
	return cmd
}
