package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qmjianda/loglayout-sub001/internal/pkg/security"
)

func newTokenCmd(a *app) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Generate an API token and the hash to put in server.token_hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				var err error
				if token, err = security.GenerateToken(); err != nil {
					return err
				}
			}
			hash, err := security.HashToken(token)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "token:      %s\n", token)
			fmt.Fprintf(out, "token_hash: %s\n", hash)
			fmt.Fprintf(out, "\nexport LOGLAYOUT_SERVER_TOKEN_HASH='%s'\n", hash)
			a.log.Debug().Str("component", "token").Msg("token generated")
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Hash this token instead of generating one")
	return cmd
}
