package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stream/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var profileFlag string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify local binaries, directories, and the remote host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			results := preflight.RunAll(cmd.Context(), cfg, profileFlag)
			for _, result := range results {
				kind := statusError
				if result.Passed {
					kind = statusOK
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}

			passed, failed := preflight.Summarize(results)
			fmt.Fprintf(out, "\n%d passed, %d failed\n", passed, failed)
			return preflight.FailureError(results)
		},
	}

	cmd.Flags().StringVarP(&profileFlag, "profile", "p", "", "Profile to check (defaults to the config default)")
	return cmd
}
