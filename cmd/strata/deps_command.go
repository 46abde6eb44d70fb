package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"strata/internal/deps"
	"strata/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var runPreflight bool

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check external tool availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, header := range renderSectionHeader("External tools", colorize) {
				fmt.Fprintln(out, header)
			}
			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			var missing int
			for _, status := range statuses {
				kind := statusOK
				message := status.Command
				if !status.Available {
					message = status.Detail
					if status.Optional {
						kind = statusWarn
					} else {
						kind = statusError
						missing++
					}
				}
				fmt.Fprintln(out, renderStatusLine(status.Name, kind, message, colorize))
			}

			if runPreflight {
				for _, header := range renderSectionHeader("Preflight", colorize) {
					fmt.Fprintln(out, header)
				}
				for _, result := range preflight.RunAll(cmd.Context(), cfg) {
					kind := statusOK
					if !result.Passed {
						kind = statusError
						missing++
					}
					fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
				}
			}

			if missing > 0 {
				return fmt.Errorf("%d required check(s) failed", missing)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&runPreflight, "preflight", false, "Also run workspace preflight checks")
	return cmd
}
