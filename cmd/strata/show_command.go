package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"strata/internal/runstore"
	"strata/internal/stage"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run with its stage results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := resolveRun(cmd, store, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, header := range renderSectionHeader(fmt.Sprintf("Run %s", shortID(run.ID)), colorize) {
				fmt.Fprintln(out, header)
			}
			kind := statusOK
			if run.Status != runstore.StatusSuccess {
				kind = statusError
			}
			if !run.Status.Terminal() {
				kind = statusInfo
			}
			fmt.Fprintln(out, renderStatusLine("Status", kind, string(run.Status), colorize))
			fmt.Fprintln(out, renderStatusLine("Python", statusInfo, run.PythonVersion, colorize))
			if run.EnvName != "" {
				fmt.Fprintln(out, renderStatusLine("Environment", statusInfo, run.EnvName, colorize))
			}
			if run.ArtifactPath != "" {
				fmt.Fprintln(out, renderStatusLine("Artifact", statusInfo, run.ArtifactPath, colorize))
			}
			if run.ArtifactDigest != "" {
				fmt.Fprintln(out, renderStatusLine("Artifact digest", statusInfo, run.ArtifactDigest, colorize))
			}
			if run.CoveragePath != "" {
				fmt.Fprintln(out, renderStatusLine("Coverage", statusInfo, run.CoveragePath, colorize))
			}
			if run.ErrorMessage != "" {
				fmt.Fprintln(out, renderStatusLine("Error", statusError, run.ErrorMessage, colorize))
			}

			results, err := store.StageResults(cmd.Context(), run.ID)
			if err != nil {
				return fmt.Errorf("load stage results: %w", err)
			}
			if len(results) == 0 {
				fmt.Fprintln(out, "No stage results recorded")
				return nil
			}

			headers := []string{"#", "Stage", "Class", "Status", "Duration", "Hint"}
			rows := make([][]string, 0, len(results))
			for _, res := range results {
				rows = append(rows, []string{
					fmt.Sprintf("%d", res.Seq+1),
					stage.Label(res.Name),
					string(res.Classification),
					string(res.Status),
					res.Duration().String(),
					res.Hint,
				})
			}
			aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}
			fmt.Fprintln(out, renderTable(headers, rows, aligns))
			return nil
		},
	}
	return cmd
}

// resolveRun accepts a full run ID or an unambiguous prefix.
func resolveRun(cmd *cobra.Command, store *runstore.Store, id string) (*runstore.Run, error) {
	run, err := store.GetRun(cmd.Context(), id)
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, runstore.ErrNotFound) {
		return nil, fmt.Errorf("load run: %w", err)
	}

	runs, listErr := store.ListRuns(cmd.Context(), 0)
	if listErr != nil {
		return nil, fmt.Errorf("load run: %w", listErr)
	}
	var match *runstore.Run
	for _, candidate := range runs {
		if strings.HasPrefix(candidate.ID, id) {
			if match != nil {
				return nil, fmt.Errorf("run prefix %q is ambiguous", id)
			}
			match = candidate
		}
	}
	if match == nil {
		return nil, fmt.Errorf("run %q not found", id)
	}
	return match, nil
}
