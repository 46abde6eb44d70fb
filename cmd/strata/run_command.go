package main

import (
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"strata/internal/pipeline"
	"strata/internal/preflight"
	"strata/internal/runstore"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var pythonVersion string
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the pipeline for the configured interpreter matrix",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger(cfg)
			if err != nil {
				return err
			}
			store, err := ctx.openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			if !skipPreflight {
				results := preflight.RunAll(runCtx, cfg)
				if failed := preflight.Failed(results); len(failed) > 0 {
					colorize := shouldColorize(out)
					for _, header := range renderSectionHeader("Preflight", colorize) {
						fmt.Fprintln(out, header)
					}
					for _, res := range results {
						if res.Passed {
							continue
						}
						fmt.Fprintln(out, renderStatusLine(res.Name, statusError, res.Detail, colorize))
					}
					return fmt.Errorf("preflight failed: %s", strings.Join(failed, ", "))
				}
			}

			mgr := pipeline.NewManager(cfg, store, logger)

			if version := strings.TrimSpace(pythonVersion); version != "" {
				run, runErr := mgr.RunOne(runCtx, version)
				if run != nil {
					printRunOutcome(out, run)
				}
				return runErr
			}

			result, runErr := mgr.RunMatrix(runCtx)
			for _, run := range result.Runs {
				printRunOutcome(out, run)
			}
			if runErr != nil {
				return runErr
			}
			if !result.Succeeded() {
				return fmt.Errorf("pipeline finished with failures")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pythonVersion, "python", "", "Run a single matrix entry for this interpreter version")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip preflight checks before running")
	return cmd
}

func printRunOutcome(out io.Writer, run *runstore.Run) {
	colorize := shouldColorize(out)
	kind := statusOK
	message := "all stages passed"
	if run.Status != runstore.StatusSuccess {
		kind = statusError
		message = run.ErrorMessage
	}
	label := fmt.Sprintf("python %s (%s)", run.PythonVersion, shortID(run.ID))
	fmt.Fprintln(out, renderStatusLine(label, kind, message, colorize))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
