package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"strata/internal/pipeline"
	"strata/internal/provisioner"
)

// newProvisionCommand builds environments without running the pipeline,
// useful for warming a workspace or debugging manifest resolution.
func newProvisionCommand(ctx *commandContext) *cobra.Command {
	var pythonVersion string

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Provision interpreter environments without running the pipeline",
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

			versions := cfg.Environment.PythonVersions
			if v := strings.TrimSpace(pythonVersion); v != "" {
				versions = []string{v}
			}
			if len(versions) == 0 {
				return fmt.Errorf("no interpreter versions configured")
			}

			stages := []pipeline.Stage{
				{Name: "provision", Handler: provisioner.NewProvisioner(cfg, store, logger)},
			}
			mgr := pipeline.NewManagerWithStages(cfg, store, logger, stages, nil)

			out := cmd.OutOrStdout()
			var firstErr error
			for _, version := range versions {
				run, runErr := mgr.RunOne(runCtx, version)
				if run != nil {
					printRunOutcome(out, run)
				}
				if runErr != nil && firstErr == nil {
					firstErr = runErr
				}
			}
			return firstErr
		},
	}

	cmd.Flags().StringVar(&pythonVersion, "python", "", "Provision a single interpreter version")
	return cmd
}
