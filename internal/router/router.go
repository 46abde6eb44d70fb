package router

import (
	"context"
	"fmt"

	"log/slog"

	"strata/internal/config"
	"strata/internal/coverage"
	"strata/internal/logging"
	"strata/internal/runstore"
	"strata/internal/services/git"
	"strata/internal/services/micromamba"
	"strata/internal/stageexec"
)

// Publisher is the slice of the git client the success branch depends on.
type Publisher interface {
	PublishDocs(ctx context.Context, req git.PublishRequest) error
}

// Router dispatches the terminal branch of a run. Exactly one branch executes
// for every terminal status: success runs the coverage upload and the site
// publish, failure runs the style diagnostic. All branch stages are
// best-effort and leave the aggregate status untouched.
type Router struct {
	cfg      *config.Config
	store    *runstore.Store
	logger   *slog.Logger
	uploader *coverage.Client
	gitc     Publisher
	client   micromamba.Client
}

// NewRouter constructs the outcome router using default dependencies.
func NewRouter(cfg *config.Config, store *runstore.Store, logger *slog.Logger) *Router {
	uploader := coverage.NewClient(cfg.Publish.CoverageEndpoint)
	gitClient := git.NewCLI(git.WithBinary(cfg.GitBinary()))
	client := micromamba.NewCLI(micromamba.WithBinary(cfg.Environment.ManagerBinary))
	return NewRouterWithDependencies(cfg, store, logger, uploader, gitClient, client)
}

// NewRouterWithDependencies allows injecting collaborators (used in tests).
func NewRouterWithDependencies(cfg *config.Config, store *runstore.Store, logger *slog.Logger, uploader *coverage.Client, gitClient Publisher, client micromamba.Client) *Router {
	routerLogger := logger
	if routerLogger != nil {
		routerLogger = routerLogger.With(logging.String("component", "router"))
	}
	return &Router{cfg: cfg, store: store, logger: routerLogger, uploader: uploader, gitc: gitClient, client: client}
}

// Dispatch routes the run to its outcome branch. The run must already carry a
// terminal status; a non-terminal run is a programming error and is rejected.
func (r *Router) Dispatch(ctx context.Context, run *runstore.Run) error {
	if run == nil {
		return fmt.Errorf("pipeline run is required")
	}
	if !run.Status.Terminal() {
		return fmt.Errorf("cannot route non-terminal run %s (status %s)", run.ID, run.Status)
	}
	logger := logging.WithContext(ctx, r.logger)

	switch run.Status {
	case runstore.StatusSuccess:
		logger.Info("routing success branch", logging.String(logging.FieldEventType, "route_success"))
		return r.successBranch(ctx, run)
	default:
		logger.Info("routing failure branch", logging.String(logging.FieldEventType, "route_failure"))
		return r.failureBranch(ctx, run)
	}
}

func (r *Router) successBranch(ctx context.Context, run *runstore.Run) error {
	if err := stageexec.Run(ctx, stageexec.Options{
		Logger:         r.logger,
		Store:          r.store,
		Handler:        newCoverageUpload(r.cfg, r.uploader, r.logger),
		StageName:      "coverage_upload",
		Classification: runstore.ClassBestEffort,
		Run:            run,
	}); err != nil {
		return err
	}
	return stageexec.Run(ctx, stageexec.Options{
		Logger:         r.logger,
		Store:          r.store,
		Handler:        newSitePublish(r.cfg, r.gitc, r.logger),
		StageName:      "site_publish",
		Classification: runstore.ClassBestEffort,
		Run:            run,
	})
}

func (r *Router) failureBranch(ctx context.Context, run *runstore.Run) error {
	return stageexec.Run(ctx, stageexec.Options{
		Logger:         r.logger,
		Store:          r.store,
		Handler:        newStyleCheck(r.cfg, r.client, r.logger),
		StageName:      "style_check",
		Classification: runstore.ClassBestEffort,
		Run:            run,
	})
}
