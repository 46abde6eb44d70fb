package testrunner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"strata/internal/config"
	"strata/internal/envspec"
	"strata/internal/logging"
	"strata/internal/runstore"
	"strata/internal/services"
	"strata/internal/services/micromamba"
	"strata/internal/stage"
)

// Runner executes the test suite against the installed artifact and, only
// once the suite passes, builds the documentation.
type Runner struct {
	cfg    *config.Config
	store  *runstore.Store
	logger *slog.Logger
	client micromamba.Client
}

// NewRunner constructs the test runner stage handler using default dependencies.
func NewRunner(cfg *config.Config, store *runstore.Store, logger *slog.Logger) *Runner {
	client := micromamba.NewCLI(micromamba.WithBinary(cfg.Environment.ManagerBinary))
	return NewRunnerWithClient(cfg, store, logger, client)
}

// NewRunnerWithClient allows injecting the environment manager client (used in tests).
func NewRunnerWithClient(cfg *config.Config, store *runstore.Store, logger *slog.Logger, client micromamba.Client) *Runner {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "testrunner"))
	}
	return &Runner{cfg: cfg, store: store, logger: stageLogger, client: client}
}

// SetLogger updates the logger used by the handler.
func (r *Runner) SetLogger(logger *slog.Logger) {
	if logger != nil {
		r.logger = logger.With(logging.String("component", "testrunner"))
	}
}

// Prepare validates the run state and creates the coverage output directory.
func (r *Runner) Prepare(ctx context.Context, run *runstore.Run) error {
	handle := envspec.Handle{Name: run.EnvName, Prefix: run.EnvPrefix, PythonVersion: run.PythonVersion}
	if !handle.Valid() {
		return services.Wrap(services.ErrTestFailure, "testrunner", "prepare", "run has no provisioned environment", nil)
	}
	if strings.TrimSpace(run.ArtifactPath) == "" {
		return services.Wrap(services.ErrTestFailure, "testrunner", "prepare", "run has no installed artifact", nil)
	}
	if err := os.MkdirAll(filepath.Dir(r.coveragePath(run)), 0o755); err != nil {
		return services.Wrap(services.ErrTestFailure, "testrunner", "prepare", "failed to create coverage directory", err)
	}
	return nil
}

// Execute runs the suite with coverage scoped to the package's own source,
// then builds the docs. The docs build is strictly ordered after a passing
// suite and its failure aborts the run just like a failing test.
func (r *Runner) Execute(ctx context.Context, run *runstore.Run) error {
	logger := logging.WithContext(ctx, r.logger)

	coveragePath := r.coveragePath(run)
	argv := r.pytestArgv(coveragePath)
	logger.Info("running test suite", logging.String("package", r.cfg.Project.Name), logging.Bool("doctests", r.cfg.Tests.DoctestModules))
	if _, err := r.client.Run(ctx, micromamba.RunRequest{
		Prefix: run.EnvPrefix,
		Dir:    r.cfg.Project.RepoDir,
		Argv:   argv,
	}); err != nil {
		return services.Wrap(services.ErrTestFailure, "testrunner", "pytest", "test suite failed", err)
	}
	run.CoveragePath = coveragePath
	logger.Info("test suite passed", logging.String("coverage_report", coveragePath))

	if strings.TrimSpace(r.cfg.Tests.DocsSourceDir) == "" {
		logger.Info("documentation build disabled")
		return nil
	}
	logger.Info("building documentation", logging.String("docs_source", r.cfg.Tests.DocsSourceDir))
	if _, err := r.client.Run(ctx, micromamba.RunRequest{
		Prefix: run.EnvPrefix,
		Dir:    r.cfg.Project.RepoDir,
		Argv:   []string{"sphinx-build", "-W", r.cfg.Tests.DocsSourceDir, r.cfg.Tests.DocsBuildDir},
	}); err != nil {
		return services.Wrap(services.ErrDocBuild, "testrunner", "docs", "documentation build failed", err)
	}
	logger.Info("documentation built", logging.String("docs_build", r.cfg.Tests.DocsBuildDir))
	return nil
}

// HealthCheck verifies the repository is available for the suite to run in.
func (r *Runner) HealthCheck(ctx context.Context) stage.Health {
	const name = "testrunner"
	if r.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if r.client == nil {
		return stage.Unhealthy(name, "environment manager client unavailable")
	}
	if info, err := os.Stat(r.cfg.Project.RepoDir); err != nil || !info.IsDir() {
		return stage.Unhealthy(name, fmt.Sprintf("repository %s unavailable", r.cfg.Project.RepoDir))
	}
	return stage.Healthy(name)
}

func (r *Runner) coveragePath(run *runstore.Run) string {
	return filepath.Join(r.cfg.Paths.WorkspaceDir, "coverage", run.ID+".xml")
}

// pytestArgv targets the installed package via --pyargs so the suite imports
// the artifact, not the working tree.
func (r *Runner) pytestArgv(coveragePath string) []string {
	argv := []string{
		"python", "-m", "pytest",
		"--pyargs", r.cfg.Project.Name,
		"--cov=" + r.cfg.SourceDir(),
		"--cov-report=xml:" + coveragePath,
	}
	if r.cfg.Tests.DoctestModules {
		argv = append(argv, "--doctest-modules")
	}
	argv = append(argv, r.cfg.Tests.ExtraPytestArgs...)
	return argv
}
