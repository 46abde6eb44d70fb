package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"log/slog"

	"github.com/gofrs/flock"

	"strata/internal/builder"
	"strata/internal/config"
	"strata/internal/logging"
	"strata/internal/provisioner"
	"strata/internal/router"
	"strata/internal/runstore"
	"strata/internal/services"
	"strata/internal/stage"
	"strata/internal/stageexec"
	"strata/internal/testrunner"
	"strata/internal/verifier"
)

// Stage pairs a handler with the name its results are recorded under.
type Stage struct {
	Name    string
	Handler stage.Handler
}

// Dispatcher routes a terminal run to its outcome branch.
type Dispatcher interface {
	Dispatch(ctx context.Context, run *runstore.Run) error
}

// Manager drives the pipeline: one run per matrix entry, required stages in
// fixed order with short-circuit on failure, then outcome routing. A
// workspace lock keeps concurrent invocations from sharing environments.
type Manager struct {
	cfg      *config.Config
	store    *runstore.Store
	logger   *slog.Logger
	stages   []Stage
	router   Dispatcher
	lockPath string
	lock     *flock.Flock
}

// NewManager constructs the pipeline manager with the default stage set.
func NewManager(cfg *config.Config, store *runstore.Store, logger *slog.Logger) *Manager {
	stages := []Stage{
		{Name: "provision", Handler: provisioner.NewProvisioner(cfg, store, logger)},
		{Name: "build", Handler: builder.NewBuilder(cfg, store, logger)},
		{Name: "verify", Handler: verifier.NewVerifier(cfg, store, logger)},
		{Name: "test", Handler: testrunner.NewRunner(cfg, store, logger)},
	}
	return NewManagerWithStages(cfg, store, logger, stages, router.NewRouter(cfg, store, logger))
}

// NewManagerWithStages allows injecting the stage set and dispatcher (used in tests).
func NewManagerWithStages(cfg *config.Config, store *runstore.Store, logger *slog.Logger, stages []Stage, dispatcher Dispatcher) *Manager {
	managerLogger := logger
	if managerLogger != nil {
		managerLogger = managerLogger.With(logging.String("component", "pipeline"))
	}
	lockPath := filepath.Join(cfg.Paths.WorkspaceDir, "strata.lock")
	return &Manager{
		cfg:      cfg,
		store:    store,
		logger:   managerLogger,
		stages:   stages,
		router:   dispatcher,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
}

// MatrixResult summarizes a full matrix invocation.
type MatrixResult struct {
	Runs []*runstore.Run
}

// Succeeded reports whether every matrix entry finished successfully.
func (r MatrixResult) Succeeded() bool {
	if len(r.Runs) == 0 {
		return false
	}
	for _, run := range r.Runs {
		if run.Status != runstore.StatusSuccess {
			return false
		}
	}
	return true
}

// RunMatrix executes one run per configured interpreter version. Matrix
// entries are independent: a failed entry routes its failure branch and the
// next entry still runs.
func (m *Manager) RunMatrix(ctx context.Context) (MatrixResult, error) {
	versions := m.cfg.Environment.PythonVersions
	if len(versions) == 0 {
		return MatrixResult{}, services.Wrap(services.ErrConfiguration, "pipeline", "matrix", "no interpreter versions configured", nil)
	}
	unlock, err := m.acquireLock()
	if err != nil {
		return MatrixResult{}, err
	}
	defer unlock()

	result := MatrixResult{Runs: make([]*runstore.Run, 0, len(versions))}
	for _, version := range versions {
		run, err := m.executeRun(ctx, version)
		if run != nil {
			result.Runs = append(result.Runs, run)
		}
		if err != nil && run == nil {
			// Infrastructure failure before a run existed; nothing to route.
			return result, err
		}
	}
	return result, nil
}

// RunOne executes a single matrix entry under the workspace lock.
func (m *Manager) RunOne(ctx context.Context, pythonVersion string) (*runstore.Run, error) {
	unlock, err := m.acquireLock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return m.executeRun(ctx, pythonVersion)
}

// HealthChecks reports readiness of every configured stage handler.
func (m *Manager) HealthChecks(ctx context.Context) []stage.Health {
	checks := make([]stage.Health, 0, len(m.stages))
	for _, st := range m.stages {
		checks = append(checks, st.Handler.HealthCheck(ctx))
	}
	return checks
}

// executeRun drives one run through the required stages and routes the
// outcome. The returned error reflects the required-stage failure, if any;
// routing problems are logged, never propagated.
func (m *Manager) executeRun(ctx context.Context, pythonVersion string) (*runstore.Run, error) {
	run, err := m.store.NewRun(ctx, pythonVersion)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	runCtx := services.WithRunID(ctx, run.ID)
	logger := logging.WithContext(runCtx, m.logger)

	run.Status = runstore.StatusRunning
	if err := m.store.UpdateRun(runCtx, run); err != nil {
		return run, fmt.Errorf("mark run running: %w", err)
	}
	logger.Info(
		"run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("python_version", pythonVersion),
	)

	var stageErr error
	for _, st := range m.stages {
		stageErr = stageexec.Run(runCtx, stageexec.Options{
			Logger:         m.logger,
			Store:          m.store,
			Handler:        st.Handler,
			StageName:      st.Name,
			Classification: runstore.ClassRequired,
			Run:            run,
		})
		if stageErr != nil {
			break
		}
	}

	if stageErr == nil {
		run.Status = runstore.StatusSuccess
		if err := m.store.UpdateRun(runCtx, run); err != nil {
			return run, fmt.Errorf("mark run succeeded: %w", err)
		}
	}

	if m.router != nil {
		if routeErr := m.router.Dispatch(runCtx, run); routeErr != nil {
			logger.Warn("outcome routing incomplete", logging.Error(routeErr))
		}
	}

	logger.Info(
		"run finished",
		logging.String(logging.FieldEventType, "run_finish"),
		logging.String("status", string(run.Status)),
	)
	return run, stageErr
}

func (m *Manager) acquireLock() (func(), error) {
	ok, err := m.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire workspace lock: %w", err)
	}
	if !ok {
		return nil, errors.New("another pipeline invocation holds the workspace lock")
	}
	return func() {
		if err := m.lock.Unlock(); err != nil && m.logger != nil {
			m.logger.Warn("failed to release workspace lock", logging.Error(err))
		}
	}, nil
}

// LockPath exposes the workspace lock location for status reporting.
func (m *Manager) LockPath() string {
	return m.lockPath
}
