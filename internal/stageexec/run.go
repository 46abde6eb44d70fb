package stageexec

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"strata/internal/logging"
	"strata/internal/runstore"
	"strata/internal/services"
	"strata/internal/stage"
)

// Options controls stage execution and run persistence behavior.
type Options struct {
	Logger         *slog.Logger
	Store          *runstore.Store
	Handler        stage.Handler
	StageName      string
	Classification runstore.Classification
	Run            *runstore.Run
}

// Run executes one stage against a pipeline run and records the result.
//
// A required stage's error propagates to the caller after being recorded,
// aborting the run. A best-effort stage's error is recorded and logged but
// swallowed, so the aggregate status is untouched.
func Run(ctx context.Context, opts Options) error {
	if opts.Handler == nil {
		return fmt.Errorf("stage handler unavailable: %s", opts.StageName)
	}
	if opts.Store == nil {
		return fmt.Errorf("run store is required")
	}
	if opts.Run == nil {
		return fmt.Errorf("pipeline run is required")
	}
	if opts.Classification == "" {
		opts.Classification = runstore.ClassRequired
	}

	stageCtx := services.WithStage(ctx, opts.StageName)
	stageLogger := logging.WithContext(stageCtx, opts.Logger)
	if aware, ok := opts.Handler.(stage.LoggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("classification", string(opts.Classification)),
		logging.String("python_version", opts.Run.PythonVersion),
	)

	started := time.Now().UTC()

	err := opts.Handler.Prepare(stageCtx, opts.Run)
	if err == nil {
		err = opts.Handler.Execute(stageCtx, opts.Run)
	}
	finished := time.Now().UTC()

	result := &runstore.StageResult{
		RunID:          opts.Run.ID,
		Name:           opts.StageName,
		Classification: opts.Classification,
		Status:         runstore.StageSuccess,
		StartedAt:      started,
		FinishedAt:     finished,
	}

	if err != nil {
		result.Status = runstore.StageFailure
		result.ErrorMessage = services.Message(err)
		result.Hint = services.Hint(err)
	}

	if persistErr := opts.Store.AppendStageResult(stageCtx, result); persistErr != nil {
		stageLogger.Error("failed to persist stage result", logging.Error(persistErr))
		if err == nil {
			return fmt.Errorf("persist stage result: %w", persistErr)
		}
	}

	if err != nil {
		return handleFailure(stageCtx, stageLogger, opts, err)
	}

	if persistErr := opts.Store.UpdateRun(stageCtx, opts.Run); persistErr != nil {
		return fmt.Errorf("persist run after stage: %w", persistErr)
	}

	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", finished.Sub(started)),
	)

	return nil
}

func handleFailure(ctx context.Context, logger *slog.Logger, opts Options, stageErr error) error {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("classification", string(opts.Classification)),
		logging.String("error_message", services.Message(stageErr)),
		logging.Error(stageErr),
	}
	if hint := services.Hint(stageErr); hint != "" {
		attrs = append(attrs, logging.String(logging.FieldErrorHint, hint))
	}

	if opts.Classification == runstore.ClassBestEffort {
		logger.Warn("best-effort stage failed", logging.Args(attrs...)...)
		return nil
	}

	opts.Run.SetFailed(services.Message(stageErr))
	logger.Error("stage failed", logging.Args(attrs...)...)

	if err := opts.Store.UpdateRun(ctx, opts.Run); err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
	}

	return stageErr
}
