package stage

import (
	"context"
	"log/slog"

	"strata/internal/runstore"
)

// Handler describes the contract the pipeline manager needs from each stage.
// Prepare validates inputs and fails fast before side effects; Execute does
// the work, mutating the run as it goes.
type Handler interface {
	Prepare(context.Context, *runstore.Run) error
	Execute(context.Context, *runstore.Run) error
	HealthCheck(context.Context) Health
}

// LoggerAware lets the executor inject a contextual logger into handlers
// that log during Execute.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}
