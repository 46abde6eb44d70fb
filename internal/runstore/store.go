package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"strata/internal/config"
)

// ErrNotFound indicates the requested run does not exist.
var ErrNotFound = errors.New("run not found")

// Store manages pipeline run persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the run database in the workspace.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.WorkspaceDir, "runs.db"))
}

// OpenPath connects to the run database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// NewRun inserts a pending run for one matrix entry and returns it.
func (s *Store) NewRun(ctx context.Context, pythonVersion string) (*Run, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (id, python_version, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		id,
		pythonVersion,
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	return s.GetRun(ctx, id)
}

// GetRun fetches one run by identifier.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, python_version, env_name, env_prefix, artifact_path, artifact_digest,
                coverage_path, status, error_message, created_at, updated_at, finished_at
         FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, err
}

// UpdateRun persists the run's mutable fields.
func (s *Store) UpdateRun(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("run is required")
	}
	now := time.Now().UTC()
	run.UpdatedAt = now

	var finished any
	if run.Status.Terminal() {
		if run.FinishedAt == nil {
			run.FinishedAt = &now
		}
		finished = run.FinishedAt.Format(time.RFC3339Nano)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET env_name = ?, env_prefix = ?, artifact_path = ?, artifact_digest = ?,
                coverage_path = ?, status = ?, error_message = ?, updated_at = ?, finished_at = ?
         WHERE id = ?`,
		run.EnvName,
		run.EnvPrefix,
		run.ArtifactPath,
		run.ArtifactDigest,
		run.CoveragePath,
		run.Status,
		run.ErrorMessage,
		now.Format(time.RFC3339Nano),
		finished,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, run.ID)
	}
	return nil
}

// ListRuns returns runs ordered most recent first, up to limit (0 = all).
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT id, python_version, env_name, env_prefix, artifact_path, artifact_digest,
                coverage_path, status, error_message, created_at, updated_at, finished_at
         FROM runs ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// AppendStageResult records one stage execution. Seq is assigned from the
// count of prior results so stage order is reconstructible from the store.
func (s *Store) AppendStageResult(ctx context.Context, result *StageResult) error {
	if result == nil {
		return errors.New("stage result is required")
	}
	if result.RunID == "" {
		return errors.New("stage result requires a run id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin stage result tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM stage_results WHERE run_id = ?", result.RunID,
	).Scan(&seq); err != nil {
		return fmt.Errorf("count stage results: %w", err)
	}
	result.Seq = seq

	_, err = tx.ExecContext(ctx,
		`INSERT INTO stage_results
            (run_id, seq, name, classification, status, error_message, hint, started_at, finished_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID,
		result.Seq,
		result.Name,
		result.Classification,
		result.Status,
		result.ErrorMessage,
		result.Hint,
		result.StartedAt.UTC().Format(time.RFC3339Nano),
		result.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert stage result: %w", err)
	}

	return tx.Commit()
}

// StageResults returns a run's stage results in execution order.
func (s *Store) StageResults(ctx context.Context, runID string) ([]StageResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, seq, name, classification, status, error_message, hint, started_at, finished_at
         FROM stage_results WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list stage results: %w", err)
	}
	defer rows.Close()

	var results []StageResult
	for rows.Next() {
		var sr StageResult
		var started, finished string
		if err := rows.Scan(
			&sr.RunID, &sr.Seq, &sr.Name, &sr.Classification, &sr.Status,
			&sr.ErrorMessage, &sr.Hint, &started, &finished,
		); err != nil {
			return nil, fmt.Errorf("scan stage result: %w", err)
		}
		if sr.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if sr.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		results = append(results, sr)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var created, updated string
	var finished sql.NullString
	if err := row.Scan(
		&run.ID, &run.PythonVersion, &run.EnvName, &run.EnvPrefix,
		&run.ArtifactPath, &run.ArtifactDigest, &run.CoveragePath,
		&run.Status, &run.ErrorMessage,
		&created, &updated, &finished,
	); err != nil {
		return nil, err
	}

	var err error
	if run.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if run.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if finished.Valid && finished.String != "" {
		ts, err := time.Parse(time.RFC3339Nano, finished.String)
		if err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		run.FinishedAt = &ts
	}
	return &run, nil
}
