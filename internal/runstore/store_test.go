package runstore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"strata/internal/runstore"
)

func openStore(t *testing.T) *runstore.Store {
	t.Helper()
	store, err := runstore.OpenPath(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewRunStartsPending(t *testing.T) {
	store := openStore(t)
	run, err := store.NewRun(context.Background(), "3.11")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	if run.Status != runstore.StatusPending {
		t.Fatalf("status = %q, want pending", run.Status)
	}
	if run.ID == "" {
		t.Fatal("run id must be assigned")
	}
	if run.PythonVersion != "3.11" {
		t.Fatalf("python version = %q", run.PythonVersion)
	}
}

func TestUpdateRunPersistsFields(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	run, err := store.NewRun(ctx, "3.11")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	run.Status = runstore.StatusRunning
	run.EnvName = "strata-py311"
	run.EnvPrefix = "/tmp/envs/strata-py311"
	run.ArtifactPath = "/tmp/dist/fulcrum-0.5.tar.gz"
	if err := store.UpdateRun(ctx, run); err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != runstore.StatusRunning {
		t.Errorf("status = %q", got.Status)
	}
	if got.EnvPrefix != run.EnvPrefix {
		t.Errorf("env prefix = %q", got.EnvPrefix)
	}
	if got.FinishedAt != nil {
		t.Error("non-terminal run must not have a finished timestamp")
	}
}

func TestTerminalStatusSetsFinishedAt(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	run, err := store.NewRun(ctx, "3.11")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	run.SetFailed("provision: manifest did not resolve")
	if err := store.UpdateRun(ctx, run); err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.FinishedAt == nil {
		t.Fatal("terminal run must record finished_at")
	}
	if got.ErrorMessage == "" {
		t.Fatal("failure message must persist")
	}
}

func TestGetRunNotFound(t *testing.T) {
	store := openStore(t)
	if _, err := store.GetRun(context.Background(), "no-such-run"); err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestStageResultsKeepExecutionOrder(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	run, err := store.NewRun(ctx, "3.11")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	now := time.Now().UTC()
	for i, name := range []string{"provision", "build", "verify"} {
		result := &runstore.StageResult{
			RunID:          run.ID,
			Name:           name,
			Classification: runstore.ClassRequired,
			Status:         runstore.StageSuccess,
			StartedAt:      now.Add(time.Duration(i) * time.Second),
			FinishedAt:     now.Add(time.Duration(i+1) * time.Second),
		}
		if err := store.AppendStageResult(ctx, result); err != nil {
			t.Fatalf("AppendStageResult(%s): %v", name, err)
		}
		if result.Seq != i {
			t.Fatalf("seq for %s = %d, want %d", name, result.Seq, i)
		}
	}

	results, err := store.StageResults(ctx, run.ID)
	if err != nil {
		t.Fatalf("StageResults: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, want := range []string{"provision", "build", "verify"} {
		if results[i].Name != want {
			t.Errorf("result %d = %q, want %q", i, results[i].Name, want)
		}
	}
	if results[0].Duration() != time.Second {
		t.Errorf("duration = %v, want 1s", results[0].Duration())
	}
}

func TestListRunsMostRecentFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	first, err := store.NewRun(ctx, "3.10")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	second, err := store.NewRun(ctx, "3.11")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != second.ID || runs[1].ID != first.ID {
		t.Fatal("runs must be ordered most recent first")
	}

	limited, err := store.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("ListRuns limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := runstore.ParseStatus(" Failure "); !ok || status != runstore.StatusFailure {
		t.Fatalf("ParseStatus = %q ok=%v", status, ok)
	}
	if _, ok := runstore.ParseStatus("exploded"); ok {
		t.Fatal("unknown status must not parse")
	}
}
