package preflight_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"strata/internal/config"
	"strata/internal/preflight"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	result := preflight.CheckDirectoryAccess("Workspace", dir)
	if !result.Passed {
		t.Fatalf("writable temp dir should pass: %+v", result)
	}

	missing := preflight.CheckDirectoryAccess("Workspace", filepath.Join(dir, "absent"))
	if missing.Passed {
		t.Fatal("missing directory must fail")
	}
}

func TestCheckRepository(t *testing.T) {
	repo := t.TempDir()
	result := preflight.CheckRepository("Repo", repo)
	if result.Passed {
		t.Fatal("directory without git metadata must fail")
	}

	if err := os.MkdirAll(filepath.Join(repo, ".git"), 0o755); err != nil {
		t.Fatalf("mkdir .git: %v", err)
	}
	result = preflight.CheckRepository("Repo", repo)
	if !result.Passed {
		t.Fatalf("git work tree should pass: %+v", result)
	}
}

func TestCheckManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "requirements.yml")
	if result := preflight.CheckManifest(path); result.Passed {
		t.Fatal("missing manifest must fail")
	}
	if err := os.WriteFile(path, []byte("numpy:\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if result := preflight.CheckManifest(path); !result.Passed {
		t.Fatalf("existing manifest should pass: %+v", result)
	}
}

func TestRunAllReportsFailures(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Project.Name = "fulcrum"
	cfg.Project.RepoDir = filepath.Join(base, "repo")
	cfg.Paths.WorkspaceDir = filepath.Join(base, "workspace")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	// Nothing provisioned yet: workspace and repo checks must fail.
	results := preflight.RunAll(context.Background(), &cfg)
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	failed := preflight.Failed(results)
	if len(failed) == 0 {
		t.Fatal("expected failures on an empty host")
	}
}

func TestFailedEmptyForPassingResults(t *testing.T) {
	results := []preflight.Result{{Name: "A", Passed: true}, {Name: "B", Passed: true}}
	if failed := preflight.Failed(results); len(failed) != 0 {
		t.Fatalf("Failed = %v, want none", failed)
	}
}
