package preflight

import (
	"context"
	"path/filepath"

	"strata/internal/config"
	"strata/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// A run should not start while any check fails: partial environments from a
// crashed run are never reused, so every run provisions from a clean slate
// and needs the workspace healthy up front.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Workspace directory", cfg.Paths.WorkspaceDir))
	results = append(results, CheckDiskSpace("Workspace free space", cfg.Paths.WorkspaceDir, minWorkspaceBytes))
	results = append(results, CheckRepository("Package repository", cfg.Project.RepoDir))
	for _, m := range cfg.Manifests() {
		results = append(results, CheckManifest(filepath.Join(cfg.Project.RepoDir, m)))
	}
	results = append(results, CheckBinaries(ctx, cfg)...)

	return results
}

// CheckBinaries reports required external binaries as preflight results.
func CheckBinaries(_ context.Context, cfg *config.Config) []Result {
	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	results := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		result := Result{Name: status.Name, Passed: status.Available, Detail: status.Detail}
		if status.Optional && !status.Available {
			// Optional tools degrade a diagnostic, not the run.
			result.Passed = true
			result.Detail = status.Detail + " (optional)"
		}
		results = append(results, result)
	}
	return results
}

// Failed returns the names of checks that did not pass.
func Failed(results []Result) []string {
	var failed []string
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result.Name)
		}
	}
	return failed
}
