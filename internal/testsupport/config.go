package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"strata/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It creates a repository directory with the three dependency manifests and
// applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Project.Name = "fulcrum"
	cfgVal.Project.RepoDir = filepath.Join(base, "repo")
	cfgVal.Environment.PythonVersions = []string{"3.11"}
	cfgVal.Paths.WorkspaceDir = filepath.Join(base, "workspace")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Logging.Format = "json"

	for _, dir := range []string{cfgVal.Project.RepoDir, cfgVal.Paths.WorkspaceDir, cfgVal.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	writeManifest(t, filepath.Join(cfgVal.Project.RepoDir, cfgVal.Environment.RuntimeManifest), "numpy: \"=1.26\"\nscipy: \"\"\n")
	writeManifest(t, filepath.Join(cfgVal.Project.RepoDir, cfgVal.Environment.TestRuntimeManifest), "matplotlib: \"\"\n")
	writeManifest(t, filepath.Join(cfgVal.Project.RepoDir, cfgVal.Environment.TestOnlyManifest), "pytest: \"\"\ncoverage: \"\"\n")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

func writeManifest(t testing.TB, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest %s: %v", path, err)
	}
}

// WithPythonVersions overrides the test matrix on the test config.
func WithPythonVersions(versions ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Environment.PythonVersions = versions
	}
}

// WithProjectName sets the package name under test.
func WithProjectName(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Project.Name = name
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default external binaries
// are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"micromamba", "git", "flake8"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkspaceDir)
}
