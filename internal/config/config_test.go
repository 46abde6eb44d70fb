package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"strata/internal/config"
)

func TestDefaultValidatesWithProjectName(t *testing.T) {
	cfg := config.Default()
	cfg.Project.Name = "fulcrum"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config with project name should validate: %v", err)
	}
}

func TestValidateRequiresProjectName(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for missing project name")
	}
}

func TestLoadParsesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[project]
name = "fulcrum"
fetch_depth = 100

[environment]
python_versions = ["3.10", "3.11"]

[paths]
workspace_dir = "` + filepath.Join(dir, "workspace") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be reported as existing")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Project.FetchDepth != 100 {
		t.Errorf("fetch depth = %d, want 100", cfg.Project.FetchDepth)
	}
	if len(cfg.Environment.PythonVersions) != 2 {
		t.Errorf("python versions = %v, want two entries", cfg.Environment.PythonVersions)
	}
	if cfg.Environment.ManagerBinary != "micromamba" {
		t.Errorf("manager binary default missing, got %q", cfg.Environment.ManagerBinary)
	}
}

func TestLoadRejectsBadVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[project]
name = "fulcrum"

[environment]
python_versions = ["notaversion"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for malformed interpreter version")
	}
}

func TestValidateRejectsSiteRemoteWithoutCredential(t *testing.T) {
	cfg := config.Default()
	cfg.Project.Name = "fulcrum"
	cfg.Publish.SiteRemote = "https://example.com/site.git"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when site remote lacks credential file")
	}
}

func TestManifestsOrdered(t *testing.T) {
	cfg := config.Default()
	manifests := cfg.Manifests()
	if len(manifests) != 3 {
		t.Fatalf("expected three manifests, got %v", manifests)
	}
	if manifests[0] != cfg.Environment.RuntimeManifest {
		t.Errorf("runtime manifest must install first, got %q", manifests[0])
	}
	if manifests[2] != cfg.Environment.TestOnlyManifest {
		t.Errorf("test-only manifest must install last, got %q", manifests[2])
	}

	cfg.Environment.TestRuntimeManifest = ""
	manifests = cfg.Manifests()
	if len(manifests) != 2 {
		t.Fatalf("unset manifest should be omitted, got %v", manifests)
	}
}

func TestEnvName(t *testing.T) {
	cfg := config.Default()
	if got := cfg.EnvName("3.11"); got != "strata-py311" {
		t.Fatalf("EnvName = %q, want strata-py311", got)
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkspaceDir = filepath.Join(dir, "workspace")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, d := range []string{cfg.Paths.WorkspaceDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(d); err != nil || !info.IsDir() {
			t.Errorf("expected directory %q to exist", d)
		}
	}
}

func TestCreateSampleRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(content), "[project]") {
		t.Fatal("sample config missing project section")
	}
	if err := config.CreateSample(path); err == nil {
		t.Fatal("expected error when sample already exists")
	}
}
