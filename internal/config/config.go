package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Project identifies the package under test and its repository layout.
type Project struct {
	// Name is the importable package name, used for the version check and
	// coverage scoping.
	Name string `toml:"name"`
	// RepoDir is the working tree of the package under test.
	RepoDir string `toml:"repo_dir"`
	// SourceDir is the package source subtree coverage is attributed to.
	// Defaults to Name when empty.
	SourceDir string `toml:"source_dir"`
	// FetchDepth is the amount of history fetched before a run. It must be
	// deep enough to reach the most recent version tag or the verifier
	// reports a shallow-history failure.
	FetchDepth int `toml:"fetch_depth"`
}

// Environment describes the isolated interpreter environments the pipeline
// provisions, one per matrix entry.
type Environment struct {
	// ManagerBinary is the environment manager executable (micromamba-style CLI).
	ManagerBinary string `toml:"manager_binary"`
	// NamePrefix seeds generated environment names (prefix + python version).
	NamePrefix string `toml:"name_prefix"`
	// PythonVersions is the interpreter matrix; each entry gets its own
	// independent pipeline run.
	PythonVersions []string `toml:"python_versions"`
	// Channel is the package channel environments resolve against.
	Channel string `toml:"channel"`
	// Manifests, in install order: runtime, test-runtime, test-only. Later
	// manifests may assume the earlier ones are already satisfied.
	RuntimeManifest     string `toml:"runtime_manifest"`
	TestRuntimeManifest string `toml:"test_runtime_manifest"`
	TestOnlyManifest    string `toml:"test_only_manifest"`
}

// Paths contains directory configuration.
type Paths struct {
	// WorkspaceDir holds provisioned environments, built artifacts, the run
	// database, and the run lock.
	WorkspaceDir string `toml:"workspace_dir"`
	LogDir       string `toml:"log_dir"`
}

// Tests configures the test and documentation stage.
type Tests struct {
	// DoctestModules runs embedded documentation-example tests alongside the suite.
	DoctestModules bool `toml:"doctest_modules"`
	// ExtraPytestArgs are appended to the test invocation.
	ExtraPytestArgs []string `toml:"extra_pytest_args"`
	// DocsSourceDir and DocsBuildDir define the documentation build. An empty
	// DocsSourceDir disables the docs step.
	DocsSourceDir string `toml:"docs_source_dir"`
	DocsBuildDir  string `toml:"docs_build_dir"`
	// StyleTargets are the directories the failure-branch style check scans.
	StyleTargets []string `toml:"style_targets"`
}

// Publish configures the success branch of the outcome router. Both steps are
// best-effort; leaving an endpoint or remote empty disables that step.
type Publish struct {
	// CoverageEndpoint receives the coverage report upload.
	CoverageEndpoint string `toml:"coverage_endpoint"`
	// SiteRemote is the documentation website repository.
	SiteRemote string `toml:"site_remote"`
	SiteBranch string `toml:"site_branch"`
	// CredentialFile is an age-encrypted token used only by the site publish
	// step. It is never read on the failure branch.
	CredentialFile string `toml:"credential_file"`
	// IdentityFile holds the age identity that decrypts CredentialFile.
	IdentityFile string `toml:"identity_file"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for strata.
//
// Configuration sections by subsystem:
//   - Project: the package under test and its repository
//   - Environment: interpreter matrix and dependency manifests
//   - Paths: workspace and log directories
//   - Tests: test suite, doctest, documentation, and style settings
//   - Publish: coverage upload and site deploy targets
//   - Logging: log format and level
type Config struct {
	Project     Project     `toml:"project"`
	Environment Environment `toml:"environment"`
	Paths       Paths       `toml:"paths"`
	Tests       Tests       `toml:"tests"`
	Publish     Publish     `toml:"publish"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/strata/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("strata.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the workspace and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkspaceDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Manifests returns the dependency manifests in install order, omitting
// unset entries.
func (c *Config) Manifests() []string {
	manifests := make([]string, 0, 3)
	for _, m := range []string{
		c.Environment.RuntimeManifest,
		c.Environment.TestRuntimeManifest,
		c.Environment.TestOnlyManifest,
	} {
		if strings.TrimSpace(m) != "" {
			manifests = append(manifests, m)
		}
	}
	return manifests
}

// EnvName derives the environment name for a matrix entry.
func (c *Config) EnvName(pythonVersion string) string {
	sanitized := strings.ReplaceAll(pythonVersion, ".", "")
	return fmt.Sprintf("%s-py%s", c.Environment.NamePrefix, sanitized)
}

// SourceDir returns the coverage scope, defaulting to the package name.
func (c *Config) SourceDir() string {
	if strings.TrimSpace(c.Project.SourceDir) != "" {
		return c.Project.SourceDir
	}
	return c.Project.Name
}

// GitBinary returns the git executable name.
func (c *Config) GitBinary() string {
	return "git"
}

// StyleBinary returns the style-check executable name used on the failure branch.
func (c *Config) StyleBinary() string {
	return "flake8"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
