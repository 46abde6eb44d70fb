package config

const (
	defaultWorkspaceDir        = "~/.local/share/strata/workspace"
	defaultLogDir              = "~/.local/share/strata/logs"
	defaultManagerBinary       = "micromamba"
	defaultNamePrefix          = "strata"
	defaultChannel             = "conda-forge"
	defaultRuntimeManifest     = "requirements.yml"
	defaultTestRuntimeManifest = "requirements-test-run.yml"
	defaultTestOnlyManifest    = "requirements-test.yml"
	defaultFetchDepth          = 50
	defaultDocsBuildDir        = "doc/_build/html"
	defaultSiteBranch          = "master"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Project: Project{
			RepoDir:    ".",
			FetchDepth: defaultFetchDepth,
		},
		Environment: Environment{
			ManagerBinary:       defaultManagerBinary,
			NamePrefix:          defaultNamePrefix,
			PythonVersions:      []string{"3.11"},
			Channel:             defaultChannel,
			RuntimeManifest:     defaultRuntimeManifest,
			TestRuntimeManifest: defaultTestRuntimeManifest,
			TestOnlyManifest:    defaultTestOnlyManifest,
		},
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
			LogDir:       defaultLogDir,
		},
		Tests: Tests{
			DoctestModules: true,
			DocsSourceDir:  "doc",
			DocsBuildDir:   defaultDocsBuildDir,
		},
		Publish: Publish{
			SiteBranch: defaultSiteBranch,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
