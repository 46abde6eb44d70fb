package verifier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"log/slog"

	"strata/internal/config"
	"strata/internal/envspec"
	"strata/internal/logging"
	"strata/internal/runstore"
	"strata/internal/services"
	"strata/internal/services/git"
	"strata/internal/services/micromamba"
	"strata/internal/stage"
)

// GitClient is the slice of the git client the verifier depends on.
type GitClient interface {
	IsShallow(ctx context.Context, repoDir string) (bool, error)
	LatestTag(ctx context.Context, repoDir string) (string, error)
}

// Verifier checks that the installed package reports a version consistent
// with the repository's tag history.
type Verifier struct {
	cfg    *config.Config
	store  *runstore.Store
	logger *slog.Logger
	client micromamba.Client
	git    GitClient
}

// NewVerifier constructs the verifier stage handler using default dependencies.
func NewVerifier(cfg *config.Config, store *runstore.Store, logger *slog.Logger) *Verifier {
	client := micromamba.NewCLI(micromamba.WithBinary(cfg.Environment.ManagerBinary))
	gitClient := git.NewCLI(git.WithBinary(cfg.GitBinary()))
	return NewVerifierWithClients(cfg, store, logger, client, gitClient)
}

// NewVerifierWithClients allows injecting collaborators (used in tests).
func NewVerifierWithClients(cfg *config.Config, store *runstore.Store, logger *slog.Logger, client micromamba.Client, gitClient GitClient) *Verifier {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "verifier"))
	}
	return &Verifier{cfg: cfg, store: store, logger: stageLogger, client: client, git: gitClient}
}

// SetLogger updates the logger used by the handler.
func (v *Verifier) SetLogger(logger *slog.Logger) {
	if logger != nil {
		v.logger = logger.With(logging.String("component", "verifier"))
	}
}

// Prepare checks the run carries an installed artifact to verify.
func (v *Verifier) Prepare(ctx context.Context, run *runstore.Run) error {
	handle := envspec.Handle{Name: run.EnvName, Prefix: run.EnvPrefix, PythonVersion: run.PythonVersion}
	if !handle.Valid() {
		return services.Wrap(services.ErrVersionMismatch, "verifier", "prepare", "run has no provisioned environment", nil)
	}
	if strings.TrimSpace(run.ArtifactPath) == "" {
		return services.Wrap(services.ErrVersionMismatch, "verifier", "prepare", "run has no installed artifact", nil)
	}
	return nil
}

// Execute imports the installed package, reads its version attribute, and
// compares it against the latest reachable version tag. A shallow clone with
// no reachable tag is reported as a distinct shallow-history failure so the
// operator deepens the fetch instead of debugging packaging.
func (v *Verifier) Execute(ctx context.Context, run *runstore.Run) error {
	logger := logging.WithContext(ctx, v.logger)

	installed, err := v.installedVersion(ctx, run)
	if err != nil {
		return err
	}
	logger.Info("installed version read", logging.String("version", installed))

	tag, err := v.git.LatestTag(ctx, v.cfg.Project.RepoDir)
	if err != nil {
		if errors.Is(err, git.ErrNoTags) {
			return v.classifyMissingTag(ctx, err)
		}
		return services.Wrap(services.ErrExternalTool, "verifier", "tags", "failed to read repository tags", err)
	}
	expected := normalizeTag(tag)

	if !versionMatches(installed, expected) {
		return services.Wrap(services.ErrVersionMismatch, "verifier", "compare",
			fmt.Sprintf("installed version %s does not derive from tag %s", installed, tag), nil)
	}
	logger.Info("version verified", logging.String("version", installed), logging.String("tag", tag))
	return nil
}

// HealthCheck verifies the repository has tag history available to compare against.
func (v *Verifier) HealthCheck(ctx context.Context) stage.Health {
	const name = "verifier"
	if v.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if v.client == nil || v.git == nil {
		return stage.Unhealthy(name, "tool clients unavailable")
	}
	if _, err := os.Stat(v.cfg.Project.RepoDir); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("repository %s unavailable", v.cfg.Project.RepoDir))
	}
	return stage.Healthy(name)
}

func (v *Verifier) installedVersion(ctx context.Context, run *runstore.Run) (string, error) {
	// The interpreter runs outside the repository so the import resolves the
	// installed artifact, never the working tree.
	script := fmt.Sprintf("import %s; print(%s.__version__)", v.cfg.Project.Name, v.cfg.Project.Name)
	out, err := v.client.Run(ctx, micromamba.RunRequest{
		Prefix: run.EnvPrefix,
		Dir:    v.cfg.Paths.WorkspaceDir,
		Argv:   []string{"python", "-c", script},
	})
	if err != nil {
		return "", services.Wrap(services.ErrVersionMismatch, "verifier", "import",
			fmt.Sprintf("failed to import installed package %s", v.cfg.Project.Name), err)
	}
	version := strings.TrimSpace(out)
	if version == "" {
		return "", services.Wrap(services.ErrVersionMismatch, "verifier", "import", "installed package reports an empty version", nil)
	}
	return version, nil
}

func (v *Verifier) classifyMissingTag(ctx context.Context, cause error) error {
	shallow, err := v.git.IsShallow(ctx, v.cfg.Project.RepoDir)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "verifier", "tags", "failed to inspect clone depth", err)
	}
	if shallow {
		return services.Wrap(services.ErrShallowHistory, "verifier", "tags",
			fmt.Sprintf("no version tag within the fetched history (fetch depth %d)", v.cfg.Project.FetchDepth), cause)
	}
	return services.Wrap(services.ErrVersionMismatch, "verifier", "tags", "repository has no version tags", cause)
}

func normalizeTag(tag string) string {
	return strings.TrimPrefix(strings.TrimSpace(tag), "v")
}

// versionMatches accepts an exact tag match or a development version derived
// from the tag (local segment or post/dev suffix), which is what tag-driven
// version machinery emits between releases.
func versionMatches(installed, tag string) bool {
	if installed == tag {
		return true
	}
	for _, sep := range []string{"+", ".post", ".dev"} {
		if strings.HasPrefix(installed, tag+sep) {
			return true
		}
	}
	return false
}
