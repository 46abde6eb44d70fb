package builder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"strata/internal/config"
	"strata/internal/envspec"
	"strata/internal/logging"
	"strata/internal/runstore"
	"strata/internal/services"
	"strata/internal/services/micromamba"
	"strata/internal/stage"
)

// Builder produces the source distribution for a run and installs it into the
// provisioned environment so later stages exercise the packaged artifact, not
// the working tree.
type Builder struct {
	cfg    *config.Config
	store  *runstore.Store
	logger *slog.Logger
	client micromamba.Client
}

// NewBuilder constructs the builder stage handler using default dependencies.
func NewBuilder(cfg *config.Config, store *runstore.Store, logger *slog.Logger) *Builder {
	client := micromamba.NewCLI(micromamba.WithBinary(cfg.Environment.ManagerBinary))
	return NewBuilderWithClient(cfg, store, logger, client)
}

// NewBuilderWithClient allows injecting the environment manager client (used in tests).
func NewBuilderWithClient(cfg *config.Config, store *runstore.Store, logger *slog.Logger, client micromamba.Client) *Builder {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "builder"))
	}
	return &Builder{cfg: cfg, store: store, logger: stageLogger, client: client}
}

// SetLogger updates the logger used by the handler.
func (b *Builder) SetLogger(logger *slog.Logger) {
	if logger != nil {
		b.logger = logger.With(logging.String("component", "builder"))
	}
}

// Prepare validates the environment handle recorded by provisioning and
// resets the distribution directory for the run.
func (b *Builder) Prepare(ctx context.Context, run *runstore.Run) error {
	logger := logging.WithContext(ctx, b.logger)
	handle := handleFor(run)
	if !handle.Valid() {
		return services.Wrap(services.ErrPackaging, "builder", "prepare", "run has no provisioned environment", nil)
	}
	distDir := b.distDir(run)
	if err := os.RemoveAll(distDir); err != nil {
		return services.Wrap(services.ErrPackaging, "builder", "prepare", "failed to reset distribution directory", err)
	}
	if err := os.MkdirAll(distDir, 0o755); err != nil {
		return services.Wrap(services.ErrPackaging, "builder", "prepare", "failed to create distribution directory", err)
	}
	logger.Info("distribution directory ready", logging.String("dist_dir", distDir))
	return nil
}

// Execute builds the sdist exactly once and installs it into the run
// environment. Anything other than a single archive in the distribution
// directory is a packaging failure.
func (b *Builder) Execute(ctx context.Context, run *runstore.Run) error {
	logger := logging.WithContext(ctx, b.logger)
	handle := handleFor(run)
	distDir := b.distDir(run)

	logger.Info("building source distribution", logging.String("repo_dir", b.cfg.Project.RepoDir))
	if _, err := b.client.Run(ctx, micromamba.RunRequest{
		Prefix: handle.Prefix,
		Dir:    b.cfg.Project.RepoDir,
		Argv:   []string{"python", "-m", "build", "--sdist", "--outdir", distDir},
	}); err != nil {
		return services.Wrap(services.ErrPackaging, "builder", "sdist", "source distribution build failed", err)
	}

	artifact, err := locateArtifact(distDir)
	if err != nil {
		return err
	}
	digest, err := digestArtifact(artifact)
	if err != nil {
		return services.Wrap(services.ErrPackaging, "builder", "digest", "failed to hash artifact", err)
	}
	run.ArtifactPath = artifact
	run.ArtifactDigest = digest

	logger.Info("installing artifact", logging.String("artifact", filepath.Base(artifact)))
	if _, err := b.client.Run(ctx, micromamba.RunRequest{
		Prefix: handle.Prefix,
		Dir:    b.cfg.Project.RepoDir,
		Argv:   []string{"python", "-m", "pip", "install", "--no-deps", artifact},
	}); err != nil {
		return services.Wrap(services.ErrPackaging, "builder", "install", "artifact install failed", err)
	}
	logger.Info("artifact installed", logging.String("artifact", filepath.Base(artifact)))
	return nil
}

// HealthCheck verifies the repository and workspace are available.
func (b *Builder) HealthCheck(ctx context.Context) stage.Health {
	const name = "builder"
	if b.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if b.client == nil {
		return stage.Unhealthy(name, "environment manager client unavailable")
	}
	if info, err := os.Stat(b.cfg.Project.RepoDir); err != nil || !info.IsDir() {
		return stage.Unhealthy(name, fmt.Sprintf("repository %s unavailable", b.cfg.Project.RepoDir))
	}
	return stage.Healthy(name)
}

func (b *Builder) distDir(run *runstore.Run) string {
	return filepath.Join(b.cfg.Paths.WorkspaceDir, "dist", run.ID)
}

// locateArtifact returns the single sdist archive in dir. Zero archives means
// the build silently produced nothing; more than one means a stale artifact
// survived and the install would be ambiguous.
func locateArtifact(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.tar.gz"))
	if err != nil {
		return "", services.Wrap(services.ErrPackaging, "builder", "locate", "failed to scan distribution directory", err)
	}
	switch len(matches) {
	case 0:
		return "", services.Wrap(services.ErrPackaging, "builder", "locate", "build produced no source distribution", nil)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, filepath.Base(m))
		}
		return "", services.Wrap(services.ErrPackaging, "builder", "locate",
			fmt.Sprintf("expected exactly one source distribution, found %d: %s", len(matches), strings.Join(names, ", ")), nil)
	}
}

func digestArtifact(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func handleFor(run *runstore.Run) envspec.Handle {
	return envspec.Handle{Name: run.EnvName, Prefix: run.EnvPrefix, PythonVersion: run.PythonVersion}
}
