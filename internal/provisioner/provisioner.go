package provisioner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"log/slog"

	"strata/internal/config"
	"strata/internal/envspec"
	"strata/internal/logging"
	"strata/internal/manifest"
	"strata/internal/runstore"
	"strata/internal/services"
	"strata/internal/services/micromamba"
	"strata/internal/stage"
)

// Provisioner creates the isolated interpreter environment a run executes in
// and installs the layered dependency manifests into it.
type Provisioner struct {
	cfg    *config.Config
	store  *runstore.Store
	logger *slog.Logger
	client micromamba.Client
}

// NewProvisioner constructs the provisioner stage handler using default dependencies.
func NewProvisioner(cfg *config.Config, store *runstore.Store, logger *slog.Logger) *Provisioner {
	client := micromamba.NewCLI(micromamba.WithBinary(cfg.Environment.ManagerBinary))
	return NewProvisionerWithClient(cfg, store, logger, client)
}

// NewProvisionerWithClient allows injecting the environment manager client (used in tests).
func NewProvisionerWithClient(cfg *config.Config, store *runstore.Store, logger *slog.Logger, client micromamba.Client) *Provisioner {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "provisioner"))
	}
	return &Provisioner{cfg: cfg, store: store, logger: stageLogger, client: client}
}

// SetLogger updates the logger used by the handler.
func (p *Provisioner) SetLogger(logger *slog.Logger) {
	if logger != nil {
		p.logger = logger.With(logging.String("component", "provisioner"))
	}
}

// Prepare resolves the environment spec for the run and records the handle so
// later stages can locate the interpreter before Execute finishes.
func (p *Provisioner) Prepare(ctx context.Context, run *runstore.Run) error {
	logger := logging.WithContext(ctx, p.logger)
	spec, err := p.specFor(run)
	if err != nil {
		return err
	}
	run.EnvName = spec.Name
	run.EnvPrefix = p.prefixFor(spec)
	logger.Info(
		"resolved environment spec",
		logging.String("env_name", spec.Name),
		logging.String("python_version", spec.PythonVersion),
		logging.Int("manifests", len(spec.ManifestPaths)),
	)
	return nil
}

// Execute provisions the environment from a clean slate: any half-built prefix
// from an earlier attempt is removed, the interpreter is pinned exactly, and
// the manifests install in their fixed layering order.
func (p *Provisioner) Execute(ctx context.Context, run *runstore.Run) error {
	logger := logging.WithContext(ctx, p.logger)
	spec, err := p.specFor(run)
	if err != nil {
		return err
	}
	prefix := p.prefixFor(spec)

	if err := os.RemoveAll(prefix); err != nil {
		return services.Wrap(services.ErrProvisioning, "provisioner", "clean", "failed to remove stale environment", err)
	}
	if err := os.MkdirAll(filepath.Dir(prefix), 0o755); err != nil {
		return services.Wrap(services.ErrProvisioning, "provisioner", "clean", "failed to create environments directory", err)
	}

	logger.Info("creating environment", logging.String("prefix", prefix), logging.String("python_version", spec.PythonVersion))
	if err := p.client.CreateEnv(ctx, prefix, spec.PythonVersion, spec.Channel); err != nil {
		return services.Wrap(services.ErrProvisioning, "provisioner", "create", fmt.Sprintf("failed to create environment %s", spec.Name), err)
	}

	manifests, err := p.loadManifests(spec)
	if err != nil {
		return err
	}
	for _, m := range manifests {
		specs := m.Specs()
		if len(specs) == 0 {
			continue
		}
		logger.Info("installing manifest", logging.String("manifest", m.Path), logging.Int("packages", len(specs)))
		if err := p.client.Install(ctx, prefix, spec.Channel, specs); err != nil {
			return services.Wrap(services.ErrProvisioning, "provisioner", "install", fmt.Sprintf("failed to install manifest %s", filepath.Base(m.Path)), err)
		}
	}

	handle := envspec.Handle{Name: spec.Name, Prefix: prefix, PythonVersion: spec.PythonVersion}
	if !handle.Valid() {
		return services.Wrap(services.ErrProvisioning, "provisioner", "handle", "environment handle incomplete after provisioning", nil)
	}
	run.EnvName = handle.Name
	run.EnvPrefix = handle.Prefix
	logger.Info("environment ready", logging.String("interpreter", handle.Interpreter()))
	return nil
}

// HealthCheck verifies the environment manager binary and manifests are reachable.
func (p *Provisioner) HealthCheck(ctx context.Context) stage.Health {
	const name = "provisioner"
	if p.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if p.client == nil {
		return stage.Unhealthy(name, "environment manager client unavailable")
	}
	if _, err := exec.LookPath(p.cfg.Environment.ManagerBinary); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("environment manager %q not found", p.cfg.Environment.ManagerBinary))
	}
	for _, path := range p.cfg.Manifests() {
		resolved := p.resolveManifest(path)
		if _, err := os.Stat(resolved); err != nil {
			return stage.Unhealthy(name, fmt.Sprintf("manifest %s unreadable", resolved))
		}
	}
	return stage.Healthy(name)
}

func (p *Provisioner) specFor(run *runstore.Run) (envspec.Spec, error) {
	version := strings.TrimSpace(run.PythonVersion)
	if version == "" {
		return envspec.Spec{}, services.Wrap(services.ErrProvisioning, "provisioner", "spec", "run is missing a python version", nil)
	}
	paths := make([]string, 0, 3)
	for _, path := range p.cfg.Manifests() {
		paths = append(paths, p.resolveManifest(path))
	}
	return envspec.Spec{
		Name:          p.cfg.EnvName(version),
		PythonVersion: version,
		Channel:       p.cfg.Environment.Channel,
		ManifestPaths: paths,
	}, nil
}

func (p *Provisioner) prefixFor(spec envspec.Spec) string {
	return filepath.Join(p.cfg.Paths.WorkspaceDir, "envs", spec.Name)
}

func (p *Provisioner) resolveManifest(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.cfg.Project.RepoDir, path)
}

func (p *Provisioner) loadManifests(spec envspec.Spec) ([]*manifest.Manifest, error) {
	manifests, err := manifest.LoadAll(spec.ManifestPaths)
	if err != nil {
		return nil, services.Wrap(services.ErrProvisioning, "provisioner", "manifests", "failed to load dependency manifests", err)
	}
	if err := manifest.CheckLayering(manifests); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "provisioner", "manifests", "manifest layering conflict", err)
	}
	return manifests, nil
}
