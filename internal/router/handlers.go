package router

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"log/slog"

	"strata/internal/config"
	"strata/internal/coverage"
	"strata/internal/logging"
	"strata/internal/runstore"
	"strata/internal/secrets"
	"strata/internal/services"
	"strata/internal/services/git"
	"strata/internal/services/micromamba"
	"strata/internal/stage"
)

// coverageUpload posts the run's coverage report to the reporting endpoint.
type coverageUpload struct {
	cfg      *config.Config
	uploader *coverage.Client
	logger   *slog.Logger
}

func newCoverageUpload(cfg *config.Config, uploader *coverage.Client, logger *slog.Logger) *coverageUpload {
	return &coverageUpload{cfg: cfg, uploader: uploader, logger: logger}
}

func (u *coverageUpload) SetLogger(logger *slog.Logger) { u.logger = logger }

func (u *coverageUpload) Prepare(ctx context.Context, run *runstore.Run) error {
	if u.uploader.Enabled() && strings.TrimSpace(run.CoveragePath) == "" {
		return services.Wrap(services.ErrPublish, "coverage_upload", "prepare", "run has no coverage report to upload", nil)
	}
	return nil
}

func (u *coverageUpload) Execute(ctx context.Context, run *runstore.Run) error {
	logger := logging.WithContext(ctx, u.logger)
	if !u.uploader.Enabled() {
		logger.Info("coverage upload disabled; no endpoint configured")
		return nil
	}
	report := coverage.Report{RunID: run.ID, PythonVersion: run.PythonVersion, Path: run.CoveragePath}
	if err := u.uploader.Upload(ctx, report); err != nil {
		return services.Wrap(services.ErrPublish, "coverage_upload", "upload", "coverage upload failed", err)
	}
	logger.Info("coverage report uploaded", logging.String("report", filepath.Base(run.CoveragePath)))
	return nil
}

func (u *coverageUpload) HealthCheck(ctx context.Context) stage.Health {
	const name = "coverage_upload"
	if u.uploader == nil {
		return stage.Unhealthy(name, "upload client unavailable")
	}
	return stage.Healthy(name)
}

// sitePublish pushes the built documentation to the website repository. The
// credential is decrypted here and nowhere else, so the failure branch never
// touches it.
type sitePublish struct {
	cfg    *config.Config
	gitc   Publisher
	logger *slog.Logger
}

func newSitePublish(cfg *config.Config, gitc Publisher, logger *slog.Logger) *sitePublish {
	return &sitePublish{cfg: cfg, gitc: gitc, logger: logger}
}

func (p *sitePublish) SetLogger(logger *slog.Logger) { p.logger = logger }

func (p *sitePublish) Prepare(ctx context.Context, run *runstore.Run) error {
	if !p.enabled() {
		return nil
	}
	if strings.TrimSpace(p.cfg.Tests.DocsSourceDir) == "" {
		return services.Wrap(services.ErrPublish, "site_publish", "prepare", "site remote configured but docs build is disabled", nil)
	}
	return nil
}

func (p *sitePublish) Execute(ctx context.Context, run *runstore.Run) error {
	logger := logging.WithContext(ctx, p.logger)
	if !p.enabled() {
		logger.Info("site publish disabled; no remote configured")
		return nil
	}
	credential, err := secrets.Load(p.cfg.Publish.IdentityFile, p.cfg.Publish.CredentialFile)
	if err != nil {
		return services.Wrap(services.ErrPublish, "site_publish", "credential", "failed to load publish credential", err)
	}
	siteDir := filepath.Join(p.cfg.Project.RepoDir, p.cfg.Tests.DocsBuildDir)
	req := git.PublishRequest{
		SiteDir: siteDir,
		Remote:  p.cfg.Publish.SiteRemote,
		Branch:  p.cfg.Publish.SiteBranch,
		Message: fmt.Sprintf("Publish docs for run %s (python %s)", run.ID, run.PythonVersion),
		Token:   credential.Reveal(),
	}
	if err := p.gitc.PublishDocs(ctx, req); err != nil {
		return services.Wrap(services.ErrPublish, "site_publish", "push", "site publish failed", err)
	}
	logger.Info("documentation site published", logging.String("branch", p.cfg.Publish.SiteBranch))
	return nil
}

func (p *sitePublish) HealthCheck(ctx context.Context) stage.Health {
	const name = "site_publish"
	if p.gitc == nil {
		return stage.Unhealthy(name, "git client unavailable")
	}
	return stage.Healthy(name)
}

func (p *sitePublish) enabled() bool {
	return strings.TrimSpace(p.cfg.Publish.SiteRemote) != ""
}

// styleCheck runs the style checker over the configured targets to enrich a
// failed run with diagnostics. It never consults the publish credential.
type styleCheck struct {
	cfg    *config.Config
	client micromamba.Client
	logger *slog.Logger
}

func newStyleCheck(cfg *config.Config, client micromamba.Client, logger *slog.Logger) *styleCheck {
	return &styleCheck{cfg: cfg, client: client, logger: logger}
}

func (s *styleCheck) SetLogger(logger *slog.Logger) { s.logger = logger }

func (s *styleCheck) Prepare(ctx context.Context, run *runstore.Run) error {
	if strings.TrimSpace(run.EnvPrefix) == "" {
		return services.Wrap(services.ErrDiagnostic, "style_check", "prepare", "no provisioned environment for style check", nil)
	}
	return nil
}

func (s *styleCheck) Execute(ctx context.Context, run *runstore.Run) error {
	logger := logging.WithContext(ctx, s.logger)
	targets := s.cfg.Tests.StyleTargets
	if len(targets) == 0 {
		targets = []string{s.cfg.SourceDir()}
	}
	argv := append([]string{s.cfg.StyleBinary()}, targets...)
	out, err := s.client.Run(ctx, micromamba.RunRequest{
		Prefix: run.EnvPrefix,
		Dir:    s.cfg.Project.RepoDir,
		Argv:   argv,
	})
	if err != nil {
		return services.Wrap(services.ErrDiagnostic, "style_check", "flake8", "style check reported problems", err)
	}
	if strings.TrimSpace(out) != "" {
		logger.Info("style check output", logging.String("output", strings.TrimSpace(out)))
	}
	logger.Info("style check clean", logging.String("targets", strings.Join(targets, ",")))
	return nil
}

func (s *styleCheck) HealthCheck(ctx context.Context) stage.Health {
	const name = "style_check"
	if s.client == nil {
		return stage.Unhealthy(name, "environment manager client unavailable")
	}
	return stage.Healthy(name)
}
