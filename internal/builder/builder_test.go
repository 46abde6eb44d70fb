package builder_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"strata/internal/builder"
	"strata/internal/logging"
	"strata/internal/runstore"
	"strata/internal/services"
	"strata/internal/services/micromamba"
	"strata/internal/testsupport"
)

type fakeClient struct {
	calls []micromamba.RunRequest
	onRun func(req micromamba.RunRequest) (string, error)
}

func (f *fakeClient) CreateEnv(ctx context.Context, prefix, pythonVersion, channel string) error {
	return nil
}

func (f *fakeClient) Install(ctx context.Context, prefix, channel string, specs []string) error {
	return nil
}

func (f *fakeClient) Run(ctx context.Context, req micromamba.RunRequest) (string, error) {
	f.calls = append(f.calls, req)
	if f.onRun != nil {
		return f.onRun(req)
	}
	return "", nil
}

func provisionedRun(t *testing.T, store *runstore.Store, workspace string) *runstore.Run {
	t.Helper()
	run := testsupport.NewRun(t, store, "3.11")
	run.EnvName = "strata-py311"
	run.EnvPrefix = filepath.Join(workspace, "envs", "strata-py311")
	return run
}

func sdistWriter(t *testing.T, name string) func(micromamba.RunRequest) (string, error) {
	t.Helper()
	return func(req micromamba.RunRequest) (string, error) {
		if len(req.Argv) > 2 && req.Argv[2] == "build" {
			outdir := req.Argv[len(req.Argv)-1]
			testsupport.WriteFile(t, filepath.Join(outdir, name), 64)
		}
		return "", nil
	}
}

func TestExecuteBuildsAndInstallsArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	run := provisionedRun(t, store, cfg.Paths.WorkspaceDir)

	client := &fakeClient{}
	client.onRun = sdistWriter(t, "fulcrum-1.2.0.tar.gz")
	handler := builder.NewBuilderWithClient(cfg, store, logging.NewNop(), client)
	if err := handler.Prepare(context.Background(), run); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), run); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if filepath.Base(run.ArtifactPath) != "fulcrum-1.2.0.tar.gz" {
		t.Fatalf("unexpected artifact path %q", run.ArtifactPath)
	}
	if len(run.ArtifactDigest) != 64 {
		t.Fatalf("expected sha256 digest recorded, got %q", run.ArtifactDigest)
	}
	if len(client.calls) != 2 {
		t.Fatalf("expected build then install, got %d calls", len(client.calls))
	}
	install := client.calls[1]
	if !strings.Contains(strings.Join(install.Argv, " "), "pip install --no-deps") {
		t.Fatalf("unexpected install argv: %v", install.Argv)
	}
	if install.Argv[len(install.Argv)-1] != run.ArtifactPath {
		t.Fatalf("install did not target built artifact: %v", install.Argv)
	}
}

func TestExecuteSkipsInstallWhenBuildFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	run := provisionedRun(t, store, cfg.Paths.WorkspaceDir)

	client := &fakeClient{onRun: func(req micromamba.RunRequest) (string, error) {
		return "", errors.New("setup.py exploded")
	}}
	handler := builder.NewBuilderWithClient(cfg, store, logging.NewNop(), client)
	if err := handler.Prepare(context.Background(), run); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	err := handler.Execute(context.Background(), run)
	if !errors.Is(err, services.ErrPackaging) {
		t.Fatalf("expected packaging error, got %v", err)
	}
	if len(client.calls) != 1 {
		t.Fatalf("install must not run after a failed build, got %d calls", len(client.calls))
	}
	if run.ArtifactPath != "" {
		t.Fatalf("artifact path should stay empty, got %q", run.ArtifactPath)
	}
}

func TestExecuteRejectsEmptyDistribution(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	run := provisionedRun(t, store, cfg.Paths.WorkspaceDir)

	handler := builder.NewBuilderWithClient(cfg, store, logging.NewNop(), &fakeClient{})
	if err := handler.Prepare(context.Background(), run); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	err := handler.Execute(context.Background(), run)
	if !errors.Is(err, services.ErrPackaging) {
		t.Fatalf("expected packaging error for empty dist dir, got %v", err)
	}
}

func TestExecuteRejectsAmbiguousDistribution(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	run := provisionedRun(t, store, cfg.Paths.WorkspaceDir)

	client := &fakeClient{onRun: func(req micromamba.RunRequest) (string, error) {
		if len(req.Argv) > 2 && req.Argv[2] == "build" {
			outdir := req.Argv[len(req.Argv)-1]
			testsupport.WriteFile(t, filepath.Join(outdir, "fulcrum-1.2.0.tar.gz"), 64)
			testsupport.WriteFile(t, filepath.Join(outdir, "fulcrum-1.1.0.tar.gz"), 64)
		}
		return "", nil
	}}
	handler := builder.NewBuilderWithClient(cfg, store, logging.NewNop(), client)
	if err := handler.Prepare(context.Background(), run); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	err := handler.Execute(context.Background(), run)
	if !errors.Is(err, services.ErrPackaging) {
		t.Fatalf("expected packaging error for ambiguous dist dir, got %v", err)
	}
}

func TestPrepareRejectsUnprovisionedRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	run := testsupport.NewRun(t, store, "3.11")

	handler := builder.NewBuilderWithClient(cfg, store, logging.NewNop(), &fakeClient{})
	if err := handler.Prepare(context.Background(), run); !errors.Is(err, services.ErrPackaging) {
		t.Fatalf("expected packaging error, got %v", err)
	}
}
