package provisioner_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"strata/internal/logging"
	"strata/internal/provisioner"
	"strata/internal/services"
	"strata/internal/services/micromamba"
	"strata/internal/testsupport"
)

type fakeClient struct {
	created    []string
	installs   [][]string
	createErr  error
	installErr error
}

func (f *fakeClient) CreateEnv(ctx context.Context, prefix, pythonVersion, channel string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, prefix+" python="+pythonVersion)
	return nil
}

func (f *fakeClient) Install(ctx context.Context, prefix, channel string, specs []string) error {
	if f.installErr != nil {
		return f.installErr
	}
	f.installs = append(f.installs, specs)
	return nil
}

func (f *fakeClient) Run(ctx context.Context, req micromamba.RunRequest) (string, error) {
	return "", nil
}

func TestPrepareResolvesHandle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	run := testsupport.NewRun(t, store, "3.11")

	handler := provisioner.NewProvisionerWithClient(cfg, store, logging.NewNop(), &fakeClient{})
	if err := handler.Prepare(context.Background(), run); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if run.EnvName != "strata-py311" {
		t.Fatalf("unexpected env name %q", run.EnvName)
	}
	want := filepath.Join(cfg.Paths.WorkspaceDir, "envs", "strata-py311")
	if run.EnvPrefix != want {
		t.Fatalf("env prefix = %q, want %q", run.EnvPrefix, want)
	}
}

func TestExecuteCreatesEnvAndInstallsManifestsInOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	run := testsupport.NewRun(t, store, "3.11")

	client := &fakeClient{}
	handler := provisioner.NewProvisionerWithClient(cfg, store, logging.NewNop(), client)
	if err := handler.Execute(context.Background(), run); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(client.created) != 1 || !strings.HasSuffix(client.created[0], "python=3.11") {
		t.Fatalf("unexpected create calls: %v", client.created)
	}
	if len(client.installs) != 3 {
		t.Fatalf("expected 3 manifest installs, got %d", len(client.installs))
	}
	// Runtime layer installs first, test-only layer last.
	if !contains(client.installs[0], "numpy=1.26") {
		t.Fatalf("first install missing runtime pin: %v", client.installs[0])
	}
	if !contains(client.installs[2], "pytest") {
		t.Fatalf("last install missing test-only package: %v", client.installs[2])
	}
	if run.EnvPrefix == "" || run.EnvName == "" {
		t.Fatal("expected env handle recorded on run")
	}
}

func TestExecuteIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	run := testsupport.NewRun(t, store, "3.11")

	client := &fakeClient{}
	handler := provisioner.NewProvisionerWithClient(cfg, store, logging.NewNop(), client)
	if err := handler.Execute(context.Background(), run); err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	firstPrefix := run.EnvPrefix
	if err := handler.Execute(context.Background(), run); err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if run.EnvPrefix != firstPrefix {
		t.Fatalf("prefix changed between runs: %q vs %q", firstPrefix, run.EnvPrefix)
	}
	if len(client.created) != 2 {
		t.Fatalf("expected a fresh create per execution, got %d", len(client.created))
	}
	if client.created[0] != client.created[1] {
		t.Fatalf("expected identical create invocations, got %v", client.created)
	}
}

func TestExecuteWrapsCreateFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	run := testsupport.NewRun(t, store, "3.11")

	client := &fakeClient{createErr: errors.New("solver conflict")}
	handler := provisioner.NewProvisionerWithClient(cfg, store, logging.NewNop(), client)
	err := handler.Execute(context.Background(), run)
	if !errors.Is(err, services.ErrProvisioning) {
		t.Fatalf("expected provisioning error, got %v", err)
	}
}

func TestPrepareRejectsMissingVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	run := testsupport.NewRun(t, store, "3.11")
	run.PythonVersion = ""

	handler := provisioner.NewProvisionerWithClient(cfg, store, logging.NewNop(), &fakeClient{})
	if err := handler.Prepare(context.Background(), run); !errors.Is(err, services.ErrProvisioning) {
		t.Fatalf("expected provisioning error, got %v", err)
	}
}

func TestHealthCheckReportsMissingManager(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Environment.ManagerBinary = "definitely-not-installed-anywhere"
	store := testsupport.MustOpenStore(t, cfg)

	handler := provisioner.NewProvisionerWithClient(cfg, store, logging.NewNop(), &fakeClient{})
	health := handler.HealthCheck(context.Background())
	if health.Ready {
		t.Fatal("expected unhealthy result for missing manager binary")
	}
}

func contains(specs []string, want string) bool {
	for _, spec := range specs {
		if spec == want {
			return true
		}
	}
	return false
}
