package git

import (
	"context"
	"os/exec"
	"strings"
	"testing"
)

func TestDescribeTrimsOutput(t *testing.T) {
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", "echo 'v0.5-14-gabc1234'")
	}
	defer func() { commandContext = original }()

	cli := NewCLI()
	out, err := cli.Describe(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if out != "v0.5-14-gabc1234" {
		t.Fatalf("describe = %q", out)
	}
}

func TestDescribeMapsMissingTagsToErrNoTags(t *testing.T) {
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c",
			"echo 'fatal: No names found, cannot describe anything.' >&2; exit 128")
	}
	defer func() { commandContext = original }()

	cli := NewCLI()
	_, err := cli.Describe(context.Background(), t.TempDir())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), ErrNoTags.Error()) {
		t.Fatalf("expected ErrNoTags classification, got %v", err)
	}
}

func TestIsShallow(t *testing.T) {
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", "echo true")
	}
	defer func() { commandContext = original }()

	cli := NewCLI()
	shallow, err := cli.IsShallow(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("IsShallow: %v", err)
	}
	if !shallow {
		t.Fatal("expected shallow=true")
	}
}

func TestPublishDocsValidation(t *testing.T) {
	cli := NewCLI()
	if err := cli.PublishDocs(context.Background(), PublishRequest{Remote: "r", Branch: "b"}); err == nil {
		t.Fatal("expected error for missing site dir")
	}
	if err := cli.PublishDocs(context.Background(), PublishRequest{SiteDir: "/site", Branch: "b"}); err == nil {
		t.Fatal("expected error for missing remote")
	}
}

func TestPublishDocsKeepsTokenOutOfArgv(t *testing.T) {
	var argvs [][]string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		argvs = append(argvs, append([]string{name}, args...))
		return exec.CommandContext(ctx, "true")
	}
	defer func() { commandContext = original }()

	const token = "hunter2-deploy-token"
	cli := NewCLI()
	err := cli.PublishDocs(context.Background(), PublishRequest{
		SiteDir: t.TempDir(),
		Remote:  "https://example.com/site.git",
		Branch:  "master",
		Token:   token,
	})
	if err != nil {
		t.Fatalf("PublishDocs: %v", err)
	}
	if len(argvs) == 0 {
		t.Fatal("expected git invocations")
	}
	for _, argv := range argvs {
		if strings.Contains(strings.Join(argv, " "), token) {
			t.Fatalf("token leaked into argv: %v", argv)
		}
	}
}
