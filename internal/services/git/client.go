package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var commandContext = exec.CommandContext

// tokenEnvVar carries the publish token to git's askpass helper so the
// credential never appears in an argument list.
const tokenEnvVar = "STRATA_SITE_TOKEN"

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the git command line for repository metadata and site publishing.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "git"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// IsShallow reports whether the repository's history is a shallow clone.
func (c *CLI) IsShallow(ctx context.Context, repoDir string) (bool, error) {
	out, err := c.run(ctx, repoDir, nil, "rev-parse", "--is-shallow-repository")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "true", nil
}

// Describe returns `git describe --tags` output for the repository head.
// The error distinguishes "no tag reachable" so the verifier can classify
// shallow history separately from a mis-versioned package.
func (c *CLI) Describe(ctx context.Context, repoDir string) (string, error) {
	out, err := c.run(ctx, repoDir, nil, "describe", "--tags")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// LatestTag returns the most recent reachable version tag.
func (c *CLI) LatestTag(ctx context.Context, repoDir string) (string, error) {
	out, err := c.run(ctx, repoDir, nil, "describe", "--tags", "--abbrev=0")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// ErrNoTags indicates no version tag is reachable in the fetched history.
var ErrNoTags = errors.New("no version tag reachable")

// PublishRequest describes a documentation site push.
type PublishRequest struct {
	// SiteDir is the built documentation tree to publish.
	SiteDir string
	Remote  string
	Branch  string
	Message string
	// Token authenticates the push. It is delivered through an askpass
	// helper and an environment variable, never through argv.
	Token string
}

// PublishDocs commits the site directory as a fresh history and force-pushes
// it to the website repository.
func (c *CLI) PublishDocs(ctx context.Context, req PublishRequest) error {
	if req.SiteDir == "" {
		return errors.New("site directory required")
	}
	if req.Remote == "" {
		return errors.New("remote required")
	}
	if req.Branch == "" {
		return errors.New("branch required")
	}
	if req.Message == "" {
		req.Message = "Update website"
	}

	askpass, cleanup, err := writeAskpassHelper()
	if err != nil {
		return err
	}
	defer cleanup()

	env := []string{
		"GIT_ASKPASS=" + askpass,
		tokenEnvVar + "=" + req.Token,
		"GIT_TERMINAL_PROMPT=0",
	}

	steps := [][]string{
		{"init", "--quiet", "--initial-branch", req.Branch},
		{"config", "user.name", "strata"},
		{"config", "user.email", "strata@localhost"},
		{"add", "--all"},
		{"commit", "--quiet", "--message", req.Message},
		{"push", "--force", "--quiet", req.Remote, "HEAD:" + req.Branch},
	}
	for _, args := range steps {
		if _, err := c.run(ctx, req.SiteDir, env, args...); err != nil {
			return fmt.Errorf("publish %s: %w", args[0], err)
		}
	}
	return nil
}

func (c *CLI) run(ctx context.Context, dir string, extraEnv []string, args ...string) (string, error) {
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	if dir != "" {
		cmd.Dir = dir
	}
	if len(extraEnv) > 0 {
		cmd.Env = append(os.Environ(), extraEnv...)
	}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		text := strings.TrimSpace(output.String())
		if strings.Contains(text, "cannot describe") || strings.Contains(text, "No names found") {
			return "", fmt.Errorf("%w: %s", ErrNoTags, text)
		}
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, text)
	}
	return output.String(), nil
}

// writeAskpassHelper materializes a one-shot helper script that echoes the
// token from the environment.
func writeAskpassHelper() (string, func(), error) {
	dir, err := os.MkdirTemp("", "strata-askpass-")
	if err != nil {
		return "", nil, fmt.Errorf("create askpass dir: %w", err)
	}
	path := filepath.Join(dir, "askpass.sh")
	script := "#!/bin/sh\necho \"${" + tokenEnvVar + "}\"\n"
	if err := os.WriteFile(path, []byte(script), 0o700); err != nil {
		os.RemoveAll(dir)
		return "", nil, fmt.Errorf("write askpass helper: %w", err)
	}
	return path, func() { os.RemoveAll(dir) }, nil
}
