package micromamba

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

var commandContext = exec.CommandContext

// Client defines environment-manager behaviour the pipeline needs.
type Client interface {
	CreateEnv(ctx context.Context, prefix, pythonVersion, channel string) error
	Install(ctx context.Context, prefix, channel string, specs []string) error
	Run(ctx context.Context, req RunRequest) (string, error)
}

// RunRequest describes a command executed inside a provisioned environment.
type RunRequest struct {
	Prefix string
	// Dir is the working directory; empty means the current directory.
	Dir string
	// Env holds extra KEY=VALUE entries appended to the inherited environment.
	Env  []string
	Argv []string
}

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

// CLI wraps a micromamba-compatible environment manager.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "micromamba"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// CreateEnv creates an isolated environment at prefix with the pinned
// interpreter version.
func (c *CLI) CreateEnv(ctx context.Context, prefix, pythonVersion, channel string) error {
	if prefix == "" {
		return errors.New("environment prefix required")
	}
	if pythonVersion == "" {
		return errors.New("python version required")
	}
	args := []string{"create", "--yes", "--prefix", prefix}
	if channel != "" {
		args = append(args, "--channel", channel)
	}
	args = append(args, "python="+pythonVersion)
	_, err := c.execute(ctx, "", nil, args)
	return err
}

// Install resolves and installs the given match specs into the environment.
func (c *CLI) Install(ctx context.Context, prefix, channel string, specs []string) error {
	if prefix == "" {
		return errors.New("environment prefix required")
	}
	if len(specs) == 0 {
		return nil
	}
	args := []string{"install", "--yes", "--prefix", prefix}
	if channel != "" {
		args = append(args, "--channel", channel)
	}
	args = append(args, specs...)
	_, err := c.execute(ctx, "", nil, args)
	return err
}

// Run executes a command inside the environment and returns its combined
// output.
func (c *CLI) Run(ctx context.Context, req RunRequest) (string, error) {
	if req.Prefix == "" {
		return "", errors.New("environment prefix required")
	}
	if len(req.Argv) == 0 {
		return "", errors.New("command required")
	}
	args := append([]string{"run", "--prefix", req.Prefix}, req.Argv...)
	return c.execute(ctx, req.Dir, req.Env, args)
}

func (c *CLI) execute(ctx context.Context, dir string, extraEnv []string, args []string) (string, error) {
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
		return output.String(), fmt.Errorf("%s %s: %w: %s",
			c.binary, args[0], err, tail(output.String(), 12))
	}
	return output.String(), nil
}

// tail returns the last n lines of output for error context.
func tail(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
