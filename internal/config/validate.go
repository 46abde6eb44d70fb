package config

import (
	"fmt"
	"regexp"
	"strings"
)

var versionPattern = regexp.MustCompile(`^\d+(\.\d+)*$`)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProject(); err != nil {
		return err
	}
	if err := c.validateEnvironment(); err != nil {
		return err
	}
	if err := c.validateTests(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateProject() error {
	if c.Project.Name == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/strata/config.toml"
		}
		return fmt.Errorf("project.name is required. Edit %s (create with 'strata config init')", defaultPath)
	}
	if strings.ContainsAny(c.Project.Name, " /\\") {
		return fmt.Errorf("project.name %q must be an importable package name", c.Project.Name)
	}
	return nil
}

func (c *Config) validateEnvironment() error {
	if len(c.Environment.PythonVersions) == 0 {
		return fmt.Errorf("environment.python_versions must list at least one interpreter version")
	}
	seen := make(map[string]struct{}, len(c.Environment.PythonVersions))
	for _, v := range c.Environment.PythonVersions {
		if !versionPattern.MatchString(v) {
			return fmt.Errorf("environment.python_versions entry %q is not a valid version", v)
		}
		if _, dup := seen[v]; dup {
			return fmt.Errorf("environment.python_versions entry %q is duplicated", v)
		}
		seen[v] = struct{}{}
	}
	if strings.TrimSpace(c.Environment.RuntimeManifest) == "" {
		return fmt.Errorf("environment.runtime_manifest is required")
	}
	return nil
}

func (c *Config) validateTests() error {
	if strings.TrimSpace(c.Tests.DocsSourceDir) != "" && strings.TrimSpace(c.Tests.DocsBuildDir) == "" {
		return fmt.Errorf("tests.docs_build_dir is required when tests.docs_source_dir is set")
	}
	return nil
}

func (c *Config) validatePublish() error {
	if c.Publish.SiteRemote != "" {
		if c.Publish.CredentialFile == "" {
			return fmt.Errorf("publish.credential_file is required when publish.site_remote is set")
		}
		if c.Publish.IdentityFile == "" {
			return fmt.Errorf("publish.identity_file is required when publish.site_remote is set")
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
