package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeProject(); err != nil {
		return err
	}
	c.normalizeEnvironment()
	if err := c.normalizePublish(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		c.Paths.WorkspaceDir = defaultWorkspaceDir
	}
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return fmt.Errorf("paths.workspace_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeProject() error {
	c.Project.Name = strings.TrimSpace(c.Project.Name)
	if strings.TrimSpace(c.Project.RepoDir) == "" {
		c.Project.RepoDir = "."
	}
	var err error
	if c.Project.RepoDir, err = expandPath(c.Project.RepoDir); err != nil {
		return fmt.Errorf("project.repo_dir: %w", err)
	}
	if c.Project.FetchDepth <= 0 {
		c.Project.FetchDepth = defaultFetchDepth
	}
	return nil
}

func (c *Config) normalizeEnvironment() {
	c.Environment.ManagerBinary = strings.TrimSpace(c.Environment.ManagerBinary)
	if c.Environment.ManagerBinary == "" {
		c.Environment.ManagerBinary = defaultManagerBinary
	}
	c.Environment.NamePrefix = strings.TrimSpace(c.Environment.NamePrefix)
	if c.Environment.NamePrefix == "" {
		c.Environment.NamePrefix = defaultNamePrefix
	}
	if c.Environment.Channel == "" {
		c.Environment.Channel = defaultChannel
	}
	versions := make([]string, 0, len(c.Environment.PythonVersions))
	for _, v := range c.Environment.PythonVersions {
		if v = strings.TrimSpace(v); v != "" {
			versions = append(versions, v)
		}
	}
	c.Environment.PythonVersions = versions
}

func (c *Config) normalizePublish() error {
	c.Publish.CoverageEndpoint = strings.TrimSpace(c.Publish.CoverageEndpoint)
	c.Publish.SiteRemote = strings.TrimSpace(c.Publish.SiteRemote)
	if strings.TrimSpace(c.Publish.SiteBranch) == "" {
		c.Publish.SiteBranch = defaultSiteBranch
	}
	if c.Publish.CredentialFile == "" {
		if value, ok := os.LookupEnv("STRATA_CREDENTIAL_FILE"); ok {
			c.Publish.CredentialFile = value
		}
	}
	if c.Publish.IdentityFile == "" {
		if value, ok := os.LookupEnv("STRATA_IDENTITY_FILE"); ok {
			c.Publish.IdentityFile = value
		}
	}
	var err error
	if c.Publish.CredentialFile != "" {
		if c.Publish.CredentialFile, err = expandPath(c.Publish.CredentialFile); err != nil {
			return fmt.Errorf("publish.credential_file: %w", err)
		}
	}
	if c.Publish.IdentityFile != "" {
		if c.Publish.IdentityFile, err = expandPath(c.Publish.IdentityFile); err != nil {
			return fmt.Errorf("publish.identity_file: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
