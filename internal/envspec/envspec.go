package envspec

import (
	"path/filepath"
	"strings"
)

// Spec describes the environment one pipeline run provisions: a pinned
// interpreter version plus the ordered dependency manifests layered on top.
type Spec struct {
	Name          string
	PythonVersion string
	Channel       string
	ManifestPaths []string
}

// Handle identifies a provisioned environment. Stages receive the handle
// explicitly; nothing in the pipeline relies on an "activated" ambient
// environment.
type Handle struct {
	Name          string
	Prefix        string
	PythonVersion string
}

// Interpreter returns the path of the environment's python executable.
func (h Handle) Interpreter() string {
	return filepath.Join(h.Prefix, "bin", "python")
}

// Valid reports whether the handle points at a provisioned environment.
func (h Handle) Valid() bool {
	return strings.TrimSpace(h.Prefix) != "" && strings.TrimSpace(h.Name) != ""
}
