// Package manifest parses the layered dependency manifests the provisioner
// installs: runtime, test-runtime, and test-only, each a flat YAML mapping of
// package name to version constraint. Install order matters; CheckLayering
// rejects manifest sets whose constraints contradict across layers.
package manifest
