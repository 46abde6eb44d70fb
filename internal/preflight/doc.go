// Package preflight validates the host before a pipeline run starts:
// workspace access and free space, the package repository's git metadata,
// dependency manifests, and required external binaries.
package preflight
