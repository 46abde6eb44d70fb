// Package micromamba wraps the environment-manager CLI used to provision
// isolated interpreter environments and run commands inside them. All stage
// commands that need the environment go through Run so the prefix is always
// explicit.
package micromamba
