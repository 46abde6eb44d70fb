// Package config loads, normalizes, and validates the strata configuration
// file (TOML). Loading resolves the config path, fills defaults, expands
// user paths, and validates cross-field constraints so the rest of the
// system can treat the returned Config as trusted input.
package config
