// Package coverage uploads per-run coverage reports to the configured
// reporting endpoint. Uploads run on the success branch only and are
// best-effort.
package coverage
