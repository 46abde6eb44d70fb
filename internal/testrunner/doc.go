// Package testrunner drives the test suite and the documentation build for a
// run. Coverage is scoped to the package's own source and written as a
// per-run report artifact; the docs build only starts after the suite passes.
package testrunner
