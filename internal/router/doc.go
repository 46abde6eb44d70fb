// Package router dispatches a finished run to its outcome branch. A
// successful run uploads coverage and publishes the documentation site; a
// failed run gets a style diagnostic. The branches are exhaustive and
// mutually exclusive, the publish credential exists only on the success
// branch, and nothing here changes the run's aggregate status.
package router
