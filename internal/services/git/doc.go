// Package git wraps the git command line for the two repository concerns the
// pipeline has: reading tag history for version verification (including
// shallow-clone detection) and force-pushing the built documentation site on
// the success branch.
package git
