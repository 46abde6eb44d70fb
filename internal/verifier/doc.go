// Package verifier compares the version reported by the installed package
// with the repository's tag history, distinguishing a genuinely
// mis-versioned artifact from a clone too shallow to see the latest tag.
package verifier
