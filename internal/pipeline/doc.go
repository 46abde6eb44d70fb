// Package pipeline sequences the required stages of a run, short-circuiting
// on the first required failure, and hands every terminal run to the outcome
// router. One workspace lock serializes pipeline invocations.
package pipeline
