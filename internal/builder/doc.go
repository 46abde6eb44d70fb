// Package builder turns the repository working tree into an installable
// source distribution and installs that artifact into the run environment.
// Every later stage exercises the installed package rather than the tree.
package builder
