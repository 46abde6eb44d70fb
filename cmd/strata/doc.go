// Command strata runs a staged CI pipeline for a tagged Python package:
// provision an isolated environment, build and install the source
// distribution, verify its version against tag history, run the suite with
// coverage, then route the outcome to its success or failure branch.
package main
