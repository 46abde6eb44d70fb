// Package envspec defines the environment specification a pipeline run
// provisions and the handle stages use to address the provisioned
// environment explicitly.
package envspec
