// Package provisioner builds the isolated interpreter environment a pipeline
// run executes in. Environments are created from a clean slate each run, with
// the interpreter pinned exactly and the layered dependency manifests
// installed in fixed order so re-provisioning is idempotent.
package provisioner
