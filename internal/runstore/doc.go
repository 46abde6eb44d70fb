// Package runstore persists pipeline runs and their stage results in SQLite.
//
// A Run is created per matrix entry at trigger time, mutated as stages append
// results, and finalized when the last required stage completes or any
// required stage fails. The database is run history, not shared state: runs
// never read each other's rows, so concurrent pipelines only contend on the
// workspace lock, not on this store.
//
// Schema changes bump the version in schema.go; the database is transient and
// rebuilt rather than migrated.
package runstore
