// Package stage defines the legal analysis stage catalog.
//
// A Catalog is the ordered list of stage definitions the orchestrator walks;
// a stage's position is its index. The default twelve-stage catalog is
// embedded as YAML and can be replaced by a user file with the same shape.
//
// The package also owns the index rules shared by the orchestrators: which
// stages are critical, which earlier stages a stage depends on, and which
// later stages depend on it.
package stage
