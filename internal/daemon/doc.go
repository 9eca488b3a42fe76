// Package daemon coordinates the long-running lexcase process.
//
// It wires configuration, the case store and the analysis engine behind an
// HTTP API, holds a flock-based lock so a single daemon owns the data
// directory, and runs the cache and rate-limiter janitors alongside the
// server until shutdown.
//
// Keep request semantics in the engine: handlers here only decode, delegate
// and encode.
package daemon
