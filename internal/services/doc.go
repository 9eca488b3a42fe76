// Package services defines shared utilities consumed by the analysis
// orchestrator, the analyze engine and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp case IDs, stage names and indexes, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures keep their
//     class (rate limit, auth, transient, validation) across package
//     boundaries and can be matched with errors.Is.
package services
