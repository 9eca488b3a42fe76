// Package engine implements single-stage analysis requests: input
// sanitising and validation, per-key rate limiting, the response cache,
// prompt assembly and the Gemini call.
//
// Engine satisfies analysis.Analyzer, so the orchestrator can run against it
// in-process while the daemon exposes the same object over HTTP. Failures are
// returned as *api.StatusError values carrying the HTTP status and error code
// the analyze endpoint replies with.
package engine
