// Package api defines the wire-format types for the lexcase HTTP API, the
// error codes shared by the analyze endpoint and its clients, and an HTTP
// client that runs stage analyses against a remote daemon.
//
// # Key Types
//
// AnalyzeRequest/AnalyzeResponse: the POST /api/analyze payloads. Field
// names are camelCase for JavaScript consumers.
//
// ErrorResponse: {code, message, error, details} body of every non-2xx reply.
//
// StatusError: the Go form of an error response. It unwraps to the matching
// services marker (ErrValidation, ErrRateLimited, ErrAuth, ...) so callers
// classify remote failures exactly like local ones.
//
// CaseSummary/CaseDetail/StageView: read-only case views served by the daemon.
//
// # Converters
//
// FromCase and FromStage map store records to their API views.
//
// # Messages
//
// Message maps an error code to the Arabic sentence shown to users.
package api
