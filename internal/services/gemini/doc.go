// Package gemini provides a thin Google Gemini client for stage analysis.
//
// The client wraps google.golang.org/genai, keeps one SDK client per API key,
// and tags every failure with a services marker so the orchestrator can pick a
// retry strategy without parsing SDK types:
//
//   - 429 and quota exhaustion: services.ErrRateLimited
//   - 401/403 and invalid API keys: services.ErrAuth
//   - 5xx: services.ErrUpstream
//   - 408/504 and deadline expiry: services.ErrTimeout
//   - network failures and empty candidates: services.ErrTransient
//
// The original SDK message is preserved in the wrapped error text. The client
// itself never retries; retry policy belongs to the caller.
package gemini
