package daemon

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"lexcase/internal/api"
)

// authMiddleware returns a middleware that validates bearer tokens.
// If token is empty, no authentication is required and all requests pass through.
// Otherwise, requests must include "Authorization: Bearer <token>" header.
func authMiddleware(token string, next http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		presented, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{
				Code:    api.CodeUnauthorized,
				Message: api.Message(api.CodeUnauthorized, ""),
				Error:   "unauthorized",
			})
			return
		}
		next(w, r)
	}
}
