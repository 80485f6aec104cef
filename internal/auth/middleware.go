// Package auth implements the shared API-key check spec.md §6 requires on
// every endpoint but /healthz: the X-API-Key header must match the
// configured key. This replaces the teacher's OAuth2/OIDC cookie-session
// auth, which fits a multi-user web app, not a single-tenant ingestion/
// search service — only the http.Handler-wrapping middleware idiom carries
// over.
package auth

import "net/http"

// unauthorizedBody matches the {error_kind, message} shape spec.md §7
// mandates for every non-2xx response, spelled out literally here rather
// than imported from httpapi to keep this package free of a dependency on
// its caller.
const unauthorizedBody = `{"error_kind":"auth_error","message":"invalid or missing X-API-Key"}`

// RequireAPIKey wraps next, rejecting any request whose X-API-Key header
// does not equal apiKey with 401 Unauthorized.
func RequireAPIKey(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != apiKey {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(unauthorizedBody))
			return
		}
		next.ServeHTTP(w, r)
	})
}
