package app

import (
	"crypto/subtle"
	"net/http"
)

const apiKeyHeader = "X-API-Key"

// callerIdentity is the key used for rate-limit bookkeeping: the presented
// API key when there is one, else the remote address.
func callerIdentity(r *http.Request) string {
	if k := presentedKey(r); k != "" {
		return k
	}
	return r.RemoteAddr
}

// presentedKey extracts the credential from the header or, for upgrade
// requests from browsers that cannot set headers, the api_key query
// parameter.
func presentedKey(r *http.Request) string {
	if k := r.Header.Get(apiKeyHeader); k != "" {
		return k
	}
	return r.URL.Query().Get("api_key")
}

// RequireAPIKey rejects requests whose credential does not match key. An
// empty key disables authentication.
func RequireAPIKey(key string, next http.Handler) http.Handler {
	if key == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := presentedKey(r)
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
