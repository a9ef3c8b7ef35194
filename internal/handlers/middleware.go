package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"modcheck/internal/httpx"
	"modcheck/internal/telemetry"
)

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := telemetry.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAuth guards mutating routes with a bearer token. An empty token
// leaves the routes open.
func requireAuth(token string) func(http.Handler) http.Handler {
	if token == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			got := strings.TrimPrefix(h, "Bearer ")
			if !strings.HasPrefix(h, "Bearer ") || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				httpx.Write(w, r, httpx.Unauthorized("token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func methodNotAllowed(allow string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Allow", allow)
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
