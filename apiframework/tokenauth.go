package apiframework

import (
	"context"
	"net/http"
	"strings"
)

type tokenContextKey struct{}

// TokenMiddleware extracts the bearer token from the Authorization
// header and stores it on the request context.
func TokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		token := strings.TrimPrefix(authz, "Bearer ")
		if token != authz && token != "" {
			r = r.WithContext(context.WithValue(r.Context(), tokenContextKey{}, token))
		}
		next.ServeHTTP(w, r)
	})
}

// TokenFromContext returns the bearer token stored by TokenMiddleware.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey{}).(string)
	return token, ok
}

// EnforceToken rejects requests whose bearer token does not match the
// configured static token. The health endpoint stays open for probes.
func EnforceToken(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		presented, ok := TokenFromContext(r.Context())
		if !ok || presented != token {
			_ = Error(w, r, ErrUnauthorized, ExecuteOperation)
			return
		}
		next.ServeHTTP(w, r)
	})
}
