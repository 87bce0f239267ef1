package mcpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/apresai/hydrator/internal/api"
)

type authContextKey struct{}

// AuthResult describes the caller of an MCP request.
type AuthResult struct {
	Authenticated bool
	// KeyPrefix is the first 8 characters of the presented key, for logs.
	KeyPrefix string
}

// WithAuthResult stores the auth result in context.
func WithAuthResult(ctx context.Context, result AuthResult) context.Context {
	return context.WithValue(ctx, authContextKey{}, result)
}

// AuthFromContext retrieves the auth result from context.
func AuthFromContext(ctx context.Context) AuthResult {
	result, ok := ctx.Value(authContextKey{}).(AuthResult)
	if !ok {
		return AuthResult{Authenticated: false}
	}
	return result
}

// RequireAPIKey rejects requests whose bearer token does not match apiKey.
// An empty apiKey disables the check.
func RequireAPIKey(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !api.Authorized(header, apiKey) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "invalid or missing API key", http.StatusUnauthorized)
			return
		}

		prefix := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if len(prefix) > 8 {
			prefix = prefix[:8]
		}
		ctx := WithAuthResult(r.Context(), AuthResult{Authenticated: true, KeyPrefix: prefix})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
