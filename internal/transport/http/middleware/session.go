package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/pocketbroker-gate/internal/domain"
)

type contextKey string

const ClaimsKey contextKey = "claims"

// SessionReader resolves a session token to its claims.
type SessionReader interface {
	Current(token string) (*domain.SessionClaims, bool)
}

// Session returns middleware that reads the session token from cookieName or a
// Bearer header and, when valid, injects its claims into the context. The
// Bearer token is tried when the cookie is absent or does not verify. Requests
// without a valid session pass through unchanged.
func Session(reader SessionReader, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, token := range sessionTokens(r, cookieName) {
				if claims, ok := reader.Current(token); ok {
					r = r.WithContext(WithClaims(r.Context(), claims))
					break
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// sessionTokens returns the candidate tokens in order: cookie, then Bearer.
func sessionTokens(r *http.Request, cookieName string) []string {
	var tokens []string
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		tokens = append(tokens, c.Value)
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if t := strings.TrimPrefix(h, "Bearer "); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// RequireSession rejects requests that carry no session claims.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFromContext(r.Context()); !ok {
			writeJSONError(w, http.StatusUnauthorized, "missing or invalid session")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithClaims returns ctx carrying claims.
func WithClaims(ctx context.Context, claims *domain.SessionClaims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// ClaimsFromContext extracts session claims from the request context.
func ClaimsFromContext(ctx context.Context) (*domain.SessionClaims, bool) {
	c, ok := ctx.Value(ClaimsKey).(*domain.SessionClaims)
	return c, ok && c != nil
}

// SubjectFromContext returns the subject of the session in ctx.
func SubjectFromContext(ctx context.Context) (string, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok || c.SubjectID == "" {
		return "", false
	}
	return c.SubjectID, true
}

// RedirectWithoutSession sends callers that carry no session to loginPath.
func RedirectWithoutSession(loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := ClaimsFromContext(r.Context()); !ok {
				http.Redirect(w, r, loginPath, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
