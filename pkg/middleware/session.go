package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/cloudmarket/backend/pkg/logger"
	"github.com/cloudmarket/backend/pkg/response"
	"github.com/cloudmarket/backend/pkg/session"
)

type sessionKey struct{}

// SessionQueryParam is the query parameter accepted in place of the cookie or
// Authorization header.
const SessionQueryParam = "session_token"

type SessionVerifier interface {
	Verify(token string) (session.Payload, bool)
}

// SessionTokens lists the non-empty session tokens carried by r, in order:
// the session cookie, a Bearer Authorization header, the session_token query
// parameter.
func SessionTokens(r *http.Request, cookieName string) []string {
	var tokens []string
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		tokens = append(tokens, c.Value)
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if t := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); t != "" {
			tokens = append(tokens, t)
		}
	}
	if q := r.URL.Query().Get(SessionQueryParam); q != "" {
		tokens = append(tokens, q)
	}
	return tokens
}

// verifyRequest returns the payload of the first token that verifies, so a
// stale cookie does not shadow a valid header or query token.
func verifyRequest(v SessionVerifier, r *http.Request, cookieName string) (session.Payload, bool) {
	for _, token := range SessionTokens(r, cookieName) {
		if p, ok := v.Verify(token); ok {
			return p, true
		}
	}
	return session.Payload{}, false
}

// OptionalSession attaches the session to the context when the request
// carries a valid token and otherwise passes the request through untouched.
func OptionalSession(v SessionVerifier, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p, ok := verifyRequest(v, r, cookieName); ok {
				r = r.WithContext(WithSession(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession rejects requests without a valid session with 401.
func RequireSession(v SessionVerifier, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := verifyRequest(v, r, cookieName)
			if !ok {
				response.Unauthorized(w, "Not logged in")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), p)))
		})
	}
}

func WithSession(ctx context.Context, p session.Payload) context.Context {
	ctx = context.WithValue(ctx, sessionKey{}, p)
	return context.WithValue(ctx, logger.AccountIDKey, p.AccountID)
}

func SessionFromContext(ctx context.Context) (session.Payload, bool) {
	p, ok := ctx.Value(sessionKey{}).(session.Payload)
	return p, ok
}
