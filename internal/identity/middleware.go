package identity

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vouse/postqueue/pkg/response"
)

type contextKey string

const principalKey contextKey = "identity_principal"

// Middleware wraps a Verifier as chi-compatible HTTP middleware.
type Middleware struct {
	verifier Verifier
}

func NewMiddleware(verifier Verifier) *Middleware {
	return &Middleware{verifier: verifier}
}

// RequireAuth extracts and verifies the bearer token, attaching the
// resulting Principal to the request context. Missing or invalid
// tokens both produce Unauthenticated (401), per spec.md §4.2 — unlike
// ownership mismatches, which must read as 404 (see RequireOwnership).
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := ExtractBearer(r.Header.Get("Authorization"))
		if err != nil {
			response.Error(w, http.StatusUnauthorized, "authorization required", "UNAUTHENTICATED", nil)
			return
		}
		principal, err := m.verifier.Verify(r.Context(), raw)
		if err != nil {
			response.Error(w, http.StatusUnauthorized, "invalid token", "UNAUTHENTICATED", nil)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireOwnership enforces that the {userId} path parameter equals the
// verified principal's subject. A mismatch is reported as 404, not 403,
// so an attacker probing another user's resources can't distinguish
// "forbidden" from "doesn't exist" (spec.md §4.2/§6).
func RequireOwnership(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := FromContext(r.Context())
		if !ok {
			response.Error(w, http.StatusNotFound, "not found", "NOT_FOUND", nil)
			return
		}
		routeUserID := chi.URLParam(r, "userId")
		if routeUserID != "" && routeUserID != p.Subject {
			response.Error(w, http.StatusNotFound, "not found", "NOT_FOUND", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// FromContext retrieves the Principal attached by RequireAuth.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// Subject is a convenience accessor used by handlers that only need the
// caller's own userId, not the full claim set.
func Subject(ctx context.Context) (string, bool) {
	p, ok := FromContext(ctx)
	if !ok {
		return "", false
	}
	return p.Subject, true
}
