package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/planthub/authapi/internal/auth"
	"github.com/planthub/authapi/internal/metrics"
	"github.com/planthub/authapi/internal/services"
	"github.com/planthub/authapi/internal/store"
	"github.com/planthub/authapi/types"
)

type contextKey string

const contextPrincipalKey contextKey = "principal"

// PrincipalResolver maps an access token to the account it was issued for.
// *services.AuthService satisfies it.
type PrincipalResolver interface {
	Principal(ctx context.Context, accessToken string) (types.Principal, error)
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p types.Principal) context.Context {
	return context.WithValue(ctx, contextPrincipalKey, p)
}

// PrincipalFromContext returns the principal attached by Deserialize, if any.
func PrincipalFromContext(ctx context.Context) (types.Principal, bool) {
	p, ok := ctx.Value(contextPrincipalKey).(types.Principal)
	return p, ok
}

// Middleware is the per-request auth pipeline.
type Middleware struct {
	resolver PrincipalResolver
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewMiddleware(resolver PrincipalResolver, m *metrics.Metrics, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{resolver: resolver, metrics: m, logger: logger}
}

// Deserialize attaches a principal when the request carries a valid access
// cookie for an existing account. It never rejects a request.
func (m *Middleware) Deserialize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(auth.AccessCookieName)
		if err != nil || cookie.Value == "" {
			m.metrics.ObservePrincipal(metrics.PrincipalAnonymous)
			next.ServeHTTP(w, r)
			return
		}

		principal, err := m.resolver.Principal(r.Context(), cookie.Value)
		switch {
		case err == nil:
			m.metrics.ObservePrincipal(metrics.PrincipalResolved)
			r = r.WithContext(WithPrincipal(r.Context(), principal))
		case errors.Is(err, services.ErrInvalidToken):
			m.metrics.ObservePrincipal(metrics.PrincipalInvalid)
		case errors.Is(err, store.ErrNotFound):
			m.metrics.ObservePrincipal(metrics.PrincipalUnknownUser)
		default:
			m.metrics.ObservePrincipal(metrics.PrincipalLookupError)
			m.logger.WarnContext(r.Context(), "principal lookup failed", "error", err)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth rejects requests without a principal with 401.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			m.metrics.ObserveRejection(metrics.GateAuth)
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects principals whose role is not exactly role with 403.
// A request without a principal is rejected with 401.
func (m *Middleware) RequireRole(role types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				m.metrics.ObserveRejection(metrics.GateAuth)
				writeError(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}
			if principal.Role != role {
				m.metrics.ObserveRejection(metrics.GateRole)
				writeError(w, http.StatusForbidden, msgForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
