package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/mindrush/portal/pkg/auth"
	"github.com/mindrush/portal/pkg/httputil"
	"github.com/mindrush/portal/pkg/observability"
	"github.com/mindrush/portal/pkg/session"
)

// Refresher rotates an expired OIDC access token in place
type Refresher interface {
	Refresh(ctx context.Context, p *auth.OIDCPrincipal) error
}

// AuthGate is the single authorization decision point for protected routes.
// Every protected handler sits behind Handler; no other code path may admit
// a request.
type AuthGate struct {
	sessions  session.Store
	refresher Refresher
	metrics   *observability.Metrics
	logger    *observability.Logger
	now       func() time.Time
}

// NewAuthGate creates the gate. refresher may be nil when OIDC is not
// configured; expired OIDC sessions are then rejected outright.
func NewAuthGate(sessions session.Store, refresher Refresher, metrics *observability.Metrics, logger *observability.Logger) *AuthGate {
	return &AuthGate{
		sessions:  sessions,
		refresher: refresher,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the gate clock, for tests
func (g *AuthGate) WithClock(now func() time.Time) *AuthGate {
	g.now = now
	return g
}

// Handler wraps a protected handler with the auth decision
func (g *AuthGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := session.IDFromRequest(r)
		if sessionID == "" {
			g.reject(w, "none")
			return
		}

		record, err := g.sessions.Get(r.Context(), sessionID)
		if err != nil {
			g.reject(w, "none")
			return
		}

		switch p := record.Principal.(type) {
		case *auth.OIDCPrincipal:
			g.handleOIDC(w, r, next, record, p)
		case *auth.DevPrincipal:
			g.admit(w, r, next, &auth.Identity{
				// Normalized view: downstream handlers read claims.subject
				// without branching on auth mode.
				Claims:    auth.Claims{Subject: p.ID},
				Principal: p,
			}, "dev")
		default:
			g.reject(w, "unknown")
		}
	})
}

func (g *AuthGate) handleOIDC(w http.ResponseWriter, r *http.Request, next http.Handler, record *session.Record, p *auth.OIDCPrincipal) {
	if p.Claims.ExpiresAt == 0 {
		g.reject(w, "oidc")
		return
	}

	now := g.now()
	if !p.Claims.Expired(now) {
		g.admit(w, r, next, &auth.Identity{Claims: p.Claims, Principal: p}, "oidc")
		return
	}

	// Expired: exactly one refresh attempt. Any failure rejects; concurrent
	// requests may each pay one provider round trip, which is acceptable and
	// deliberately not deduplicated.
	if g.refresher == nil {
		g.reject(w, "oidc")
		return
	}
	if err := g.refresher.Refresh(r.Context(), p); err != nil {
		g.logger.WithError(err).Debug("token refresh rejected")
		if g.metrics != nil {
			g.metrics.TokenRefreshesTotal.WithLabelValues("failure").Inc()
		}
		g.reject(w, "oidc")
		return
	}
	if g.metrics != nil {
		g.metrics.TokenRefreshesTotal.WithLabelValues("success").Inc()
	}

	// Persist the rotated tokens on the same session record. The session's
	// own expiry is untouched; only the principal changes.
	record.Principal = p
	if err := g.sessions.Put(r.Context(), record); err != nil {
		g.logger.WithError(err).Warn("failed to persist refreshed session")
	}

	g.admit(w, r, next, &auth.Identity{Claims: p.Claims, Principal: p}, "oidc")
}

func (g *AuthGate) admit(w http.ResponseWriter, r *http.Request, next http.Handler, id *auth.Identity, mode string) {
	if g.metrics != nil {
		g.metrics.GateDecisionsTotal.WithLabelValues(mode, "allow").Inc()
	}
	ctx := auth.WithIdentity(r.Context(), id)
	next.ServeHTTP(w, r.WithContext(ctx))
}

func (g *AuthGate) reject(w http.ResponseWriter, mode string) {
	if g.metrics != nil {
		g.metrics.GateDecisionsTotal.WithLabelValues(mode, "reject").Inc()
	}
	httputil.WriteUnauthorized(w, "Not authenticated")
}
