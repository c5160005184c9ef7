package oidc

import (
	"context"
	"fmt"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"

	"github.com/mindrush/portal/pkg/auth"
)

// discoveryCache memoizes provider metadata. It is owned by the Manager and
// driven by the Manager's clock so tests can force expiry deterministically.
type discoveryCache struct {
	mu         sync.Mutex
	provider   *gooidc.Provider
	endSession string
	fetchedAt  time.Time
}

// providerExtra holds the discovery fields go-oidc does not surface directly
type providerExtra struct {
	EndSessionEndpoint string `json:"end_session_endpoint"`
}

// discover returns the provider metadata, refetching when the cached entry
// is older than discoveryTTL. A failed refetch falls back to the stale entry
// when one exists; only a cold-cache failure propagates, and the caller is
// expected to fall back to dev auth rather than fail the process.
func (m *Manager) discover(ctx context.Context) (*gooidc.Provider, string, error) {
	m.cache.mu.Lock()
	defer m.cache.mu.Unlock()

	now := m.clock()
	if m.cache.provider != nil && now.Sub(m.cache.fetchedAt) < discoveryTTL {
		return m.cache.provider, m.cache.endSession, nil
	}

	provider, err := gooidc.NewProvider(gooidc.ClientContext(ctx, m.client), m.cfg.IssuerURL)
	if err != nil {
		if m.cache.provider != nil {
			m.logger.WithError(err).Warn("provider discovery failed, serving stale metadata")
			return m.cache.provider, m.cache.endSession, nil
		}
		return nil, "", fmt.Errorf("%w: provider discovery: %v", auth.ErrUpstreamUnavailable, err)
	}

	var extra providerExtra
	if err := provider.Claims(&extra); err != nil {
		m.logger.WithError(err).Debug("provider metadata has no parseable extras")
	}

	m.cache.provider = provider
	m.cache.endSession = extra.EndSessionEndpoint
	m.cache.fetchedAt = now

	return provider, extra.EndSessionEndpoint, nil
}
