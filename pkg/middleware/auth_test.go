package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindrush/portal/pkg/auth"
	"github.com/mindrush/portal/pkg/observability"
	"github.com/mindrush/portal/pkg/session"
)

type fakeRefresher struct {
	calls int
	err   error
	// newExpiry is applied to the principal on success
	newExpiry int64
}

func (f *fakeRefresher) Refresh(ctx context.Context, p *auth.OIDCPrincipal) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	p.AccessToken = "refreshed-at"
	p.Claims.ExpiresAt = f.newExpiry
	return nil
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

// echoIdentity writes the admitted identity's subject, proving the handler ran
func echoIdentity(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := auth.IdentityFromRequest(r)
		require.NotNil(t, identity)
		w.Write([]byte(identity.Claims.Subject))
	})
}

func requestWithSession(id string) *http.Request {
	req := httptest.NewRequest("GET", "/api/auth/user", nil)
	if id != "" {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: id})
	}
	return req
}

func assertRejected(t *testing.T, w *httptest.ResponseRecorder) {
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Not authenticated", body["message"])
}

func TestGate_NoCookie(t *testing.T) {
	gate := NewAuthGate(session.NewMemoryStore(), nil, nil, testLogger())

	w := httptest.NewRecorder()
	gate.Handler(echoIdentity(t)).ServeHTTP(w, requestWithSession(""))

	assertRejected(t, w)
}

func TestGate_UnknownSession(t *testing.T) {
	gate := NewAuthGate(session.NewMemoryStore(), nil, nil, testLogger())

	w := httptest.NewRecorder()
	gate.Handler(echoIdentity(t)).ServeHTTP(w, requestWithSession("bogus-id"))

	assertRejected(t, w)
}

func TestGate_DevPrincipalAdmitted(t *testing.T) {
	sessions := session.NewMemoryStore()
	record := session.NewRecord(&auth.DevPrincipal{ID: "user-9", Email: "d@e.com"}, session.DefaultTTL, time.Now())
	require.NoError(t, sessions.Put(context.Background(), record))

	gate := NewAuthGate(sessions, nil, nil, testLogger())

	w := httptest.NewRecorder()
	gate.Handler(echoIdentity(t)).ServeHTTP(w, requestWithSession(record.ID))

	assert.Equal(t, http.StatusOK, w.Code)
	// The normalized claims view carries the dev principal id as subject
	assert.Equal(t, "user-9", w.Body.String())
}

func TestGate_OIDCUnexpiredAdmitted(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sessions := session.NewMemoryStore().WithClock(func() time.Time { return now })
	p := &auth.OIDCPrincipal{
		Claims:      auth.Claims{Subject: "sub-5", ExpiresAt: now.Add(time.Hour).Unix()},
		AccessToken: "at",
	}
	record := session.NewRecord(p, session.DefaultTTL, now)
	require.NoError(t, sessions.Put(context.Background(), record))

	refresher := &fakeRefresher{}
	gate := NewAuthGate(sessions, refresher, nil, testLogger()).
		WithClock(func() time.Time { return now })

	w := httptest.NewRecorder()
	gate.Handler(echoIdentity(t)).ServeHTTP(w, requestWithSession(record.ID))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sub-5", w.Body.String())
	assert.Zero(t, refresher.calls)
}

func TestGate_OIDCMissingExpiryRejected(t *testing.T) {
	sessions := session.NewMemoryStore()
	p := &auth.OIDCPrincipal{Claims: auth.Claims{Subject: "sub-5"}, AccessToken: "at"}
	record := session.NewRecord(p, session.DefaultTTL, time.Now())
	require.NoError(t, sessions.Put(context.Background(), record))

	refresher := &fakeRefresher{}
	gate := NewAuthGate(sessions, refresher, nil, testLogger())

	w := httptest.NewRecorder()
	gate.Handler(echoIdentity(t)).ServeHTTP(w, requestWithSession(record.ID))

	assertRejected(t, w)
	assert.Zero(t, refresher.calls)
}

func TestGate_OIDCExpiredNoRefresherRejected(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sessions := session.NewMemoryStore().WithClock(func() time.Time { return now })
	p := &auth.OIDCPrincipal{
		Claims:       auth.Claims{Subject: "sub-5", ExpiresAt: now.Add(-time.Hour).Unix()},
		RefreshToken: "rt",
	}
	record := session.NewRecord(p, session.DefaultTTL, now)
	require.NoError(t, sessions.Put(context.Background(), record))

	gate := NewAuthGate(sessions, nil, nil, testLogger()).
		WithClock(func() time.Time { return now })

	w := httptest.NewRecorder()
	gate.Handler(echoIdentity(t)).ServeHTTP(w, requestWithSession(record.ID))

	assertRejected(t, w)
}

func TestGate_OIDCExpiredRefreshFailureRejected(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sessions := session.NewMemoryStore().WithClock(func() time.Time { return now })
	p := &auth.OIDCPrincipal{
		Claims:       auth.Claims{Subject: "sub-5", ExpiresAt: now.Add(-time.Hour).Unix()},
		RefreshToken: "rt",
	}
	record := session.NewRecord(p, session.DefaultTTL, now)
	require.NoError(t, sessions.Put(context.Background(), record))

	refresher := &fakeRefresher{err: errors.New("provider says no")}
	gate := NewAuthGate(sessions, refresher, nil, testLogger()).
		WithClock(func() time.Time { return now })

	w := httptest.NewRecorder()
	gate.Handler(echoIdentity(t)).ServeHTTP(w, requestWithSession(record.ID))

	assertRejected(t, w)
	// Exactly one refresh attempt per request, no retries
	assert.Equal(t, 1, refresher.calls)
}

func TestGate_OIDCExpiredRefreshSuccessAdmitsAndPersists(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sessions := session.NewMemoryStore().WithClock(func() time.Time { return now })
	p := &auth.OIDCPrincipal{
		Claims:       auth.Claims{Subject: "sub-5", ExpiresAt: now.Add(-time.Hour).Unix()},
		AccessToken:  "stale-at",
		RefreshToken: "rt",
	}
	record := session.NewRecord(p, session.DefaultTTL, now)
	originalExpiry := record.ExpiresAt
	require.NoError(t, sessions.Put(context.Background(), record))

	refresher := &fakeRefresher{newExpiry: now.Add(time.Hour).Unix()}
	gate := NewAuthGate(sessions, refresher, nil, testLogger()).
		WithClock(func() time.Time { return now })

	w := httptest.NewRecorder()
	gate.Handler(echoIdentity(t)).ServeHTTP(w, requestWithSession(record.ID))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sub-5", w.Body.String())
	assert.Equal(t, 1, refresher.calls)

	// The rotated tokens are persisted on the same session without touching
	// its absolute lifetime.
	stored, err := sessions.Get(context.Background(), record.ID)
	require.NoError(t, err)
	storedPrincipal := stored.Principal.(*auth.OIDCPrincipal)
	assert.Equal(t, "refreshed-at", storedPrincipal.AccessToken)
	assert.Equal(t, originalExpiry, stored.ExpiresAt)
}
