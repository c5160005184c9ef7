package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mindrush/portal/pkg/auth"
)

// DefaultTTL is the absolute session lifetime. The cookie and the record
// share it; it is never extended on activity.
const DefaultTTL = 7 * 24 * time.Hour

// ErrNotFound is returned for unknown or expired session ids
var ErrNotFound = errors.New("session not found")

// Record is a server-side session keyed by the opaque cookie-carried id
type Record struct {
	ID        string
	Principal auth.Principal
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewRecord creates a session record for a freshly authenticated principal
func NewRecord(p auth.Principal, ttl time.Duration, now time.Time) *Record {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Record{
		ID:        uuid.NewString(),
		Principal: p,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Expired reports whether the record's absolute lifetime has passed
func (r *Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Store is a time-bounded key/value store for session records.
//
// Put both creates records and overwrites them in place, which is how token
// refresh persists updated claims without touching the session's expiry.
type Store interface {
	Get(ctx context.Context, id string) (*Record, error)
	Put(ctx context.Context, record *Record) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int, error)
}

// recordEnvelope is the wire form shared by serializing backends
type recordEnvelope struct {
	ID        string          `json:"id"`
	Principal json.RawMessage `json:"principal"`
	CreatedAt time.Time       `json:"createdAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

func encodeRecord(r *Record) ([]byte, error) {
	principal, err := auth.MarshalPrincipal(r.Principal)
	if err != nil {
		return nil, err
	}
	return json.Marshal(recordEnvelope{
		ID:        r.ID,
		Principal: principal,
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
	})
}

func decodeRecord(data []byte) (*Record, error) {
	var env recordEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode session record: %w", err)
	}
	principal, err := auth.UnmarshalPrincipal(env.Principal)
	if err != nil {
		return nil, err
	}
	return &Record{
		ID:        env.ID,
		Principal: principal,
		CreatedAt: env.CreatedAt,
		ExpiresAt: env.ExpiresAt,
	}, nil
}
