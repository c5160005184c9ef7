package reset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mindrush/portal/pkg/auth"
	"github.com/mindrush/portal/pkg/observability"
	"github.com/mindrush/portal/pkg/users"
)

// AckMessage is returned for every reset request, whether or not the email
// exists. Do not branch the response on account existence.
const AckMessage = "If an account with that email exists, a password reset link has been sent"

// TokenTTL is how long an issued reset token stays consumable
const TokenTTL = time.Hour

// UserStore is the slice of the credential store the reset flow needs
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*users.User, error)
	SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error
	ConsumeResetToken(ctx context.Context, token, newPasswordHash string) error
}

// Notifier dispatches the reset token over an external channel
type Notifier interface {
	SendResetToken(ctx context.Context, email, token string) error
}

// LogNotifier is the default notifier: it logs the token instead of sending
// it. The real notification channel is outside this service.
type LogNotifier struct {
	Logger *observability.Logger
}

func (n *LogNotifier) SendResetToken(ctx context.Context, email, token string) error {
	n.Logger.WithFields(map[string]interface{}{
		"email": email,
		"token": token,
	}).Info("password reset token issued")
	return nil
}

// Manager issues single-use, time-limited reset tokens and consumes them to
// rotate a user's credential hash.
type Manager struct {
	store    UserStore
	notifier Notifier
	metrics  *observability.Metrics
	logger   *observability.Logger
	now      func() time.Time
}

// NewManager creates a password reset manager
func NewManager(store UserStore, notifier Notifier, metrics *observability.Metrics, logger *observability.Logger) *Manager {
	return &Manager{
		store:    store,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the manager clock, for tests
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Request issues a reset token for the account, if one exists. The returned
// acknowledgement is identical in every case; store failures and unknown
// emails are logged, never surfaced.
func (m *Manager) Request(ctx context.Context, email string) string {
	u, err := m.store.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, users.ErrNotFound) {
			m.logger.WithError(err).Warn("reset request could not reach credential store")
			m.countReset("request", "store_error")
		} else {
			m.countReset("request", "unknown_email")
		}
		return AckMessage
	}

	token := uuid.NewString()
	expiresAt := m.now().Add(TokenTTL)
	if err := m.store.SetResetToken(ctx, u.ID, token, expiresAt); err != nil {
		m.logger.WithError(err).Warn("failed to persist reset token")
		m.countReset("request", "store_error")
		return AckMessage
	}

	if err := m.notifier.SendResetToken(ctx, u.Email, token); err != nil {
		m.logger.WithError(err).Warn("failed to dispatch reset token")
	}
	m.countReset("request", "issued")
	return AckMessage
}

// Consume rotates the user's password using a live reset token. Unknown,
// expired, and already-consumed tokens are indistinguishable to the caller.
func (m *Manager) Consume(ctx context.Context, token, newPassword string) error {
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	if err := m.store.ConsumeResetToken(ctx, token, hash); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			m.countReset("consume", "invalid")
			return auth.ErrResetTokenInvalid
		}
		m.countReset("consume", "store_error")
		return fmt.Errorf("failed to consume reset token: %w", err)
	}

	m.countReset("consume", "success")
	return nil
}

func (m *Manager) countReset(op, result string) {
	if m.metrics != nil {
		m.metrics.PasswordResetsTotal.WithLabelValues(op, result).Inc()
	}
}
