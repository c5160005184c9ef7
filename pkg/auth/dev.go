package auth

import (
	"context"
	"sync"

	"github.com/mindrush/portal/pkg/observability"
	"github.com/mindrush/portal/pkg/users"
)

// DevAccount is a named developer account for manual testing. The account
// set is injected configuration, never a source-level constant, so it stays
// out of production builds.
type DevAccount struct {
	Email     string `yaml:"email"`
	Password  string `yaml:"password"`
	FirstName string `yaml:"firstName"`
	LastName  string `yaml:"lastName"`
}

// UserUpserter is the slice of the credential store the dev path needs
type UserUpserter interface {
	UpsertByEmail(ctx context.Context, email string) (*users.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

// DevAuthenticator is the local fallback login path used when no identity
// provider is configured or OIDC setup fails.
type DevAuthenticator struct {
	mu       sync.RWMutex
	accounts map[string]DevAccount
	store    UserUpserter
	logger   *observability.Logger
}

// NewDevAuthenticator builds the fallback authenticator around an injected
// account set and credential store. store may be nil, in which case
// passwordless logins are session-only.
func NewDevAuthenticator(accounts []DevAccount, store UserUpserter, logger *observability.Logger) *DevAuthenticator {
	byEmail := make(map[string]DevAccount, len(accounts))
	for _, a := range accounts {
		byEmail[a.Email] = a
	}
	return &DevAuthenticator{accounts: byEmail, store: store, logger: logger}
}

// SetAccounts swaps the developer account set. It is called from the config
// watcher goroutine while request goroutines read the set, so the swap is
// guarded by d.mu.
func (d *DevAuthenticator) SetAccounts(accounts []DevAccount) {
	byEmail := make(map[string]DevAccount, len(accounts))
	for _, a := range accounts {
		byEmail[a.Email] = a
	}
	d.mu.Lock()
	d.accounts = byEmail
	d.mu.Unlock()
}

func (d *DevAuthenticator) account(email string) (DevAccount, bool) {
	d.mu.RLock()
	account, ok := d.accounts[email]
	d.mu.RUnlock()
	return account, ok
}

// Login authenticates against the dev account set, or passwordlessly upserts
// a user record when no password is supplied. A supplied password that does
// not match a known developer account fails outright; passwordless rules
// never apply once a password is present.
func (d *DevAuthenticator) Login(ctx context.Context, email, password string) (*DevPrincipal, error) {
	if password != "" {
		account, ok := d.account(email)
		if !ok || account.Password != password {
			return nil, ErrInvalidCredentials
		}
		return &DevPrincipal{
			ID:        account.Email,
			Email:     account.Email,
			FirstName: account.FirstName,
			LastName:  account.LastName,
		}, nil
	}

	// Passwordless: every call may create a user record. Deliberate
	// dev-environment simplification, no rate limit or verification.
	if d.store != nil {
		u, err := d.store.UpsertByEmail(ctx, email)
		if err == nil {
			d.logger.WithField("email", email).Debug("passwordless dev login upserted user")
			return &DevPrincipal{ID: u.ID, Email: u.Email}, nil
		}
		d.logger.WithError(err).WithField("email", email).Warn("credential store unavailable, using session-only principal")
	}

	// Always let the user in: storage failure degrades to session-only.
	return &DevPrincipal{ID: email, Email: email}, nil
}

// CheckEmailExists is true for developer accounts and stored users. Store
// failures report false rather than an error.
func (d *DevAuthenticator) CheckEmailExists(ctx context.Context, email string) bool {
	if _, ok := d.account(email); ok {
		return true
	}
	if d.store == nil {
		return false
	}
	exists, err := d.store.EmailExists(ctx, email)
	if err != nil {
		d.logger.WithError(err).Warn("email existence check degraded to false")
		return false
	}
	return exists
}
