package auth

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindrush/portal/pkg/observability"
	"github.com/mindrush/portal/pkg/users"
)

type fakeUpserter struct {
	users map[string]*users.User
	err   error
}

func (f *fakeUpserter) UpsertByEmail(ctx context.Context, email string) (*users.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.users[email]; ok {
		return u, nil
	}
	u := &users.User{ID: "generated-" + email, Email: email}
	if f.users == nil {
		f.users = map[string]*users.User{}
	}
	f.users[email] = u
	return u, nil
}

func (f *fakeUpserter) EmailExists(ctx context.Context, email string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.users[email]
	return ok, nil
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func devAccounts() []DevAccount {
	return []DevAccount{{
		Email:     "admin@mindrush.com",
		Password:  "$omeRandomPass*",
		FirstName: "Admin",
		LastName:  "User",
	}}
}

func TestDevLogin_KnownAccount(t *testing.T) {
	d := NewDevAuthenticator(devAccounts(), &fakeUpserter{}, testLogger())

	p, err := d.Login(context.Background(), "admin@mindrush.com", "$omeRandomPass*")
	require.NoError(t, err)
	assert.Equal(t, "admin@mindrush.com", p.ID)
	assert.Equal(t, "admin@mindrush.com", p.Email)
	assert.Equal(t, "Admin", p.FirstName)
}

func TestDevLogin_WrongPassword(t *testing.T) {
	store := &fakeUpserter{}
	d := NewDevAuthenticator(devAccounts(), store, testLogger())

	// A present-but-wrong password must fail outright, never fall through to
	// the passwordless path.
	_, err := d.Login(context.Background(), "admin@mindrush.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Empty(t, store.users)
}

func TestDevLogin_PasswordForUnknownAccount(t *testing.T) {
	d := NewDevAuthenticator(nil, &fakeUpserter{}, testLogger())

	_, err := d.Login(context.Background(), "someone@example.com", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestDevLogin_PasswordlessUpsertsUser(t *testing.T) {
	store := &fakeUpserter{}
	d := NewDevAuthenticator(nil, store, testLogger())

	p, err := d.Login(context.Background(), "new@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "generated-new@example.com", p.ID)
	assert.Contains(t, store.users, "new@example.com")
}

func TestDevLogin_PasswordlessStoreFailureDegrades(t *testing.T) {
	store := &fakeUpserter{err: errors.New("db down")}
	d := NewDevAuthenticator(nil, store, testLogger())

	p, err := d.Login(context.Background(), "new@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", p.ID)
	assert.Equal(t, "new@example.com", p.Email)
}

func TestDevLogin_PasswordlessWithoutStore(t *testing.T) {
	d := NewDevAuthenticator(nil, nil, testLogger())

	p, err := d.Login(context.Background(), "dev@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "dev@example.com", p.ID)
}

func TestCheckEmailExists(t *testing.T) {
	store := &fakeUpserter{users: map[string]*users.User{
		"stored@example.com": {ID: "u1", Email: "stored@example.com"},
	}}
	d := NewDevAuthenticator(devAccounts(), store, testLogger())

	assert.True(t, d.CheckEmailExists(context.Background(), "admin@mindrush.com"))
	assert.True(t, d.CheckEmailExists(context.Background(), "stored@example.com"))
	assert.False(t, d.CheckEmailExists(context.Background(), "nobody@example.com"))
}

func TestCheckEmailExists_StoreFailureReportsFalse(t *testing.T) {
	store := &fakeUpserter{err: errors.New("db down")}
	d := NewDevAuthenticator(nil, store, testLogger())

	assert.False(t, d.CheckEmailExists(context.Background(), "stored@example.com"))
}

func TestSetAccounts_SwapsAccountSet(t *testing.T) {
	d := NewDevAuthenticator(devAccounts(), nil, testLogger())

	d.SetAccounts([]DevAccount{{Email: "other@mindrush.com", Password: "pw"}})

	_, err := d.Login(context.Background(), "admin@mindrush.com", "$omeRandomPass*")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	p, err := d.Login(context.Background(), "other@mindrush.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "other@mindrush.com", p.ID)
}

func TestSetAccounts_ConcurrentWithLogin(t *testing.T) {
	// The config watcher swaps the account set on its own goroutine while
	// request goroutines log in. Run under -race.
	d := NewDevAuthenticator(devAccounts(), nil, testLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			d.SetAccounts(devAccounts())
		}
	}()

	for i := 0; i < 200; i++ {
		_, err := d.Login(context.Background(), "admin@mindrush.com", "$omeRandomPass*")
		require.NoError(t, err)
		d.CheckEmailExists(context.Background(), "admin@mindrush.com")
	}
	<-done
}
