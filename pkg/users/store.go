package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when no user matches a lookup
var ErrNotFound = errors.New("user not found")

// ErrDuplicateEmail is returned when a create would violate email uniqueness.
// Email comparison is case-sensitive at the store level; A@b.com and a@b.com
// are distinct accounts.
var ErrDuplicateEmail = errors.New("user already exists with this email")

// User is a persisted account record
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"fullName,omitempty"`
	CompanyName  string    `json:"companyName,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Update describes a partial update; nil fields are left untouched
type Update struct {
	PasswordHash *string
	FullName     *string
	CompanyName  *string
}

// Store persists user records on database/sql. It works against postgres
// (lib/pq) and sqlite (mattn/go-sqlite3); placeholders are rebound per driver.
type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// NewStore creates a user store. driver is the database/sql driver name
// ("postgres" or "sqlite3").
func NewStore(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver, now: time.Now}
}

// WithClock overrides the store clock, for tests
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// rebind converts $N placeholders to ? for sqlite
func (s *Store) rebind(query string) string {
	if s.driver != "sqlite3" {
		return query
	}
	out := query
	for i := 9; i >= 1; i-- {
		out = strings.ReplaceAll(out, fmt.Sprintf("$%d", i), "?")
	}
	return out
}

const userColumns = `id, email, COALESCE(password_hash, ''), COALESCE(full_name, ''), COALESCE(company_name, ''), created_at, updated_at`

func scanUser(row *sql.Row) (*User, error) {
	u := &User{}
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.CompanyName, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return u, nil
}

// GetByID retrieves a user by id
func (s *Store) GetByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+userColumns+`
		FROM users WHERE id = $1
	`), id)
	return scanUser(row)
}

// GetByEmail retrieves a user by exact email
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+userColumns+`
		FROM users WHERE email = $1
	`), email)
	return scanUser(row)
}

// GetByResetToken retrieves the user holding a live reset token. A token past
// its expiry behaves exactly like a token that never existed.
func (s *Store) GetByResetToken(ctx context.Context, token string) (*User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+userColumns+`
		FROM users WHERE reset_token = $1 AND reset_token_expires_at > $2
	`), token, s.now())
	return scanUser(row)
}

// isUniqueViolation reports whether err is the driver's unique-constraint
// violation, for postgres and sqlite.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// Create inserts a new user record
func (s *Store) Create(ctx context.Context, email, passwordHash, fullName, companyName string) (*User, error) {
	// The pre-check catches most duplicates cheaply; the unique index on
	// email is the real arbiter, so a racing insert that loses still maps
	// to ErrDuplicateEmail below.
	var exists bool
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`), email).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check email uniqueness: %w", err)
	}
	if exists {
		return nil, ErrDuplicateEmail
	}

	now := s.now()
	u := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     fullName,
		CompanyName:  companyName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO users (id, email, password_hash, full_name, company_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`), u.ID, u.Email, u.PasswordHash, u.FullName, u.CompanyName, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

// ApplyUpdate applies a partial update to a user
func (s *Store) ApplyUpdate(ctx context.Context, id string, update Update) error {
	set := []string{}
	args := []interface{}{}
	n := 1

	if update.PasswordHash != nil {
		set = append(set, fmt.Sprintf("password_hash = $%d", n))
		args = append(args, *update.PasswordHash)
		n++
	}
	if update.FullName != nil {
		set = append(set, fmt.Sprintf("full_name = $%d", n))
		args = append(args, *update.FullName)
		n++
	}
	if update.CompanyName != nil {
		set = append(set, fmt.Sprintf("company_name = $%d", n))
		args = append(args, *update.CompanyName)
		n++
	}
	if len(set) == 0 {
		return nil
	}

	set = append(set, fmt.Sprintf("updated_at = $%d", n))
	args = append(args, s.now())
	n++

	args = append(args, id)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(set, ", "), n)

	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertByEmail returns the user with the given email, creating a bare record
// when none exists. Used by the passwordless dev login path.
func (s *Store) UpsertByEmail(ctx context.Context, email string) (*User, error) {
	u, err := s.GetByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return s.Create(ctx, email, "", "", "")
}

// SetResetToken stores a reset token and its expiry on the user's record
func (s *Store) SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE users
		SET reset_token = $1, reset_token_expires_at = $2, updated_at = $3
		WHERE id = $4
	`), token, expiresAt, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to set reset token: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumeResetToken rotates the password hash of the user holding a live
// reset token and clears the token in the same statement. Exactly one of two
// racing consumers can see rows-affected 1; the loser gets ErrNotFound.
func (s *Store) ConsumeResetToken(ctx context.Context, token, newPasswordHash string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE users
		SET password_hash = $1, reset_token = NULL, reset_token_expires_at = NULL, updated_at = $2
		WHERE reset_token = $3 AND reset_token_expires_at > $4
	`), newPasswordHash, s.now(), token, s.now())
	if err != nil {
		return fmt.Errorf("failed to consume reset token: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpiredResetTokens clears reset tokens whose expiry has passed.
// Returns the number of records swept.
func (s *Store) DeleteExpiredResetTokens(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE users
		SET reset_token = NULL, reset_token_expires_at = NULL
		WHERE reset_token IS NOT NULL AND reset_token_expires_at <= $1
	`), s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep reset tokens: %w", err)
	}
	return res.RowsAffected()
}

// EmailExists reports whether any user has the exact email
func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`), email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}
