package users

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates the users table if it does not exist. The DDL is kept to
// the subset both postgres and sqlite accept.
func Migrate(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT,
			full_name TEXT,
			company_name TEXT,
			reset_token TEXT,
			reset_token_expires_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_reset_token ON users (reset_token)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("users migration failed: %w", err)
		}
	}
	return nil
}
