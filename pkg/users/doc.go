// Package users is the credential store: persisted account records with
// lookup by id, email, and live reset token, plus partial update and
// upsert-by-email for the passwordless dev login path.
//
// Reset-token consumption is a single UPDATE guarded by the token and its
// expiry, so rotating the password and clearing the token commit together and
// a raced double consume succeeds exactly once.
package users
