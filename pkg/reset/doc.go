// Package reset manages password-reset tokens: opaque single-use identifiers
// stored on the user record with a one-hour expiry. The request path is
// enumeration-safe (identical acknowledgement for any email) and consumption
// rotates the credential hash and clears the token atomically.
package reset
