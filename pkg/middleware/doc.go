// Package middleware holds HTTP middleware, chiefly the AuthGate that makes
// the single authorization decision for all protected routes.
package middleware
