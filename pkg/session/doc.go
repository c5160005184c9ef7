// Package session is the server-side session store: time-bounded records
// holding the authenticated principal, keyed by an opaque id carried in an
// HTTP-only cookie.
//
// Lifetime is absolute from creation (7 days), not sliding. Two backends
// implement Store: MemoryStore for single-instance and degraded operation,
// RedisStore for shared deployments. Records round-trip through a tagged
// JSON envelope so either principal variant is restored intact.
package session
