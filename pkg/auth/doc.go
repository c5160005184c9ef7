// Package auth defines the principal model and the local fallback login path.
//
// A session principal is an explicit two-variant sum: OIDCPrincipal carries
// verified provider claims and the token pair, DevPrincipal carries a local
// identity. Callers type-switch on the variant instead of sniffing fields.
//
// DevAuthenticator implements the dev/fallback path: fixed developer accounts
// from injected configuration, and passwordless login that upserts a user
// record by email. Its failure policy is to always let the user in:
// credential store outages degrade to a session-only principal.
package auth
