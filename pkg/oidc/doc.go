// Package oidc implements the delegated OpenID Connect session flow:
// authorization-code login, ID token verification, refresh-token rotation,
// and RP-initiated logout.
//
// Provider metadata is discovered lazily and cached for an hour on an
// injected clock. When discovery fails on a cold cache, callers fall
// back to the local dev auth path instead of erroring to the user.
package oidc
