// Package api implements the portal's HTTP surface.
//
// Public routes cover both login modes (the OIDC redirect flow and the local
// dev login), signup, and the password reset pair. Protected routes sit
// behind the auth gate from pkg/middleware, which normalizes both principal
// kinds into a single identity for handlers.
package api
