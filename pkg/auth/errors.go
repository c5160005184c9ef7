package auth

import "errors"

var (
	// ErrInvalidCredentials means an explicit login attempt failed
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUpstreamUnavailable means the identity provider or credential store
	// could not be reached. Handlers degrade to the fallback path and log the
	// cause; the error text never reaches the end user.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrResetTokenInvalid covers unknown, expired, and already-consumed
	// reset tokens; the three cases are deliberately indistinguishable.
	ErrResetTokenInvalid = errors.New("invalid or expired reset token")
)
