package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors for the auth failure modes. Callers match them with
// errors.Is; the concrete error in the chain is usually an *Error carrying
// the operation and athlete id.
var (
	// ErrInvalidArgument means the caller passed bad input (empty scopes,
	// malformed redirect URL, blank refresh token).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotConfigured means there is no credential source at all: nothing
	// cached and no store configured.
	ErrNotConfigured = errors.New("no credential source configured")

	// ErrInvalidCredential means a stored credential is structurally broken,
	// e.g. it has no access token.
	ErrInvalidCredential = errors.New("stored credential is invalid")

	// ErrUnrefreshable means the credential is expired and carries no
	// refresh token to renew it with.
	ErrUnrefreshable = errors.New("credential expired and not refreshable")

	// ErrRemoteRejected means Strava rejected a token exchange, e.g. the
	// refresh token was revoked.
	ErrRemoteRejected = errors.New("token exchange rejected")

	// ErrNetwork means a token exchange failed at the transport level before
	// any response arrived.
	ErrNetwork = errors.New("token exchange transport failure")

	// ErrMalformedResponse means the token endpoint returned success but the
	// response is missing required fields. This is a protocol violation and
	// is never retried.
	ErrMalformedResponse = errors.New("malformed token response")

	// ErrMissingCode means the authorization redirect carried no code.
	ErrMissingCode = errors.New("authorization code missing from redirect")

	// ErrMissingScope means the authorization redirect carried no scope.
	ErrMissingScope = errors.New("scope missing from redirect")

	// ErrUnknownScope means the authorization redirect carried a scope token
	// this client does not recognize.
	ErrUnknownScope = errors.New("unknown scope in redirect")

	// ErrTimeout means no redirect arrived before the listener's deadline.
	ErrTimeout = errors.New("timed out waiting for redirect")

	// ErrStoreWrite means a refreshed credential could not be persisted.
	// It is surfaced rather than swallowed: a lost refreshed token causes
	// redundant refreshes on every later call.
	ErrStoreWrite = errors.New("credential store write failed")
)

// Error wraps an auth failure with the operation and athlete it concerns.
// Error text never includes token values.
type Error struct {
	Op        string
	AthleteID int64
	Err       error
}

func (e *Error) Error() string {
	if e.AthleteID != 0 {
		return fmt.Sprintf("%s (athlete %d): %v", e.Op, e.AthleteID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
