package gsession

import "errors"

// Errors surfaced across the Facade and eviction paths. Everything else
// in the error taxonomy (TransportReject, DecodeError, RouteMiss,
// ClaimMiss, SendWouldBlock) is handled inline via logging and never
// propagated — see SPEC_FULL.md §7.
var (
	// ErrUserNotFound is returned by Facade lookups when no session
	// matches the requested account id or name.
	ErrUserNotFound = errors.New("gsession: user not found")

	// ErrRemoteUpdateFailed wraps a Bridge.UpdateUserData failure.
	ErrRemoteUpdateFailed = errors.New("gsession: remote update failed")

	// ErrEvictionTimeout is returned by EvictDuplicateLogin when the
	// target session does not finish cleanup within the timeout.
	ErrEvictionTimeout = errors.New("gsession: timed out waiting for the thread to disconnect")
)
