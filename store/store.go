// Package store and its subpackages provide session storage for use by web
// session middleware.
//
// A Store never reports failures to its caller: reads that cannot be served
// (missing key, unreachable backend, malformed stored data) all yield a nil
// session, and writes are best-effort. Failure details are only available via
// the Store's logger.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSessionNotFound indicates that the provided SID does not map to any
	// stored session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidSessionData indicates that the provided session data is
	// invalid, and cannot be used. For example, this may occur if it cannot be
	// successfully marshalled to JSON.
	ErrInvalidSessionData = errors.New("invalid session data")
	// ErrInvalidStoredSessionData indicates that the session data fetched from
	// storage is invalid, and cannot be used. For example, this may occur if it
	// cannot be successfully unmarshalled.
	ErrInvalidStoredSessionData = errors.New("invalid stored session data")
	// ErrStoreClosed indicates that an operation was attempted after the store
	// was shut down.
	ErrStoreClosed = errors.New("store closed")
)

// NoExpiration may be passed as the TTL to Set to store a session that never
// expires.
const NoExpiration = time.Duration(0)

// Payload is the canonical session payload: a mapping of string keys to
// JSON-compatible values.
type Payload = map[string]any

// Store represents an abstract session storage object. See the redis and
// memory subpackages for concrete implementations thereof.
type Store[S any] interface {
	// Get returns the session data for the provided SID, or nil if none is
	// available for any reason.
	Get(ctx context.Context, sid string) *S
	// Set stores the session data for the provided SID. A positive TTL is
	// rounded up to whole seconds; otherwise the session does not expire.
	Set(ctx context.Context, sid string, s *S, ttl time.Duration)
	// Destroy removes the session data for the provided SID, if any.
	Destroy(ctx context.Context, sid string)
	// Quit releases the underlying connection.
	Quit()
	// End is the authoritative shutdown entry point. It may be called more
	// than once.
	End()
}

// ExpirySeconds converts ttl to the whole number of seconds used as the
// backend expiry, rounding up so that the effective expiry is never shorter
// than requested. Non-positive TTLs yield 0 (no expiry).
func ExpirySeconds(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	secs := int64(ttl / time.Second)
	if ttl%time.Second != 0 {
		secs++
	}
	return secs
}
