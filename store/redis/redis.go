// Package redis provides a Redis-backed session Store.
//
// The Store never surfaces backend failures to its caller: Get yields nil when
// a session is missing, unreadable or malformed, and Set / Destroy are
// best-effort. Connection health is tracked from go-redis dial and command
// events and is reported by Available, but operations are always attempted
// regardless of it.
package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/swfrench/simple-session-store/internal/retry"
	"github.com/swfrench/simple-session-store/store"
	"golang.org/x/exp/slog"
)

// Store is a Redis-based store for session data of type S, implementing the
// store.Store interface.
type Store[S any] struct {
	rc     goredis.UniversalClient
	prefix string
	codec  store.Codec[S]
	log    *slog.Logger
	state  *connState
	closed atomic.Bool

	stopProbe context.CancelFunc
	probeDone chan struct{}
}

var _ store.Store[store.Payload] = (*Store[store.Payload])(nil)

// New returns a new Store configured by opts, which may be nil. Unless
// opts.Client is provided, a new connection is created.
func New[S any](opts *Options[S]) *Store[S] {
	if opts == nil {
		opts = &Options[S]{}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	rc := opts.Client
	if rc == nil {
		log.Debug("Initializing new Redis client")
		rc = newClient(opts, log)
	} else {
		log.Debug("Using provided Redis client")
	}
	rs := &Store[S]{
		rc:     rc,
		prefix: opts.KeyPrefix,
		codec:  store.NewCodec(opts.Serialize, opts.Deserialize),
		log:    log,
		state:  &connState{log: log},
	}
	rc.AddHook(connHook{state: rs.state})

	attempts := opts.ConnectAttempts
	if attempts == 0 {
		attempts = defaultConnectAttempts
	}
	ctx, cancel := context.WithCancel(context.Background())
	rs.stopProbe = cancel
	rs.probeDone = make(chan struct{})
	if attempts > 0 {
		go rs.probe(ctx, attempts)
	} else {
		close(rs.probeDone)
	}
	return rs
}

// probe eagerly establishes the connection, since go-redis otherwise dials
// lazily on first use.
func (rs *Store[S]) probe(ctx context.Context, attempts int) {
	defer close(rs.probeDone)
	err := connectBackoff.Do(ctx, attempts, func(ctx context.Context, attempt int) error {
		err := rs.Ping(ctx)
		if err == nil {
			return nil
		}
		rs.log.Debug("Redis connection attempt failed", "attempt", attempt, "error", err)
		if isAuthError(err) {
			return retry.Permanent(err)
		}
		return err
	})
	switch {
	case err == nil, ctx.Err() != nil:
	case errors.Is(err, retry.ErrAborted):
		rs.log.Error("Redis rejected credentials at startup", "error", err)
	default:
		rs.log.Warn("Redis not reachable at startup", "attempts", attempts, "error", err)
	}
}

// Key returns the Redis key for the provided SID.
func (rs *Store[S]) Key(sid string) string {
	return rs.prefix + sid
}

// Client returns the underlying connection.
func (rs *Store[S]) Client() goredis.UniversalClient {
	return rs.rc
}

// Available reports the last-known health of the connection.
func (rs *Store[S]) Available() bool {
	return rs.state.available.Load()
}

// Ping checks connectivity to Redis. Unlike the session operations, it
// reports failure to the caller.
func (rs *Store[S]) Ping(ctx context.Context) error {
	return rs.rc.Ping(ctx).Err()
}

// Get returns the stored session data associated with the provided SID, or nil
// if no usable session is stored.
func (rs *Store[S]) Get(ctx context.Context, sid string) *S {
	key := rs.Key(sid)
	val, err := rs.rc.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		rs.log.Debug("GET session: none", "key", key, "error", store.ErrSessionNotFound)
		return nil
	}
	if err != nil {
		rs.log.Error("Failed to get session from Redis", "key", key, "error", err)
		return nil
	}
	if val == "" {
		rs.log.Debug("GET session: empty", "key", key)
		return nil
	}
	s, err := rs.codec.Decode(val)
	if err != nil {
		rs.log.Error("Failed to parse session from Redis", "key", key, "error", err)
		return nil
	}
	return s
}

// Set stores the provided session data associated with the provided SID. A
// positive TTL is rounded up to whole seconds (SETEX); otherwise the session
// is stored without expiry (SET). Failures are logged, not retried.
func (rs *Store[S]) Set(ctx context.Context, sid string, s *S, ttl time.Duration) {
	key := rs.Key(sid)
	val, err := rs.codec.Encode(s)
	if err != nil {
		rs.log.Error("Failed to store session to Redis", "key", key, "error", err)
		return
	}
	if secs := store.ExpirySeconds(ttl); secs > 0 {
		rs.log.Debug("SETEX", "key", key, "ttl", secs)
		err = rs.rc.SetEx(ctx, key, val, time.Duration(secs)*time.Second).Err()
	} else {
		rs.log.Debug("SET", "key", key)
		err = rs.rc.Set(ctx, key, val, 0).Err()
	}
	if err != nil {
		rs.log.Error("Failed to store session to Redis", "key", key, "error", err)
		return
	}
	rs.log.Debug("SET complete", "key", key)
}

// Destroy deletes the stored session data associated with the provided SID.
// Destroying a missing session is not an error.
func (rs *Store[S]) Destroy(ctx context.Context, sid string) {
	key := rs.Key(sid)
	rs.log.Debug("DEL", "key", key)
	if err := rs.rc.Del(ctx, key).Err(); err != nil {
		rs.log.Error("Failed to delete session from Redis", "key", key, "error", err)
		return
	}
	rs.log.Debug("DEL complete", "key", key)
}

// Quit closes the connection. Calls after the first are no-ops.
func (rs *Store[S]) Quit() {
	if rs.closed.Swap(true) {
		rs.log.Debug("Redis client already closed")
		return
	}
	rs.log.Debug("Quitting Redis client")
	rs.stopProbe()
	<-rs.probeDone
	if err := rs.rc.Close(); err != nil {
		rs.log.Error("Failed to close Redis client", "error", err)
	}
	rs.state.end()
}

// End shuts the store down. It may be called more than once.
func (rs *Store[S]) End() {
	rs.Quit()
	rs.log.Debug("End Redis client")
}
