// Package memory provides an in-memory session Store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/swfrench/simple-session-store/store"
	"golang.org/x/exp/slog"
)

type item struct {
	val     string
	expires time.Time // zero: never
}

// Options represents tunable knobs that control the behavior of Store.
type Options[S any] struct {
	// KeyPrefix is prepended to every SID to form its key.
	// Default if unspecified: ""
	KeyPrefix string
	// Serialize converts sessions to their stored form.
	// Default if unspecified: JSON
	Serialize store.SerializeFunc[S]
	// Deserialize converts stored values back into sessions.
	// Default if unspecified: JSON
	Deserialize store.DeserializeFunc[S]
	// Logger receives all diagnostics.
	// Default if unspecified: slog.Default()
	Logger *slog.Logger
}

// Store is a simple in-memory session store, for use in tests or where an
// external store is not available. It honors the same contract as the Redis
// store: sessions are stored in serialized form (so callers always receive
// copies), TTLs are rounded up to whole seconds, and failures are logged
// rather than returned.
//
// Eviction: Expired sessions are garbage collected on entry to any Store
// method.
type Store[S any] struct {
	// Clock can be overridden in tests (e.g., to test eviciton logic).
	Clock     func() time.Time
	mu        sync.Mutex
	items     map[string]item
	evictions *expiryQueue
	closed    bool
	prefix    string
	codec     store.Codec[S]
	log       *slog.Logger
}

var _ store.Store[store.Payload] = (*Store[store.Payload])(nil)

// New returns a new Store instance configured by opts, which may be nil.
func New[S any](opts *Options[S]) *Store[S] {
	if opts == nil {
		opts = &Options[S]{}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Store[S]{
		Clock:     func() time.Time { return time.Now() },
		items:     make(map[string]item),
		evictions: newExpiryQueue(),
		prefix:    opts.KeyPrefix,
		codec:     store.NewCodec(opts.Serialize, opts.Deserialize),
		log:       log,
	}
}

func (ms *Store[S]) key(sid string) string {
	return ms.prefix + sid
}

func (ms *Store[S]) evict(t time.Time) {
	ms.evictions.expire(t, func(d deadline) {
		// Skip stale deadlines left behind by overwrites and deletes.
		if it, ok := ms.items[d.key]; ok && it.expires.Equal(d.at) {
			delete(ms.items, d.key)
		}
	})
}

// Get returns the stored session data associated with the provided SID, or
// nil if no usable session is stored.
func (ms *Store[S]) Get(ctx context.Context, sid string) *S {
	key := ms.key(sid)
	ms.mu.Lock()
	if ms.closed {
		ms.mu.Unlock()
		ms.log.Error("Failed to get session from memory", "key", key, "error", store.ErrStoreClosed)
		return nil
	}
	ms.evict(ms.Clock())
	it, ok := ms.items[key]
	ms.mu.Unlock()
	if !ok || it.val == "" {
		ms.log.Debug("GET session: none", "key", key, "error", store.ErrSessionNotFound)
		return nil
	}
	s, err := ms.codec.Decode(it.val)
	if err != nil {
		ms.log.Error("Failed to parse session from memory", "key", key, "error", err)
		return nil
	}
	return s
}

// Set stores the provided session data associated with the provided SID. A
// positive TTL is rounded up to whole seconds; otherwise the session does not
// expire.
func (ms *Store[S]) Set(ctx context.Context, sid string, s *S, ttl time.Duration) {
	key := ms.key(sid)
	val, err := ms.codec.Encode(s)
	if err != nil {
		ms.log.Error("Failed to store session to memory", "key", key, "error", err)
		return
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		ms.log.Error("Failed to store session to memory", "key", key, "error", store.ErrStoreClosed)
		return
	}
	t := ms.Clock()
	ms.evict(t)
	it := item{val: val}
	if secs := store.ExpirySeconds(ttl); secs > 0 {
		it.expires = t.Add(time.Duration(secs) * time.Second)
		ms.evictions.schedule(key, it.expires)
	}
	ms.items[key] = it
}

// Destroy deletes the stored session data associated with the provided SID.
func (ms *Store[S]) Destroy(ctx context.Context, sid string) {
	key := ms.key(sid)
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		ms.log.Error("Failed to delete session from memory", "key", key, "error", store.ErrStoreClosed)
		return
	}
	ms.evict(ms.Clock())
	// Note: We let the evictions entry get cleaned up lazily.
	delete(ms.items, key)
}

// TTL returns the remaining lifetime of the session associated with the
// provided SID (zero if it does not expire), and whether such a session
// exists.
func (ms *Store[S]) TTL(sid string) (time.Duration, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	t := ms.Clock()
	ms.evict(t)
	it, ok := ms.items[ms.key(sid)]
	if !ok {
		return 0, false
	}
	if it.expires.IsZero() {
		return 0, true
	}
	return it.expires.Sub(t), true
}

// Quit discards all stored sessions. Later operations are logged no-ops.
func (ms *Store[S]) Quit() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		ms.log.Debug("Memory store already closed")
		return
	}
	ms.closed = true
	ms.items = make(map[string]item)
	ms.evictions = newExpiryQueue()
}

// End shuts the store down. It may be called more than once.
func (ms *Store[S]) End() {
	ms.Quit()
	ms.log.Debug("End memory store")
}
