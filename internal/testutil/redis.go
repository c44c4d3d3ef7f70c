// Package testutil provides helpers shared by store tests.
package testutil

import (
	"net"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// RedisBundle bundles together a miniredis instance and a Redis client used to
// inspect it independently of any store under test.
type RedisBundle struct {
	mr *miniredis.Miniredis
	rc *redis.Client
}

// MustCreateRedisBundle returns a new RedisBundle.
func MustCreateRedisBundle(t *testing.T) *RedisBundle {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return &RedisBundle{mr: mr, rc: rc}
}

// Client returns the inspection Redis client.
func (rb *RedisBundle) Client() *redis.Client {
	return rb.rc
}

// Miniredis returns the underlying miniredis instance.
func (rb *RedisBundle) Miniredis() *miniredis.Miniredis {
	return rb.mr
}

// Addr returns the miniredis address.
func (rb *RedisBundle) Addr() string {
	return rb.mr.Addr()
}

// MustHostPort splits the miniredis address into host and port.
func (rb *RedisBundle) MustHostPort(t *testing.T) (string, int) {
	host, p, err := net.SplitHostPort(rb.mr.Addr())
	if err != nil {
		t.Fatalf("Unexpected error splitting miniredis address %q: %v", rb.mr.Addr(), err)
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		t.Fatalf("Unexpected error parsing miniredis port %q: %v", p, err)
	}
	return host, port
}

// NewClient returns a new single-node client connected to miniredis. The
// caller owns the client.
func (rb *RedisBundle) NewClient() *redis.Client {
	return redis.NewClient(&redis.Options{Addr: rb.mr.Addr()})
}

// NewClusterClient returns a new cluster client for miniredis, which presents
// itself as a single-node cluster owning every slot. The caller owns the
// client.
func (rb *RedisBundle) NewClusterClient() *redis.ClusterClient {
	return redis.NewClusterClient(&redis.ClusterOptions{Addrs: []string{rb.mr.Addr()}})
}

// MustSetRaw stores val at key, bypassing any store.
func (rb *RedisBundle) MustSetRaw(t *testing.T, key, val string) {
	if err := rb.mr.Set(key, val); err != nil {
		t.Fatalf("Unexpected error initializing Redis: %v", err)
	}
}

// Close shuts down the inspection client and miniredis instance.
func (rb *RedisBundle) Close() {
	rb.rc.Close()
	rb.mr.Close()
}
