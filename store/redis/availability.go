package redis

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/exp/slog"
)

// connState tracks the last-known health of the connection. It is updated
// only from connection events observed by connHook (and by Quit), and read by
// Store.Available.
type connState struct {
	log       *slog.Logger
	available atomic.Bool

	mu    sync.Mutex // serializes transitions
	ended bool
}

func (cs *connState) connected() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.ended {
		return
	}
	if !cs.available.Swap(true) {
		cs.log.Info("Redis connected")
	}
}

func (cs *connState) failed(err error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.available.Swap(false) {
		cs.log.Warn("Redis connection unavailable", "error", err)
		return
	}
	cs.log.Debug("Redis connection error", "error", err)
}

func (cs *connState) end() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.ended = true
	cs.available.Store(false)
	cs.log.Info("Redis ended")
}

// observe classifies the outcome of a command. Replies from the server,
// including nil replies and server-side errors, prove the connection is
// alive. Caller cancellation says nothing either way.
func (cs *connState) observe(err error) {
	switch {
	case err == nil:
		cs.connected()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	case isServerReply(err):
		cs.connected()
	default:
		cs.failed(err)
	}
}

func isServerReply(err error) bool {
	var rerr goredis.Error
	return errors.As(err, &rerr)
}

// isAuthError reports whether err is the server rejecting the connection's
// credentials, which retrying cannot fix.
func isAuthError(err error) bool {
	if !isServerReply(err) {
		return false
	}
	msg := err.Error()
	for _, p := range []string{"NOAUTH", "WRONGPASS", "ERR invalid password"} {
		if strings.HasPrefix(msg, p) {
			return true
		}
	}
	return false
}

// connHook is a go-redis Hook translating dial and command outcomes into
// connect / error events on a connState.
type connHook struct {
	state *connState
}

var _ goredis.Hook = connHook{}

func (h connHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.state.failed(err)
		} else {
			h.state.connected()
		}
		return conn, err
	}
}

func (h connHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		err := next(ctx, cmd)
		h.state.observe(err)
		return err
	}
}

func (h connHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		err := next(ctx, cmds)
		h.state.observe(err)
		return err
	}
}
