package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/swfrench/simple-session-store/internal/testutil"
	"golang.org/x/exp/slog"
)

func newTestConnState() *connState {
	return &connState{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestConnStateObserve(t *testing.T) {
	rb := testutil.MustCreateRedisBundle(t)
	defer rb.Close()
	serverErr := rb.Client().Do(context.Background(), "NOSUCHCOMMAND").Err()
	if serverErr == nil {
		t.Fatal("Do(NOSUCHCOMMAND) unexpectedly succeeded")
	}
	nilErr := rb.Client().Get(context.Background(), "missing").Err()
	if nilErr == nil {
		t.Fatal("Get(missing) unexpectedly succeeded")
	}

	testCases := []struct {
		name  string
		start bool
		err   error
		want  bool
	}{
		{name: "success marks available", start: false, err: nil, want: true},
		{name: "nil reply marks available", start: false, err: nilErr, want: true},
		{name: "server error marks available", start: false, err: serverErr, want: true},
		{name: "connectivity error marks unavailable", start: true, err: errors.New("dial tcp: connection refused"), want: false},
		{name: "wrapped canceled is neutral (up)", start: true, err: fmt.Errorf("op: %w", context.Canceled), want: true},
		{name: "deadline is neutral (down)", start: false, err: context.DeadlineExceeded, want: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cs := newTestConnState()
			cs.available.Store(tc.start)
			cs.observe(tc.err)
			if got := cs.available.Load(); got != tc.want {
				t.Errorf("observe(%v) left available = %t, want %t", tc.err, got, tc.want)
			}
		})
	}
}

func TestConnStateEnd(t *testing.T) {
	cs := newTestConnState()
	cs.connected()
	if !cs.available.Load() {
		t.Fatal("connected() did not mark available")
	}
	cs.end()
	if cs.available.Load() {
		t.Error("end() did not mark unavailable")
	}
	cs.connected()
	if cs.available.Load() {
		t.Error("connected() after end() marked available")
	}
}

func TestConnStateEndRacesConnected(t *testing.T) {
	for i := 0; i < 100; i++ {
		cs := newTestConnState()
		start := make(chan struct{})
		var wg sync.WaitGroup
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for k := 0; k < 50; k++ {
					cs.connected()
				}
			}()
		}
		close(start)
		cs.end()
		wg.Wait()
		if cs.available.Load() {
			t.Fatalf("connected() racing end() left available = true (iteration %d)", i)
		}
	}
}

func TestIsAuthError(t *testing.T) {
	rb := testutil.MustCreateRedisBundle(t)
	defer rb.Close()
	serverErr := rb.Client().Do(context.Background(), "NOSUCHCOMMAND").Err()
	rb.Miniredis().RequireAuth("hunter2")
	unauthenticated := rb.NewClient()
	defer unauthenticated.Close()
	noAuth := unauthenticated.Ping(context.Background()).Err()
	wrongPass := unauthenticated.Do(context.Background(), "AUTH", "nope").Err()

	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "NOAUTH", err: noAuth, want: true},
		{name: "WRONGPASS", err: wrongPass, want: true},
		{name: "other server error", err: serverErr, want: false},
		{name: "connectivity error", err: errors.New("NOAUTH lookalike from dial"), want: false},
		{name: "nil", err: nil, want: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isAuthError(tc.err); got != tc.want {
				t.Errorf("isAuthError(%v) = %t, want %t", tc.err, got, tc.want)
			}
		})
	}
}

func TestConnHookDial(t *testing.T) {
	cs := newTestConnState()
	h := connHook{state: cs}
	dialErr := errors.New("connection refused")
	failing := h.DialHook(func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, dialErr
	})
	succeeding := h.DialHook(func(ctx context.Context, network, addr string) (net.Conn, error) {
		c, _ := net.Pipe()
		return c, nil
	})

	conn, err := succeeding(context.Background(), "tcp4", "127.0.0.1:6379")
	if err != nil {
		t.Fatalf("DialHook() returned unexpected error: %v", err)
	}
	conn.Close()
	if !cs.available.Load() {
		t.Error("successful dial did not mark available")
	}
	if _, err := failing(context.Background(), "tcp4", "127.0.0.1:6379"); !errors.Is(err, dialErr) {
		t.Errorf("DialHook() returned unexpected error - got: %v, want: %v", err, dialErr)
	}
	if cs.available.Load() {
		t.Error("failed dial did not mark unavailable")
	}
}
