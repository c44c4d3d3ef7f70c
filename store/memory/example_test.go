package memory_test

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/swfrench/simple-session-store/store"
	"github.com/swfrench/simple-session-store/store/memory"
	"golang.org/x/exp/slog"
)

func ExampleStore() {
	ctx := context.Background()
	ss := memory.New(&memory.Options[store.Payload]{
		KeyPrefix: "sess:",
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	defer ss.End()
	now := time.Now()
	ss.Clock = func() time.Time { return now }

	ss.Set(ctx, "abc123", &store.Payload{"user": "alice"}, 1500*time.Millisecond)
	s := ss.Get(ctx, "abc123")
	fmt.Println((*s)["user"])

	ttl, _ := ss.TTL("abc123")
	fmt.Println(ttl)

	ss.Destroy(ctx, "abc123")
	fmt.Println(ss.Get(ctx, "abc123") == nil)
	// Output:
	// alice
	// 2s
	// true
}
