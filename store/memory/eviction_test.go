package memory

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestExpiryQueue(t *testing.T) {
	now := time.Now()
	testCases := []struct {
		name      string
		schedule  []deadline
		at        time.Time
		want      []string
		remaining int
	}{
		{
			name: "in order",
			schedule: []deadline{
				{key: "a", at: now.Add(time.Minute)},
				{key: "b", at: now.Add(2 * time.Minute)},
				{key: "c", at: now.Add(3 * time.Minute)},
			},
			at:   now.Add(time.Hour),
			want: []string{"a", "b", "c"},
		},
		{
			name: "out of order",
			schedule: []deadline{
				{key: "b", at: now.Add(2 * time.Minute)},
				{key: "c", at: now.Add(3 * time.Minute)},
				{key: "a", at: now.Add(time.Minute)},
			},
			at:   now.Add(time.Hour),
			want: []string{"a", "b", "c"},
		},
		{
			name: "partial",
			schedule: []deadline{
				{key: "c", at: now.Add(3 * time.Minute)},
				{key: "a", at: now.Add(time.Minute)},
				{key: "b", at: now.Add(2 * time.Minute)},
			},
			at:        now.Add(2 * time.Minute),
			want:      []string{"a", "b"},
			remaining: 1,
		},
		{
			name: "duplicate keys",
			schedule: []deadline{
				{key: "a", at: now.Add(2 * time.Minute)},
				{key: "a", at: now.Add(time.Minute)},
			},
			at:   now.Add(time.Hour),
			want: []string{"a", "a"},
		},
		{
			name:     "due at deadline",
			schedule: []deadline{{key: "a", at: now}},
			at:       now,
			want:     []string{"a"},
		},
		{
			name:      "none due",
			schedule:  []deadline{{key: "a", at: now.Add(time.Minute)}},
			at:        now,
			remaining: 1,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q := newExpiryQueue()
			for _, d := range tc.schedule {
				q.schedule(d.key, d.at)
			}
			var keys []string
			q.expire(tc.at, func(d deadline) {
				keys = append(keys, d.key)
			})
			if diff := cmp.Diff(tc.want, keys); diff != "" {
				t.Errorf("expire() visited incorrect key sequence (+got, -want):\n%s", diff)
			}
			if got, want := q.len(), tc.remaining; got != want {
				t.Errorf("len() = %d, want %d", got, want)
			}
		})
	}
}
