package memory

import (
	"container/heap"
	"time"
)

// deadline records when a key was scheduled to expire. A key may have several
// deadlines queued if it was overwritten; only the one matching the stored
// item is live.
type deadline struct {
	key string
	at  time.Time
}

type deadlineHeap []deadline

func (h deadlineHeap) Len() int           { return len(h) }
func (h deadlineHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h deadlineHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *deadlineHeap) Push(e any) {
	*h = append(*h, e.(deadline))
}

func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	d := old[n-1]
	*h = old[:n-1]
	return d
}

// expiryQueue orders key deadlines so that the soonest is always at the front.
type expiryQueue struct {
	h deadlineHeap
}

func newExpiryQueue() *expiryQueue {
	return &expiryQueue{}
}

func (q *expiryQueue) schedule(key string, at time.Time) {
	heap.Push(&q.h, deadline{key: key, at: at})
}

func (q *expiryQueue) len() int {
	return q.h.Len()
}

// expire pops every deadline at or before now, calling fn for each in
// deadline order.
func (q *expiryQueue) expire(now time.Time, fn func(d deadline)) {
	for len(q.h) > 0 && !now.Before(q.h[0].at) {
		fn(heap.Pop(&q.h).(deadline))
	}
}
