// Package queue implements the in-memory priority queue of spec §4.7: a
// min-heap ordered by (priority, enqueue_time), thread-safe, supporting a
// blocking pop with timeout so the dispatcher's worker loop can poll
// without busy-waiting while still reacting promptly to shutdown. No
// priority-queue library appears anywhere in the retrieval pack; the
// standard library's container/heap is the idiomatic Go shape for exactly
// this structure, so it is used directly rather than reached past.
package queue

import (
	"container/heap"
	"sync"
	"time"
)

// Item is one queued admission: the job_id plus the fields the heap orders
// on.
type Item struct {
	JobID       string
	Priority    int
	EnqueueTime time.Time
}

// innerHeap implements heap.Interface ordered by (priority ASC,
// enqueue_time ASC).
type innerHeap []Item

func (h innerHeap) Len() int { return len(h) }
func (h innerHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].EnqueueTime.Before(h[j].EnqueueTime)
}
func (h innerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *innerHeap) Push(x any) { *h = append(*h, x.(Item)) }

func (h *innerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Queue is a thread-safe priority queue of job admissions.
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond
	h    innerHeap
}

// New constructs an empty Queue.
func New() *Queue {
	q := &Queue{h: make(innerHeap, 0)}
	q.cond = sync.NewCond(&q.mu)
	heap.Init(&q.h)
	return q
}

// Push admits one job at the given priority and enqueue time, waking any
// blocked Pop.
func (q *Queue) Push(jobID string, priority int, enqueueTime time.Time) {
	q.mu.Lock()
	heap.Push(&q.h, Item{JobID: jobID, Priority: priority, EnqueueTime: enqueueTime})
	q.mu.Unlock()
	q.cond.Signal()
}

// Pop removes and returns the head item, blocking up to timeout for one to
// become available. ok is false if timeout elapsed with nothing to pop.
func (q *Queue) Pop(timeout time.Duration) (item Item, ok bool) {
	deadline := time.Now().Add(timeout)

	q.mu.Lock()
	defer q.mu.Unlock()
	for q.h.Len() == 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Item{}, false
		}
		timer := time.AfterFunc(remaining, func() {
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		})
		q.cond.Wait()
		timer.Stop()
		if time.Now().After(deadline) && q.h.Len() == 0 {
			return Item{}, false
		}
	}
	return heap.Pop(&q.h).(Item), true
}

// Size returns the current number of queued items.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.h.Len()
}

// Drain removes and returns every queued item in pop order (priority ASC,
// enqueue_time ASC), emptying the queue. Used at shutdown; drained jobs
// are not written anywhere, they stay pending in the store for the next
// boot.
func (q *Queue) Drain() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := make([]Item, 0, q.h.Len())
	for q.h.Len() > 0 {
		items = append(items, heap.Pop(&q.h).(Item))
	}
	return items
}

// Snapshot returns a copy of every queued item in pop order without
// removing them, so callers can advisorily renumber queue_position in the
// store after a push, per spec §4.7.
func (q *Queue) Snapshot() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	cp := make(innerHeap, len(q.h))
	copy(cp, q.h)
	heap.Init(&cp)
	ordered := make([]Item, 0, len(cp))
	for cp.Len() > 0 {
		ordered = append(ordered, heap.Pop(&cp).(Item))
	}
	return ordered
}
