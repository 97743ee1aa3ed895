package sched

import (
	"container/heap"
	"time"

	"dealcaster/internal/model"
)

// jobKey identifies one scheduled post. Qualifying by hour keeps keys from
// colliding with the previous hour's still-firing jobs.
type jobKey struct {
	ProductID string
	Hour      int64 // absolute hour index (unix time / 3600)
	Index     int
}

type job struct {
	key     jobKey
	product model.Product
	score   float64
	fireAt  time.Time

	heapIndex int
	cancelled bool
}

// timerQueue is a min-heap of jobs ordered by fire time, with keyed
// replacement: scheduling an existing key cancels the prior registration.
// Cancelled entries are dropped lazily on pop. Not goroutine-safe; callers
// hold the dispatcher lock.
type timerQueue struct {
	heap  jobHeap
	byKey map[jobKey]*job
}

func newTimerQueue() *timerQueue {
	return &timerQueue{byKey: make(map[jobKey]*job)}
}

// Schedule registers a job, replacing any pending job with the same key.
func (q *timerQueue) Schedule(j *job) {
	if prev, ok := q.byKey[j.key]; ok {
		prev.cancelled = true
	}
	q.byKey[j.key] = j
	heap.Push(&q.heap, j)
}

// Peek returns the earliest pending job without removing it, or nil.
func (q *timerQueue) Peek() *job {
	q.dropCancelled()
	if len(q.heap) == 0 {
		return nil
	}
	return q.heap[0]
}

// Pop removes and returns the earliest pending job, or nil.
func (q *timerQueue) Pop() *job {
	q.dropCancelled()
	if len(q.heap) == 0 {
		return nil
	}
	j := heap.Pop(&q.heap).(*job)
	delete(q.byKey, j.key)
	return j
}

// Len counts pending (non-cancelled) jobs.
func (q *timerQueue) Len() int {
	return len(q.byKey)
}

// Clear cancels every pending job and reports how many were dropped.
func (q *timerQueue) Clear() int {
	n := len(q.byKey)
	for _, j := range q.byKey {
		j.cancelled = true
	}
	q.byKey = make(map[jobKey]*job)
	return n
}

func (q *timerQueue) dropCancelled() {
	for len(q.heap) > 0 && q.heap[0].cancelled {
		heap.Pop(&q.heap)
	}
}

type jobHeap []*job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool { return h[i].fireAt.Before(h[j].fireAt) }

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *jobHeap) Push(x any) {
	j := x.(*job)
	j.heapIndex = len(*h)
	*h = append(*h, j)
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return j
}
