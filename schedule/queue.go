// Package schedule implements the egress path's strict-priority queue and
// token-bucket bandwidth scheduler.
package schedule

import (
	"container/heap"
	"sync"

	"github.com/silentmesh/mesh/internal/metrics"
)

// Priority orders outbound traffic classes. Higher values are serviced
// first: CONTROL > VOICE > TEXT > FILE.
type Priority uint8

const (
	PriorityFile Priority = iota
	PriorityText
	PriorityVoice
	PriorityControl
)

func (p Priority) String() string {
	switch p {
	case PriorityFile:
		return "file"
	case PriorityText:
		return "text"
	case PriorityVoice:
		return "voice"
	case PriorityControl:
		return "control"
	default:
		return "unknown"
	}
}

// Item is a queued outbound payload awaiting transmission.
type Item struct {
	Priority Priority
	Payload  []byte
	seq      uint64 // insertion order, for FIFO within a priority class
	index    int    // heap bookkeeping
}

// priorityHeap orders Items by Priority descending, then seq ascending
// (FIFO within a class).
type priorityHeap []*Item

func (h priorityHeap) Len() int { return len(h) }
func (h priorityHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].seq < h[j].seq
}
func (h priorityHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *priorityHeap) Push(x any) {
	it := x.(*Item)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// Queue is a bounded, strict-priority FIFO queue. When full, the lowest
// priority item at the tail of its class is shed to make room and the
// drop is reported via Shed().
type Queue struct {
	mu       sync.Mutex
	heap     priorityHeap
	capacity int
	nextSeq  uint64
	shed     uint64
}

// NewQueue constructs a Queue bounded to capacity items. A non-positive
// capacity means unbounded.
func NewQueue(capacity int) *Queue {
	q := &Queue{capacity: capacity}
	heap.Init(&q.heap)
	return q
}

// Enqueue adds item. If the queue is at capacity, the lowest-priority,
// most-recently-queued item with priority lower than item's is evicted to
// make room; if item itself is the lowest priority present (ties included)
// and the queue is full, item is dropped instead. Returns false when item was
// dropped rather than enqueued.
func (q *Queue) Enqueue(priority Priority, payload []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.capacity > 0 && len(q.heap) >= q.capacity {
		victim := q.lowestPriorityIndex()
		if q.heap[victim].Priority >= priority {
			q.shed++
			metrics.ScheduleShed.WithLabelValues(priority.String()).Inc()
			return false
		}
		victimPriority := q.heap[victim].Priority
		q.removeAt(victim)
		q.shed++
		metrics.ScheduleShed.WithLabelValues(victimPriority.String()).Inc()
	}

	it := &Item{Priority: priority, Payload: payload, seq: q.nextSeq}
	q.nextSeq++
	heap.Push(&q.heap, it)
	return true
}

// Dequeue removes and returns the highest-priority, oldest item. O(log n).
func (q *Queue) Dequeue() (*Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.heap) == 0 {
		return nil, false
	}
	it := heap.Pop(&q.heap).(*Item)
	return it, true
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// Shed returns the cumulative count of items dropped due to overflow, for
// metrics reporting.
func (q *Queue) Shed() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.shed
}

// lowestPriorityIndex finds the heap slot holding the lowest-priority,
// most-recently-enqueued item (the "tail" of the weakest class).
func (q *Queue) lowestPriorityIndex() int {
	worst := 0
	for i := 1; i < len(q.heap); i++ {
		c := q.heap[i]
		w := q.heap[worst]
		if c.Priority < w.Priority || (c.Priority == w.Priority && c.seq > w.seq) {
			worst = i
		}
	}
	return worst
}

func (q *Queue) removeAt(i int) {
	heap.Remove(&q.heap, i)
}
