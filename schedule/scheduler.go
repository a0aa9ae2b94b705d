package schedule

import (
	"context"
	"time"
)

// Scheduler serializes priority-ordered dequeue against the bandwidth
// budget: Next blocks (without spinning) until both an item is queued and
// enough budget exists to send it.
type Scheduler struct {
	queue     *Queue
	bandwidth *Bandwidth
}

// NewScheduler builds a Scheduler over queue and bandwidth.
func NewScheduler(queue *Queue, bandwidth *Bandwidth) *Scheduler {
	return &Scheduler{queue: queue, bandwidth: bandwidth}
}

// Enqueue offers payload at priority p to the underlying queue.
func (s *Scheduler) Enqueue(p Priority, payload []byte) bool {
	return s.queue.Enqueue(p, payload)
}

// Next pops the highest-priority item, waits for enough bandwidth budget
// to send its payload, records the spend, and returns it. It blocks the
// calling goroutine but never busy-spins; ctx cancellation unblocks it.
func (s *Scheduler) Next(ctx context.Context) (*Item, error) {
	for {
		it, ok := s.queue.Dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}
		if err := s.bandwidth.Wait(ctx, len(it.Payload)); err != nil {
			return nil, err
		}
		return it, nil
	}
}

// Shed reports the number of items dropped by the queue due to overflow.
func (s *Scheduler) Shed() uint64 { return s.queue.Shed() }

var errNoItem = &emptyQueueError{}

type emptyQueueError struct{}

func (*emptyQueueError) Error() string { return "schedule: queue is empty" }
