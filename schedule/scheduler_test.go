package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerDequeuesHighestPriorityFirst(t *testing.T) {
	q := NewQueue(0)
	b := NewBandwidth(1 << 20)
	s := NewScheduler(q, b)

	s.Enqueue(PriorityText, []byte("text"))
	s.Enqueue(PriorityControl, []byte("control"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	it, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, PriorityControl, it.Priority)
}

func TestSchedulerWaitsForBandwidth(t *testing.T) {
	q := NewQueue(0)
	b := NewBandwidth(10)
	b.RecordSent(10)
	s := NewScheduler(q, b)
	s.Enqueue(PriorityText, make([]byte, 5))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	_, err := s.Next(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}
