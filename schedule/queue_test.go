package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrictPriorityOrdering(t *testing.T) {
	q := NewQueue(0)
	q.Enqueue(PriorityFile, []byte("file"))
	q.Enqueue(PriorityControl, []byte("control"))
	q.Enqueue(PriorityText, []byte("text"))
	q.Enqueue(PriorityVoice, []byte("voice"))

	order := []Priority{}
	for {
		it, ok := q.Dequeue()
		if !ok {
			break
		}
		order = append(order, it.Priority)
	}
	assert.Equal(t, []Priority{PriorityControl, PriorityVoice, PriorityText, PriorityFile}, order)
}

func TestFIFOWithinPriorityClass(t *testing.T) {
	q := NewQueue(0)
	q.Enqueue(PriorityText, []byte("first"))
	q.Enqueue(PriorityText, []byte("second"))
	q.Enqueue(PriorityText, []byte("third"))

	it1, _ := q.Dequeue()
	it2, _ := q.Dequeue()
	it3, _ := q.Dequeue()
	assert.Equal(t, []byte("first"), it1.Payload)
	assert.Equal(t, []byte("second"), it2.Payload)
	assert.Equal(t, []byte("third"), it3.Payload)
}

func TestOverflowShedsLowestPriorityTail(t *testing.T) {
	q := NewQueue(2)
	assert.True(t, q.Enqueue(PriorityText, []byte("a")))
	assert.True(t, q.Enqueue(PriorityText, []byte("b")))

	// Queue full of equal-priority items; a new FILE-priority item is no
	// better than the existing tail, so the incoming item is the one shed.
	ok := q.Enqueue(PriorityFile, []byte("c"))
	assert.False(t, ok)
	assert.Equal(t, uint64(1), q.Shed())
	assert.Equal(t, 2, q.Len())

	// A higher-priority arrival evicts the existing tail to make room.
	ok = q.Enqueue(PriorityControl, []byte("d"))
	assert.True(t, ok)
	assert.Equal(t, 2, q.Len())
}

func TestDequeueEmptyQueue(t *testing.T) {
	q := NewQueue(0)
	_, ok := q.Dequeue()
	require.False(t, ok)
}
