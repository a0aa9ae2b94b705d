package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanSendWithinBudget(t *testing.T) {
	b := NewBandwidth(100)
	assert.True(t, b.CanSend(50))
	assert.True(t, b.CanSend(100))
}

func TestRecordSentDepletesBudget(t *testing.T) {
	b := NewBandwidth(100)
	b.RecordSent(90)
	assert.False(t, b.CanSend(50))
}

func TestWaitBlocksUntilRefill(t *testing.T) {
	b := NewBandwidth(100)
	b.RecordSent(100)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	err := b.Wait(ctx, 10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	b := NewBandwidth(1) // tiny budget, refill will take a long time
	b.RecordSent(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := b.Wait(ctx, 1000)
	assert.Error(t, err)
}
