package store

import (
	"context"
	"testing"
	"time"

	mesherrs "github.com/silentmesh/mesh/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quotaCfg() QuotaConfig {
	return QuotaConfig{MaxBytes: 100, WarningRatio: 0.8, CriticalRatio: 0.95, EvictionTargetRatio: 0.5}
}

func TestStatusTransitionsFireOnWarningOnEdgeOnly(t *testing.T) {
	ctx := context.Background()
	e := NewMemoryEngine()
	var seen []QuotaStatus
	q := NewQuotaManager(quotaCfg(), e, func(s QuotaStatus) { seen = append(seen, s) })

	_, err := q.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, seen, "OK -> OK is not a transition")

	require.NoError(t, e.Store(ctx, &Message{ID: "a", SizeBytes: 85, CreatedAt: time.Now()}))
	_, err = q.Status(ctx)
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, QuotaWarning, seen[0])

	_, err = q.Status(ctx)
	require.NoError(t, err)
	assert.Len(t, seen, 1, "repeated same-status calls must not re-fire")
}

func TestEnsureRoomEvictsUntilRoomAvailable(t *testing.T) {
	ctx := context.Background()
	e := NewMemoryEngine()
	q := NewQuotaManager(quotaCfg(), e, nil)
	e.SetQuotaManager(q)

	require.NoError(t, e.Store(ctx, &Message{
		ID: "relay1", Priority: PriorityLow, Status: StatusDelivered, SizeBytes: 60, CreatedAt: time.Now().Add(-time.Hour),
	}))

	require.NoError(t, e.Store(ctx, &Message{ID: "new", SizeBytes: 50, CreatedAt: time.Now()}))

	_, err := e.Get(ctx, "relay1")
	assert.Error(t, err, "relay1 should have been evicted to make room")
}

func TestEnsureRoomReturnsQuotaExceededWhenUnevictable(t *testing.T) {
	ctx := context.Background()
	e := NewMemoryEngine()
	q := NewQuotaManager(quotaCfg(), e, nil)

	require.NoError(t, e.Store(ctx, &Message{
		ID: "own", IsOwnMessage: true, Status: StatusPending, SizeBytes: 90, CreatedAt: time.Now(),
	}))

	err := q.EnsureRoom(ctx, 50)
	assert.ErrorIs(t, err, mesherrs.ErrQuotaExceeded)
}

func TestSweepOnlyEvictsWhenCriticalOrFull(t *testing.T) {
	ctx := context.Background()
	e := NewMemoryEngine()
	q := NewQuotaManager(quotaCfg(), e, nil)

	require.NoError(t, e.Store(ctx, &Message{
		ID: "relay1", Priority: PriorityLow, Status: StatusDelivered, SizeBytes: 85, CreatedAt: time.Now(),
	}))

	require.NoError(t, q.Sweep(ctx))
	_, err := e.Get(ctx, "relay1")
	assert.NoError(t, err, "WARNING status must not trigger eviction")
}

func TestSweepEvictsDownToTargetWhenCritical(t *testing.T) {
	ctx := context.Background()
	e := NewMemoryEngine()
	q := NewQuotaManager(quotaCfg(), e, nil)
	now := time.Now()

	require.NoError(t, e.Store(ctx, &Message{ID: "old", Priority: PriorityLow, Status: StatusDelivered, SizeBytes: 50, CreatedAt: now.Add(-2 * time.Hour)}))
	require.NoError(t, e.Store(ctx, &Message{ID: "new", Priority: PriorityLow, Status: StatusDelivered, SizeBytes: 48, CreatedAt: now.Add(-time.Hour)}))

	require.NoError(t, q.Sweep(ctx))

	used, err := e.UsedBytes(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, used, int64(50))

	_, err = e.Get(ctx, "old")
	assert.Error(t, err, "oldest LOW message should be evicted first")
}
