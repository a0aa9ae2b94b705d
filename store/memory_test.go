package store

import (
	"context"
	"testing"
	"time"

	mesherrs "github.com/silentmesh/mesh/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreGetDelete(t *testing.T) {
	ctx := context.Background()
	e := NewMemoryEngine()
	m := &Message{ID: "m1", Recipient: "PEER", Payload: []byte("x"), SizeBytes: 1, CreatedAt: time.Now()}

	require.NoError(t, e.Store(ctx, m))
	got, err := e.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "PEER", got.Recipient)

	require.NoError(t, e.Delete(ctx, "m1"))
	_, err = e.Get(ctx, "m1")
	assert.Error(t, err)
}

func TestPendingForOrdersByCreatedAt(t *testing.T) {
	ctx := context.Background()
	e := NewMemoryEngine()
	now := time.Now()
	require.NoError(t, e.Store(ctx, &Message{ID: "a", Recipient: "P", Status: StatusPending, CreatedAt: now.Add(time.Second)}))
	require.NoError(t, e.Store(ctx, &Message{ID: "b", Recipient: "P", Status: StatusPending, CreatedAt: now}))
	require.NoError(t, e.Store(ctx, &Message{ID: "c", Recipient: "OTHER", Status: StatusPending, CreatedAt: now}))

	pending, err := e.PendingFor(ctx, "P")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "b", pending[0].ID)
	assert.Equal(t, "a", pending[1].ID)
}

func TestEvictableOrderingExpiredThenPriority(t *testing.T) {
	ctx := context.Background()
	e := NewMemoryEngine()
	now := time.Now()

	require.NoError(t, e.Store(ctx, &Message{ID: "normal-old", Priority: PriorityNormal, CreatedAt: now.Add(-time.Hour), SizeBytes: 1}))
	require.NoError(t, e.Store(ctx, &Message{ID: "low-old", Priority: PriorityLow, CreatedAt: now.Add(-2 * time.Hour), SizeBytes: 1}))
	require.NoError(t, e.Store(ctx, &Message{ID: "low-new", Priority: PriorityLow, CreatedAt: now.Add(-time.Minute), SizeBytes: 1}))
	require.NoError(t, e.Store(ctx, &Message{ID: "expired", Priority: PriorityEmergency, CreatedAt: now, ExpiresAt: now.Add(-time.Minute), SizeBytes: 1}))

	victims, err := e.Evictable(ctx, now)
	require.NoError(t, err)
	ids := make([]string, len(victims))
	for i, v := range victims {
		ids[i] = v.ID
	}
	assert.Equal(t, []string{"expired", "low-old", "low-new", "normal-old"}, ids)
}

func TestEvictableNeverIncludesOwnUndeliveredUnlessExpired(t *testing.T) {
	ctx := context.Background()
	e := NewMemoryEngine()
	now := time.Now()

	require.NoError(t, e.Store(ctx, &Message{
		ID: "own-pending", Priority: PriorityLow, IsOwnMessage: true,
		Status: StatusPending, CreatedAt: now.Add(-time.Hour), SizeBytes: 1,
	}))
	require.NoError(t, e.Store(ctx, &Message{
		ID: "own-expired", Priority: PriorityLow, IsOwnMessage: true,
		Status: StatusPending, CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-time.Minute), SizeBytes: 1,
	}))

	victims, err := e.Evictable(ctx, now)
	require.NoError(t, err)
	require.Len(t, victims, 1)
	assert.Equal(t, "own-expired", victims[0].ID)
}

func TestStoreRejectsMustRetainWhenQuotaCannotBeFreed(t *testing.T) {
	ctx := context.Background()
	e := NewMemoryEngine()
	quota := NewQuotaManager(QuotaConfig{MaxBytes: 10, WarningRatio: 0.8, CriticalRatio: 0.95, EvictionTargetRatio: 0.7}, e, nil)
	e.SetQuotaManager(quota)

	require.NoError(t, e.Store(ctx, &Message{
		ID: "own1", IsOwnMessage: true, Status: StatusPending, SizeBytes: 9, CreatedAt: time.Now(),
	}))

	err := e.Store(ctx, &Message{ID: "own2", IsOwnMessage: true, Status: StatusPending, SizeBytes: 9, CreatedAt: time.Now()})
	assert.ErrorIs(t, err, mesherrs.ErrMustRetain)
}

func TestExpireDueTransitionsStatus(t *testing.T) {
	ctx := context.Background()
	e := NewMemoryEngine()
	now := time.Now()
	require.NoError(t, e.Store(ctx, &Message{ID: "m", Status: StatusSent, ExpiresAt: now.Add(-time.Second)}))

	count, err := e.ExpireDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	m, err := e.Get(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, m.Status)
}
