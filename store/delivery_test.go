package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnPeerReachableForwardsAndMarksSent(t *testing.T) {
	ctx := context.Background()
	e := NewMemoryEngine()
	now := time.Now()
	require.NoError(t, e.Store(ctx, &Message{ID: "a", Recipient: "PEER", Status: StatusPending, Payload: []byte("x"), CreatedAt: now}))
	require.NoError(t, e.Store(ctx, &Message{ID: "b", Recipient: "PEER", Status: StatusPending, Payload: []byte("y"), CreatedAt: now.Add(time.Second)}))

	var forwarded []string
	loop := NewDeliveryLoop(e, func(ctx context.Context, recipient string, payload []byte) error {
		forwarded = append(forwarded, recipient+":"+string(payload))
		return nil
	})

	sent, err := loop.OnPeerReachable(ctx, "PEER")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, sent)
	assert.ElementsMatch(t, []string{"PEER:x", "PEER:y"}, forwarded)

	m, err := e.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, StatusSent, m.Status)
	assert.Equal(t, 1, m.Attempts)
}

func TestOnPeerReachableSkipsFailedForwardsWithoutMarkingSent(t *testing.T) {
	ctx := context.Background()
	e := NewMemoryEngine()
	require.NoError(t, e.Store(ctx, &Message{ID: "a", Recipient: "PEER", Status: StatusPending, CreatedAt: time.Now()}))

	loop := NewDeliveryLoop(e, func(ctx context.Context, recipient string, payload []byte) error {
		return errors.New("unreachable")
	})

	sent, err := loop.OnPeerReachable(ctx, "PEER")
	require.NoError(t, err)
	assert.Empty(t, sent)

	m, err := e.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, m.Status)
}

func TestOnDeliveredMarksDelivered(t *testing.T) {
	ctx := context.Background()
	e := NewMemoryEngine()
	require.NoError(t, e.Store(ctx, &Message{ID: "a", Status: StatusSent, CreatedAt: time.Now()}))

	loop := NewDeliveryLoop(e, nil)
	require.NoError(t, loop.OnDelivered(ctx, "a"))

	m, err := e.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, m.Status)
}

func TestExpireOverdueDelegatesToEngine(t *testing.T) {
	ctx := context.Background()
	e := NewMemoryEngine()
	require.NoError(t, e.Store(ctx, &Message{ID: "a", Status: StatusPending, ExpiresAt: time.Now().Add(-time.Minute), CreatedAt: time.Now()}))

	loop := NewDeliveryLoop(e, nil)
	count, err := loop.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
