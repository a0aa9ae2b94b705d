package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnNodeReconnectedReturnsByDestination(t *testing.T) {
	w := NewWateringHole()
	w.Store(Envelope{ID: "e1", Destination: "DEST", Gateways: []string{"GW1"}, Payload: []byte("x")})

	got := w.OnNodeReconnected("DEST")
	require.Len(t, got, 1)
	assert.Equal(t, "e1", got[0].ID)
	assert.Equal(t, 0, w.Len())
}

func TestOnNodeReconnectedReturnsByGateway(t *testing.T) {
	w := NewWateringHole()
	w.Store(Envelope{ID: "e1", Destination: "DEST", Gateways: []string{"GW1", "GW2"}, Payload: []byte("x")})

	got := w.OnNodeReconnected("GW2")
	require.Len(t, got, 1)
	assert.Equal(t, "e1", got[0].ID)
}

func TestDeliveredEnvelopeRemovedFromAllIndexes(t *testing.T) {
	w := NewWateringHole()
	w.Store(Envelope{ID: "e1", Destination: "DEST", Gateways: []string{"GW1"}})

	w.OnNodeReconnected("GW1")
	assert.Empty(t, w.OnNodeReconnected("DEST"), "envelope should already be removed via the gateway trigger")
}

func TestClearRemovesAllEnvelopes(t *testing.T) {
	w := NewWateringHole()
	w.Store(Envelope{ID: "e1", Destination: "DEST"})
	w.Clear()
	assert.Equal(t, 0, w.Len())
	assert.Empty(t, w.OnNodeReconnected("DEST"))
}

func TestUnrelatedNodeTriggersNoDelivery(t *testing.T) {
	w := NewWateringHole()
	w.Store(Envelope{ID: "e1", Destination: "DEST", Gateways: []string{"GW1"}})
	assert.Empty(t, w.OnNodeReconnected("OTHER"))
	assert.Equal(t, 1, w.Len())
}
