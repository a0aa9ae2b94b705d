package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport is a minimal in-memory Transport for exercising Manager's
// retry/fallback and state-tracking logic without real network I/O.
type fakeTransport struct {
	name      string
	events    Events
	states    map[string]State
	sendErr   error
	sendCalls []string
}

func newFakeTransport(name string) *fakeTransport {
	return &fakeTransport{name: name, states: make(map[string]State)}
}

func (f *fakeTransport) Name() string        { return f.name }
func (f *fakeTransport) LocalPeerID() string { return "LOCAL" }
func (f *fakeTransport) Start(events Events) error {
	f.events = events
	return nil
}
func (f *fakeTransport) Stop() error { return nil }
func (f *fakeTransport) Connect(ctx context.Context, peerID string, signaling []byte) error {
	f.setState(peerID, StateConnected)
	return nil
}
func (f *fakeTransport) Disconnect(peerID string) error {
	f.setState(peerID, StateDisconnected)
	return nil
}
func (f *fakeTransport) Send(ctx context.Context, peerID string, payload []byte) error {
	f.sendCalls = append(f.sendCalls, peerID)
	return f.sendErr
}
func (f *fakeTransport) Broadcast(ctx context.Context, payload []byte, exclude ...string) error {
	return nil
}
func (f *fakeTransport) ConnectionState(peerID string) State { return f.states[peerID] }
func (f *fakeTransport) PeerInfo(peerID string) (PeerInfo, bool) {
	return PeerInfo{PeerID: peerID}, f.states[peerID] == StateConnected
}
func (f *fakeTransport) setState(peerID string, s State) {
	f.states[peerID] = s
	if f.events.OnStateChange != nil {
		f.events.OnStateChange(peerID, s)
	}
	if s == StateDisconnected && f.events.OnPeerDisconnected != nil {
		f.events.OnPeerDisconnected(peerID, "closed")
	}
}

func TestSendUsesPreferredTransportWhenConnected(t *testing.T) {
	ws := newFakeTransport("websocket")
	ble := newFakeTransport("ble")
	m := NewManager(DefaultManagerConfig())
	require.NoError(t, m.Register(ws))
	require.NoError(t, m.Register(ble))

	ws.setState("PEER", StateConnected)
	ble.setState("PEER", StateConnected)

	err := m.Send(context.Background(), "PEER", []byte("hi"), "ble")
	require.NoError(t, err)
	assert.Len(t, ble.sendCalls, 1)
	assert.Empty(t, ws.sendCalls)
}

func TestSendFallsBackToNextConnectedTransport(t *testing.T) {
	ws := newFakeTransport("websocket")
	ws.sendErr = errors.New("connection reset")
	ble := newFakeTransport("ble")
	m := NewManager(DefaultManagerConfig())
	require.NoError(t, m.Register(ws))
	require.NoError(t, m.Register(ble))

	ws.setState("PEER", StateConnected)
	ble.setState("PEER", StateConnected)

	err := m.Send(context.Background(), "PEER", []byte("hi"), "websocket")
	require.NoError(t, err)
	assert.Len(t, ws.sendCalls, 1)
	assert.Len(t, ble.sendCalls, 1)
}

func TestSendExhaustsRetriesThenReturnsPeerUnreachable(t *testing.T) {
	ws := newFakeTransport("websocket")
	ws.sendErr = errors.New("down")
	m := NewManager(ManagerConfig{MaxRetries: 2, RetryDelay: time.Millisecond})
	m.sleep = func(time.Duration) {} // don't actually wait in tests
	require.NoError(t, m.Register(ws))
	ws.setState("PEER", StateConnected)

	err := m.Send(context.Background(), "PEER", []byte("hi"), "")
	require.Error(t, err)
	assert.Len(t, ws.sendCalls, 3) // initial + 2 retries
}

func TestReachableRequiresAtLeastOneConnectedTransport(t *testing.T) {
	ws := newFakeTransport("websocket")
	m := NewManager(DefaultManagerConfig())
	require.NoError(t, m.Register(ws))

	assert.False(t, m.Reachable("PEER"))
	ws.setState("PEER", StateConnected)
	assert.True(t, m.Reachable("PEER"))
}

func TestDisconnectedFiresOnlyWhenAllTransportsReportDisconnected(t *testing.T) {
	ws := newFakeTransport("websocket")
	ble := newFakeTransport("ble")
	m := NewManager(DefaultManagerConfig())
	require.NoError(t, m.Register(ws))
	require.NoError(t, m.Register(ble))

	ws.setState("PEER", StateConnected)
	ble.setState("PEER", StateConnected)
	ws.setState("PEER", StateDisconnected)
	assert.False(t, m.Disconnected("PEER"), "ble is still connected")

	ble.setState("PEER", StateDisconnected)
	assert.True(t, m.Disconnected("PEER"))
}

func TestConnectDialsPreferredTransport(t *testing.T) {
	ws := newFakeTransport("websocket")
	ble := newFakeTransport("ble")
	m := NewManager(DefaultManagerConfig())
	require.NoError(t, m.Register(ws))
	require.NoError(t, m.Register(ble))

	require.NoError(t, m.Connect(context.Background(), "PEER", "ble", nil))
	assert.Equal(t, StateConnected, ble.ConnectionState("PEER"))
	assert.Equal(t, State(0), ws.ConnectionState("PEER"))
}

func TestConnectDialsEveryTransportWhenNoPreference(t *testing.T) {
	ws := newFakeTransport("websocket")
	ble := newFakeTransport("ble")
	m := NewManager(DefaultManagerConfig())
	require.NoError(t, m.Register(ws))
	require.NoError(t, m.Register(ble))

	require.NoError(t, m.Connect(context.Background(), "PEER", "", nil))
	assert.Equal(t, StateConnected, ws.ConnectionState("PEER"))
}

func TestConnectFailsWhenNoTransportRegistered(t *testing.T) {
	m := NewManager(DefaultManagerConfig())
	err := m.Connect(context.Background(), "PEER", "", nil)
	assert.Error(t, err)
}

func TestBroadcastSkipsExcludedAndUnreachablePeers(t *testing.T) {
	ws := newFakeTransport("websocket")
	m := NewManager(DefaultManagerConfig())
	require.NoError(t, m.Register(ws))

	ws.setState("A", StateConnected)
	ws.setState("B", StateConnected)
	ws.setState("C", StateDisconnected)

	results := m.Broadcast(context.Background(), []byte("hi"), "B")
	_, sentToB := results["B"]
	_, sentToC := results["C"]
	assert.False(t, sentToB)
	assert.False(t, sentToC)
	assert.Contains(t, results, "A")
	assert.NoError(t, results["A"])
}
