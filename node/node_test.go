package node

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/silentmesh/mesh/invite"
	"github.com/silentmesh/mesh/relay"
	"github.com/silentmesh/mesh/schedule"
	"github.com/silentmesh/mesh/store"
	"github.com/silentmesh/mesh/transport"
	"github.com/silentmesh/mesh/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	name      string
	events    transport.Events
	sendCalls chan []byte
}

func newFakeTransport(name string) *fakeTransport {
	return &fakeTransport{name: name, sendCalls: make(chan []byte, 16)}
}

func (f *fakeTransport) Name() string        { return f.name }
func (f *fakeTransport) LocalPeerID() string { return "LOCAL" }
func (f *fakeTransport) Start(events transport.Events) error {
	f.events = events
	return nil
}
func (f *fakeTransport) Stop() error { return nil }
func (f *fakeTransport) Connect(ctx context.Context, peerID string, signaling []byte) error {
	if f.events.OnStateChange != nil {
		f.events.OnStateChange(peerID, transport.StateConnected)
	}
	return nil
}
func (f *fakeTransport) Disconnect(peerID string) error { return nil }
func (f *fakeTransport) Send(ctx context.Context, peerID string, payload []byte) error {
	f.sendCalls <- payload
	return nil
}
func (f *fakeTransport) Broadcast(ctx context.Context, payload []byte, exclude ...string) error {
	return nil
}
func (f *fakeTransport) ConnectionState(peerID string) transport.State { return 0 }
func (f *fakeTransport) PeerInfo(peerID string) (transport.PeerInfo, bool) {
	return transport.PeerInfo{}, false
}

func newTestNode(t *testing.T) (*Node, ed25519.PublicKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	engine := store.NewMemoryEngine()
	resolve := func(m *wire.Message) relay.Destination {
		return relay.Destination{Broadcast: true}
	}
	n := New(DefaultConfig(), priv, engine, resolve)
	return n, pub
}

func TestGetIdentityNeverExposesPrivateKey(t *testing.T) {
	n, pub := newTestNode(t)
	id := n.GetIdentity()
	assert.Equal(t, pub, id.PublicKey)
	assert.NotEmpty(t, id.PeerID)
}

func TestStartIsIdempotentAndDegradedWithoutTransports(t *testing.T) {
	n, _ := newTestNode(t)
	require.NoError(t, n.Start())
	assert.Equal(t, StateDegraded, n.State())
	require.NoError(t, n.Start())
	assert.Equal(t, StateDegraded, n.State())
}

func TestStartWithTransportReachesRunning(t *testing.T) {
	n, _ := newTestNode(t)
	require.NoError(t, n.Start(newFakeTransport("fake")))
	assert.Equal(t, StateRunning, n.State())
}

func TestStopIsIdempotent(t *testing.T) {
	n, _ := newTestNode(t)
	require.NoError(t, n.Start())
	require.NoError(t, n.Stop(context.Background()))
	assert.Equal(t, StateStopped, n.State())
	require.NoError(t, n.Stop(context.Background()))
}

func TestSendBeforeStartReturnsNotRunning(t *testing.T) {
	n, _ := newTestNode(t)
	_, err := n.Send(context.Background(), "PEER", wire.MessageTypeText, []byte("hi"), schedule.PriorityText, false)
	assert.Error(t, err)
}

func TestSendRoutesThroughSchedulerToTransport(t *testing.T) {
	n, _ := newTestNode(t)
	ft := newFakeTransport("fake")
	require.NoError(t, n.Start(ft))

	_, err := n.Send(context.Background(), "PEER", wire.MessageTypeText, []byte("hello"), schedule.PriorityText, false)
	require.NoError(t, err)

	select {
	case payload := <-ft.sendCalls:
		assert.NotEmpty(t, payload)
	case <-time.After(2 * time.Second):
		t.Fatal("expected message to reach the fake transport")
	}
}

func TestSendDurableAdmitsToOutbox(t *testing.T) {
	n, _ := newTestNode(t)
	ft := newFakeTransport("fake")
	require.NoError(t, n.Start(ft))

	id, err := n.Send(context.Background(), "PEER", wire.MessageTypeText, []byte("hello"), schedule.PriorityText, true)
	require.NoError(t, err)

	<-ft.sendCalls // drain the scheduler's delivery

	got, err := n.engine.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "PEER", got.Recipient)
	assert.True(t, got.IsOwnMessage)
}

func TestConnectDialsRegisteredTransport(t *testing.T) {
	n, _ := newTestNode(t)
	ft := newFakeTransport("fake")
	require.NoError(t, n.Start(ft))

	require.NoError(t, n.Connect(context.Background(), "PEER"))
	assert.True(t, n.transports.Reachable("PEER"))
}

func TestCreateAndRedeemInviteRoundTrip(t *testing.T) {
	n, _ := newTestNode(t)
	now := time.Now()

	inv, err := n.CreateInvite(invite.CreateOptions{InviterName: "alice"}, now)
	require.NoError(t, err)

	contact, result := n.RedeemInvite(inv.Code)
	require.Equal(t, invite.ValidationOK, result)
	assert.Equal(t, n.GetIdentity().PeerID, contact.PeerID)
}

func TestSubscribeReceivesOnQuotaWarning(t *testing.T) {
	n, _ := newTestNode(t)
	require.NoError(t, n.Start())
	sub := n.Subscribe()
	defer sub.Close()

	n.onQuotaWarning(store.QuotaWarning)

	select {
	case e := <-sub.Events():
		assert.Equal(t, EventOnQuotaWarning, e.Kind)
		assert.Equal(t, "WARNING", e.QuotaStatus)
	case <-time.After(time.Second):
		t.Fatal("expected quota warning event")
	}
}

func TestRotateSessionKeyGeneratesThenRotates(t *testing.T) {
	n, _ := newTestNode(t)

	first, err := n.RotateSessionKey("PEER")
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := n.RotateSessionKey("PEER")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), second.ID())

	history, err := n.rotator.GetRotationHistory("PEER")
	require.NoError(t, err)
	assert.NotEmpty(t, history)
}
