// Package node implements the mesh node facade (C12): the state machine
// and public operations a caller drives — start/stop, send, subscribe,
// connect, invite creation/redemption, and an immutable identity view —
// constructed over every other component.
package node

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"
	"time"

	meshcrypto "github.com/silentmesh/mesh/crypto"
	"github.com/silentmesh/mesh/crypto/keys"
	"github.com/silentmesh/mesh/crypto/rotation"
	"github.com/silentmesh/mesh/crypto/storage"
	"github.com/silentmesh/mesh/dedup"
	mesherrs "github.com/silentmesh/mesh/errors"
	"github.com/silentmesh/mesh/health"
	"github.com/silentmesh/mesh/invite"
	"github.com/silentmesh/mesh/internal/logger"
	"github.com/silentmesh/mesh/ledger"
	"github.com/silentmesh/mesh/meshconfig"
	"github.com/silentmesh/mesh/relay"
	"github.com/silentmesh/mesh/routing"
	"github.com/silentmesh/mesh/schedule"
	"github.com/silentmesh/mesh/store"
	"github.com/silentmesh/mesh/transport"
	"github.com/silentmesh/mesh/wire"
	"golang.org/x/sync/errgroup"
)

// State is the node lifecycle state machine.
type State uint8

const (
	StateUninitialized State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	case StateDegraded:
		return "DEGRADED"
	default:
		return "UNKNOWN"
	}
}

// Identity is an immutable view of this node's keys: it never exposes the
// private key.
type Identity struct {
	PeerID    string
	PublicKey ed25519.PublicKey
}

// Config bundles every subsystem's configuration.
type Config struct {
	Dedup                dedup.Config
	Routing              routing.Config
	Quota                store.QuotaConfig
	Heartbeat            health.HeartbeatConfig
	Decode               wire.DecodeConfig
	Transport            transport.ManagerConfig
	QueueCapacity        int
	BandwidthBytesPerSec int
	DefaultTTL           uint8
}

// DefaultConfig returns spec-default configuration for every subsystem.
func DefaultConfig() Config {
	return Config{
		Dedup:                dedup.DefaultConfig(),
		Routing:              routing.DefaultConfig(),
		Quota:                store.DefaultQuotaConfig(),
		Heartbeat:            health.DefaultHeartbeatConfig(),
		Decode:               wire.DefaultDecodeConfig(),
		Transport:            transport.DefaultManagerConfig(),
		QueueCapacity:        1024,
		BandwidthBytesPerSec: 1 << 20,
		DefaultTTL:           64,
	}
}

// ConfigFromMesh converts a loaded meshconfig.Config into a node.Config,
// the bridge between the on-disk configuration surface and the subsystem
// constructors New wires up.
func ConfigFromMesh(mc *meshconfig.Config) Config {
	return Config{
		Dedup:                mc.ToDedupConfig(),
		Routing:              mc.ToRoutingConfig(),
		Quota:                mc.ToQuotaConfig(),
		Heartbeat:            mc.ToHeartbeatConfig(),
		Decode:               mc.ToDecodeConfig(),
		Transport:            mc.ToManagerConfig(),
		QueueCapacity:        mc.Scheduler.QueueCapacity,
		BandwidthBytesPerSec: mc.Scheduler.BandwidthBytesPerSec,
		DefaultTTL:           mc.DefaultTTL(),
	}
}

// Node is the mesh node facade: it owns every subsystem and exposes the
// operations spec.md §4.12 names.
type Node struct {
	cfg Config
	log logger.Logger

	identity   Identity
	privateKey ed25519.PrivateKey

	mu    sync.RWMutex
	state State

	dedupCache  *dedup.Cache
	routes      *routing.Table
	relay       *relay.Relay
	transports  *transport.Manager
	engine      store.Engine
	quota       *store.QuotaManager
	delivery    *store.DeliveryLoop
	heartbeat   *health.HeartbeatMonitor
	invites     *invite.Registry
	sessionKeys meshcrypto.KeyStorage
	rotator     meshcrypto.KeyRotator

	mesh         *ledger.Mesh
	wateringHole *ledger.WateringHole
	lightPing    *ledger.LightPing

	schedMu    sync.Mutex
	schedulers map[string]*schedule.Scheduler
	cancelDrain map[string]context.CancelFunc

	subMu sync.Mutex
	subs  map[int]chan Event
	nextSub int

	resolve   relay.Resolver
	runCancel context.CancelFunc
}

// New constructs a Node in the Uninitialized state. privateKey is the
// node's Ed25519 signing identity; resolve determines, for a decoded
// inbound message, who it is addressed to (the wire header carries no
// destination field by design — see relay.Resolver).
func New(cfg Config, privateKey ed25519.PrivateKey, engine store.Engine, resolve relay.Resolver) *Node {
	pub := privateKey.Public().(ed25519.PublicKey)
	sessionKeys := storage.NewMemoryKeyStorage()
	n := &Node{
		cfg:         cfg,
		log:         logger.GetDefaultLogger(),
		identity:    Identity{PeerID: keys.PeerIDFromEd25519(pub), PublicKey: pub},
		privateKey:  privateKey,
		state:       StateUninitialized,
		dedupCache:  dedup.NewCache(cfg.Dedup),
		routes:      routing.NewTable(cfg.Routing),
		engine:      engine,
		invites:     invite.NewRegistry(),
		schedulers:  make(map[string]*schedule.Scheduler),
		cancelDrain: make(map[string]context.CancelFunc),
		subs:        make(map[int]chan Event),
		resolve:     resolve,
		sessionKeys: sessionKeys,
		rotator:     rotation.NewKeyRotator(sessionKeys),
		mesh:        ledger.NewMesh(),
		wateringHole: ledger.NewWateringHole(),
	}
	n.lightPing = ledger.NewLightPing(ledger.DefaultDeviceProfile(), n.mesh)
	n.quota = store.NewQuotaManager(cfg.Quota, engine, n.onQuotaWarning)
	n.delivery = store.NewDeliveryLoop(engine, n.forward)
	return n
}

// ensureSessionKey returns peerID's current X25519 session key-agreement
// pair, generating and storing one on first use.
func (n *Node) ensureSessionKey(peerID string) (meshcrypto.KeyPair, error) {
	if kp, err := n.sessionKeys.Load(peerID); err == nil {
		return kp, nil
	}
	kp, err := keys.GenerateX25519KeyPair()
	if err != nil {
		return nil, err
	}
	if err := n.sessionKeys.Store(peerID, kp); err != nil {
		return nil, err
	}
	return kp, nil
}

// RotateSessionKey replaces peerID's X25519 session key-agreement material
// with freshly generated material, leaving this node's Ed25519 signing
// identity untouched. It supplements social recovery's share re-encryption
// with on-demand re-keying for an active session.
func (n *Node) RotateSessionKey(peerID string) (meshcrypto.KeyPair, error) {
	if _, err := n.ensureSessionKey(peerID); err != nil {
		return nil, err
	}
	return n.rotator.Rotate(peerID)
}

// GetIdentity returns an immutable view of this node's identity. The
// private key is never exposed.
func (n *Node) GetIdentity() Identity { return n.identity }

// State reports the current lifecycle state.
func (n *Node) State() State {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

func (n *Node) setState(s State) {
	n.mu.Lock()
	n.state = s
	n.mu.Unlock()
}

// Start is idempotent: it initializes transports, registers event
// handlers, and opens the C8 outbox and C10 ledger hooks. Calling Start
// when already Running or Starting is a no-op.
func (n *Node) Start(transports ...transport.Transport) error {
	n.mu.Lock()
	if n.state == StateRunning || n.state == StateStarting {
		n.mu.Unlock()
		return nil
	}
	n.state = StateStarting
	n.mu.Unlock()

	n.transports = transport.NewManager(n.cfg.Transport)
	n.transports.SetOnPeerConnected(n.onPeerReconnected)
	n.transports.SetOnPeerDisconnected(n.onPeerDisconnected)
	var g errgroup.Group
	for _, t := range transports {
		t := t
		g.Go(func() error {
			if err := n.transports.Register(t); err != nil {
				return fmt.Errorf("failed to register transport %s: %w", t.Name(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		n.setState(StateUninitialized)
		return err
	}

	n.relay = relay.New(relay.Deps{
		Dedup:        n.dedupCache,
		Routes:       n.routes,
		LocalPeerID:  n.identity.PeerID,
		Resolve:      n.resolve,
		DirectPeers:  n.directPeerIDs,
		DeliverLocal: n.deliverLocal,
		Enqueue:      n.enqueueToPeer,
	}, n.cfg.Decode)

	if settable, ok := n.engine.(interface {
		SetQuotaManager(*store.QuotaManager)
	}); ok {
		settable.SetQuotaManager(n.quota)
	}

	n.heartbeat = health.NewHeartbeatMonitor(n.cfg.Heartbeat, n.transports.Reachable, n.onPeerDisconnected)

	ctx, cancel := context.WithCancel(context.Background())
	n.runCancel = cancel
	go n.sweepLoop(ctx, n.heartbeat.Sweep, n.cfg.Heartbeat.Interval)
	go n.quotaSweepLoop(ctx)
	go n.sweepLoop(ctx, n.lightPingSweep, n.cfg.Heartbeat.Interval)

	if len(transports) == 0 {
		n.setState(StateDegraded)
	} else {
		n.setState(StateRunning)
	}
	return nil
}

// sweepLoop runs fn on every tick of interval until ctx is cancelled.
func (n *Node) sweepLoop(ctx context.Context, fn func(), interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// quotaSweepLoop drives the C8 quota sweep (expire-overdue plus, if usage
// is critical, eviction) on cfg.Quota.CheckInterval.
func (n *Node) quotaSweepLoop(ctx context.Context) {
	interval := n.cfg.Quota.CheckInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = n.delivery.ExpireOverdue(ctx)
			_ = n.quota.Sweep(ctx)
		}
	}
}

// Stop is idempotent: it stops every drain loop and transport, leaving
// the node in Stopped.
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	if n.state == StateStopped || n.state == StateUninitialized {
		n.mu.Unlock()
		return nil
	}
	n.state = StateStopping
	n.mu.Unlock()

	n.schedMu.Lock()
	for _, cancel := range n.cancelDrain {
		cancel()
	}
	n.schedMu.Unlock()

	if n.runCancel != nil {
		n.runCancel()
	}

	var stopErr error
	if n.transports != nil {
		stopErr = n.transports.StopAll()
	}

	n.setState(StateStopped)
	return stopErr
}

// MessageID identifies a sent message for delivery-status tracking.
type MessageID = string

// Send constructs, signs, admits to the outbox if durable, and hands the
// message to the relay for to. The priority argument is not used: the C5
// egress class is derived from kind, and a durable message is stored at
// store.PriorityNormal.
func (n *Node) Send(ctx context.Context, to string, kind wire.MessageType, payload []byte, priority schedule.Priority, durable bool) (MessageID, error) {
	if n.State() != StateRunning && n.State() != StateDegraded {
		return "", mesherrs.ErrNotRunning
	}

	h := wire.Header{
		Version: wire.CurrentVersion,
		Type:      kind,
		TTL:       n.cfg.DefaultTTL,
		Timestamp: uint64(time.Now().UnixMilli()),
	}
	copy(h.SenderID[:], n.identity.PublicKey)

	m := n.relay.Outbound(h, payload, n.privateKey, []string{to})
	id := fmt.Sprintf("%x", wire.Fingerprint(m))

	if durable {
		if err := n.engine.Store(ctx, &store.Message{
			ID: id, Recipient: to, Priority: store.PriorityNormal,
			Payload: wire.Encode(m), SizeBytes: int64(len(payload)),
			IsOwnMessage: true, CreatedAt: time.Now(),
		}); err != nil {
			return "", err
		}
	}
	return id, nil
}

// Connect instructs the transport manager to dial peerID. It returns
// promptly; state changes are reported asynchronously via events.
func (n *Node) Connect(ctx context.Context, peerID string) error {
	if n.transports == nil {
		return mesherrs.ErrNotRunning
	}
	return n.transports.Connect(ctx, peerID, "", nil)
}

// CreateInvite wraps invite.CreateInvite with this node's identity.
func (n *Node) CreateInvite(opts invite.CreateOptions, now time.Time) (*invite.Invite, error) {
	opts.InviterPeerID = n.identity.PeerID
	opts.InviterPublicKey = n.identity.PublicKey
	opts.InviterPrivateKey = n.privateKey
	opts.Now = now
	inv, err := invite.CreateInvite(opts)
	if err != nil {
		return nil, err
	}
	n.invites.Record(inv)
	return inv, nil
}

// RedeemInvite wraps invite.Registry.Redeem.
func (n *Node) RedeemInvite(code string) (*invite.Contact, invite.ValidationResult) {
	return n.invites.Redeem(code)
}

// Subscribe returns a Subscription delivering every Event this node
// emits. Close the Subscription to stop delivery.
func (n *Node) Subscribe() *Subscription {
	n.subMu.Lock()
	id := n.nextSub
	n.nextSub++
	ch := make(chan Event, 64)
	n.subs[id] = ch
	n.subMu.Unlock()

	return &Subscription{
		ch: ch,
		cancel: func() {
			n.subMu.Lock()
			defer n.subMu.Unlock()
			if c, ok := n.subs[id]; ok {
				close(c)
				delete(n.subs, id)
			}
		},
	}
}

func (n *Node) publish(e Event) {
	n.subMu.Lock()
	defer n.subMu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (n *Node) directPeerIDs() []string {
	peers := n.routes.Peers()
	out := make([]string, len(peers))
	for i, p := range peers {
		out[i] = p.ID
	}
	return out
}

func (n *Node) deliverLocal(m *wire.Message) {
	senderID := keys.PeerIDFromEd25519(m.Header.SenderID[:])
	n.mesh.RecordSighting(senderID, m.Header.SenderID[:])
	n.mesh.TrackPotentialContact(senderID)
	if m.Header.Type == wire.MessageTypeHeartbeat && n.heartbeat != nil {
		n.heartbeat.Beat(senderID)
	}
	n.publish(Event{Kind: EventOnMessage, Message: m})
}

func (n *Node) onQuotaWarning(status store.QuotaStatus) {
	n.publish(Event{Kind: EventOnQuotaWarning, QuotaStatus: status.String()})
}

func (n *Node) onPeerDisconnected(peerID string) {
	n.mesh.RemoveNeighbor(peerID)
	n.publish(Event{Kind: EventOnPeerDisconnected, PeerID: peerID})
}

// onPeerReconnected is the C10 watering-hole trigger: it records peerID as
// a mesh neighbor again and retries every envelope parked for it, either
// because it was the destination or because it was offered as a candidate
// gateway. A retry that fails re-parks the envelope.
func (n *Node) onPeerReconnected(peerID string) {
	n.mesh.AddNeighbor(peerID)
	for _, env := range n.wateringHole.OnNodeReconnected(peerID) {
		if err := n.forward(context.Background(), env.Destination, env.Payload); err != nil {
			n.wateringHole.Store(env)
		}
	}
	n.publish(Event{Kind: EventOnPeerConnected, PeerID: peerID})
}

// lightPingSweep drives the C10 light-ping reachability probe over the
// Eternal Ledger's recently active entries, attempting a transport Connect
// for each candidate.
func (n *Node) lightPingSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	n.lightPing.Run(ctx, time.Now(), func(ctx context.Context, peerID string) bool {
		return n.Connect(ctx, peerID) == nil
	})
}

// forward hands a pending outbox message's payload to a peer once it
// becomes reachable, via the transport manager directly (the payload is
// already a fully encoded, signed wire frame).
func (n *Node) forward(ctx context.Context, recipient string, payload []byte) error {
	if n.transports == nil {
		return mesherrs.ErrNotRunning
	}
	return n.transports.Send(ctx, recipient, payload, "")
}

// enqueueToPeer hands an outbound wire.Message to the per-peer scheduler,
// creating one lazily on first use.
func (n *Node) enqueueToPeer(peerID string, m *wire.Message) {
	sched := n.schedulerFor(peerID)
	if !sched.Enqueue(schedulePriorityFor(m.Header.Type), wire.Encode(m)) {
		n.log.Debug("outbound message shed under backpressure",
			logger.String("peer_id", peerID), logger.Error(mesherrs.ErrBackpressure))
	}
}

func (n *Node) schedulerFor(peerID string) *schedule.Scheduler {
	n.schedMu.Lock()
	defer n.schedMu.Unlock()

	if s, ok := n.schedulers[peerID]; ok {
		return s
	}

	s := schedule.NewScheduler(
		schedule.NewQueue(n.cfg.QueueCapacity),
		schedule.NewBandwidth(n.cfg.BandwidthBytesPerSec),
	)
	n.schedulers[peerID] = s

	ctx, cancel := context.WithCancel(context.Background())
	n.cancelDrain[peerID] = cancel
	go n.drain(ctx, peerID, s)

	return s
}

// drain repeatedly dequeues items from peerID's scheduler and hands them
// to the transport manager, until ctx is cancelled on Stop.
func (n *Node) drain(ctx context.Context, peerID string, s *schedule.Scheduler) {
	for {
		item, err := s.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		if n.transports != nil {
			if err := n.transports.Send(ctx, peerID, item.Payload, ""); err != nil {
				n.log.Debug("egress send failed", logger.String("peer_id", peerID), logger.Error(err))
				n.parkForWateringHole(peerID, item.Payload)
			}
		}
	}
}

// parkForWateringHole stores an undeliverable egress payload for peerID in
// the watering hole, candidate-addressed to every other direct peer, so
// that peerID's own reconnection or a sighting of any of those gateways
// retries delivery (onPeerReconnected).
func (n *Node) parkForWateringHole(peerID string, payload []byte) {
	m, err := wire.Decode(payload, n.cfg.Decode)
	if err != nil {
		return
	}

	var gateways []string
	for _, p := range n.directPeerIDs() {
		if p != peerID {
			gateways = append(gateways, p)
		}
	}

	n.wateringHole.Store(ledger.Envelope{
		ID:          fmt.Sprintf("%x", wire.Fingerprint(m)),
		Destination: peerID,
		Gateways:    gateways,
		Payload:     payload,
	})
}

func schedulePriorityFor(t wire.MessageType) schedule.Priority {
	switch t {
	case wire.MessageTypeControl, wire.MessageTypeHeartbeat, wire.MessageTypeStoreShare,
		wire.MessageTypeRequestShare, wire.MessageTypeResponseShare:
		return schedule.PriorityControl
	case wire.MessageTypeVoice:
		return schedule.PriorityVoice
	case wire.MessageTypeFile:
		return schedule.PriorityFile
	default:
		return schedule.PriorityText
	}
}
