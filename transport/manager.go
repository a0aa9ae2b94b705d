package transport

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	mesherrs "github.com/silentmesh/mesh/errors"
	"github.com/silentmesh/mesh/internal/metrics"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ManagerConfig bounds retry behavior for Manager.Send.
type ManagerConfig struct {
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultManagerConfig matches the spec defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{MaxRetries: 3, RetryDelay: 1 * time.Second}
}

// Manager multiplexes one or more concrete Transports behind a single
// send/broadcast surface, tracking per-peer-per-transport connection
// state and driving retry/fallback across transports.
type Manager struct {
	cfg         ManagerConfig
	mu          sync.RWMutex
	transports  []Transport // registration order; Send's fallback sorts connected transports by name
	state       map[string]map[string]State // peerID -> transport name -> State
	sleep       func(time.Duration)
	connecting     singleflight.Group // collapses concurrent Connect calls for the same peer
	onConnected    func(peerID string)
	onDisconnected func(peerID string)
}

// SetOnPeerConnected registers fn to be called whenever a peer becomes
// reachable: a transport reports it CONNECTED while no registered
// transport had it CONNECTED before. Must be
// called before Register, since transports may report state immediately.
func (m *Manager) SetOnPeerConnected(fn func(peerID string)) {
	m.mu.Lock()
	m.onConnected = fn
	m.mu.Unlock()
}

// SetOnPeerDisconnected registers fn to be called the moment every
// transport that has ever reported a state for a peer now reports it
// disconnected (spec.md's on_peer_disconnected transport-layer event,
// distinct from the heartbeat-miss path). Must be called before Register,
// since transports may report state immediately.
func (m *Manager) SetOnPeerDisconnected(fn func(peerID string)) {
	m.mu.Lock()
	m.onDisconnected = fn
	m.mu.Unlock()
}

// NewManager constructs a Manager. A zero-value cfg.MaxRetries/RetryDelay
// is filled from DefaultManagerConfig.
func NewManager(cfg ManagerConfig) *Manager {
	def := DefaultManagerConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	return &Manager{
		cfg:   cfg,
		state: make(map[string]map[string]State),
		sleep: time.Sleep,
	}
}

// Register adds t to the manager's fallback order and starts listening to
// its events, updating this manager's per-peer state table.
func (m *Manager) Register(t Transport) error {
	m.mu.Lock()
	m.transports = append(m.transports, t)
	m.mu.Unlock()

	return t.Start(Events{
		OnStateChange: func(peerID string, state State) {
			m.setState(t.Name(), peerID, state)
		},
		OnPeerDisconnected: func(peerID string, reason string) {
			m.setState(t.Name(), peerID, StateDisconnected)
		},
	})
}

// StopAll stops every registered transport concurrently, returning the
// first error encountered (if any) once all have finished.
func (m *Manager) StopAll() error {
	m.mu.RLock()
	transports := append([]Transport(nil), m.transports...)
	m.mu.RUnlock()

	var g errgroup.Group
	for _, t := range transports {
		t := t
		g.Go(t.Stop)
	}
	return g.Wait()
}

func (m *Manager) setState(transportName, peerID string, state State) {
	m.mu.Lock()
	wasReachable := m.reachableLocked(peerID)
	wasDisconnected := m.disconnectedLocked(peerID)

	byTransport, ok := m.state[peerID]
	if !ok {
		byTransport = make(map[string]State)
		m.state[peerID] = byTransport
	}
	byTransport[transportName] = state

	connected := 0
	for _, states := range m.state {
		for _, s := range states {
			if s == StateConnected {
				connected++
				break
			}
		}
	}
	becameReachable := !wasReachable && state == StateConnected
	becameDisconnected := !wasDisconnected && m.disconnectedLocked(peerID)
	onConnected := m.onConnected
	onDisconnected := m.onDisconnected
	m.mu.Unlock()

	if state == StateDisconnected {
		metrics.PeersDisconnected.Inc()
	}
	metrics.PeersConnected.Set(float64(connected))
	metrics.TransportState.WithLabelValues(peerID, transportName).Set(float64(state))

	if becameReachable && onConnected != nil {
		onConnected(peerID)
	}
	if becameDisconnected && onDisconnected != nil {
		onDisconnected(peerID)
	}
}

// Reachable reports whether at least one registered transport has peerID
// CONNECTED.
func (m *Manager) Reachable(peerID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.state[peerID] {
		if s == StateConnected {
			return true
		}
	}
	return false
}

// Disconnected reports whether every transport that has ever reported a
// state for peerID now reports it disconnected — the condition under
// which on_peer_disconnected should fire.
func (m *Manager) Disconnected(peerID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.disconnectedLocked(peerID)
}

func (m *Manager) disconnectedLocked(peerID string) bool {
	states, ok := m.state[peerID]
	if !ok || len(states) == 0 {
		return false
	}
	for _, s := range states {
		if s == StateConnected {
			return false
		}
	}
	return true
}

// connectedTransports returns transports currently CONNECTED to peerID,
// sorted by transport name, with preferred (if connected) moved first.
func (m *Manager) connectedTransports(peerID, preferred string) []Transport {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ordered []Transport
	var preferredT Transport
	for _, t := range m.transports {
		if m.state[peerID][t.Name()] != StateConnected {
			continue
		}
		if t.Name() == preferred {
			preferredT = t
			continue
		}
		ordered = append(ordered, t)
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Name() < ordered[j].Name() })
	if preferredT != nil {
		ordered = append([]Transport{preferredT}, ordered...)
	}
	return ordered
}

// Send implements the C7 send algorithm: try the preferred transport (if
// connected), then every other connected transport in stable order,
// retrying the whole pass up to MaxRetries times with RetryDelay between
// attempts. Returns PeerUnreachable if every attempt failed.
func (m *Manager) Send(ctx context.Context, peerID string, payload []byte, preferred string) error {
	start := time.Now()
	defer func() { metrics.SendDuration.Observe(time.Since(start).Seconds()) }()

	var lastErr error
	for attempt := 0; attempt <= m.cfg.MaxRetries; attempt++ {
		for _, t := range m.connectedTransports(peerID, preferred) {
			if err := t.Send(ctx, peerID, payload); err != nil {
				lastErr = err
				metrics.SendAttempts.WithLabelValues(t.Name(), "failure").Inc()
				continue
			}
			metrics.SendAttempts.WithLabelValues(t.Name(), "success").Inc()
			return nil
		}
		if attempt < m.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			m.sleep(m.cfg.RetryDelay)
		}
	}
	if lastErr != nil {
		return fmt.Errorf("%w: %v", mesherrs.ErrPeerUnreachable, lastErr)
	}
	return mesherrs.ErrPeerUnreachable
}

// Broadcast sends payload to every peer with at least one connected
// transport, except those in exclude. Per-peer failures do not abort the
// broadcast; all attempted peer IDs with their error (nil on success) are
// returned.
func (m *Manager) Broadcast(ctx context.Context, payload []byte, exclude ...string) map[string]error {
	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}

	m.mu.RLock()
	peers := make([]string, 0, len(m.state))
	for peerID := range m.state {
		if !skip[peerID] && m.reachableLocked(peerID) {
			peers = append(peers, peerID)
		}
	}
	m.mu.RUnlock()

	results := make(map[string]error, len(peers))
	for _, peerID := range peers {
		results[peerID] = m.Send(ctx, peerID, payload, "")
	}
	return results
}

func (m *Manager) reachableLocked(peerID string) bool {
	for _, s := range m.state[peerID] {
		if s == StateConnected {
			return true
		}
	}
	return false
}

// Connect instructs preferred (or, if empty, every registered transport)
// to dial peerID. It returns promptly; the resulting connection state
// change is reported asynchronously through the transport's events.
// Concurrent Connect calls for the same peerID+preferred pair collapse into
// a single dial attempt.
func (m *Manager) Connect(ctx context.Context, peerID string, preferred string, signaling []byte) error {
	key := preferred + "\x00" + peerID
	_, err, _ := m.connecting.Do(key, func() (interface{}, error) {
		return nil, m.connectOnce(ctx, peerID, preferred, signaling)
	})
	return err
}

func (m *Manager) connectOnce(ctx context.Context, peerID string, preferred string, signaling []byte) error {
	m.mu.RLock()
	transports := append([]Transport(nil), m.transports...)
	m.mu.RUnlock()

	if len(transports) == 0 {
		return mesherrs.ErrNotRunning
	}

	var lastErr error
	attempted, connected := false, false
	for _, t := range transports {
		if preferred != "" && t.Name() != preferred {
			continue
		}
		attempted = true
		if err := t.Connect(ctx, peerID, signaling); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				lastErr = fmt.Errorf("%w: %v", mesherrs.ErrConnectTimeout, err)
			} else {
				lastErr = err
			}
			metrics.ConnectAttempts.WithLabelValues(t.Name(), "failure").Inc()
			continue
		}
		metrics.ConnectAttempts.WithLabelValues(t.Name(), "success").Inc()
		connected = true
	}
	if connected {
		return nil
	}
	if attempted {
		return lastErr
	}
	return fmt.Errorf("transport not registered: %s", preferred)
}
