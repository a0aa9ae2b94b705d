package health

import (
	"sync"
	"time"

	"github.com/silentmesh/mesh/internal/logger"
	"github.com/silentmesh/mesh/internal/metrics"
)

// HeartbeatConfig configures the per-peer heartbeat monitor. Defaults
// match spec §6: 15s interval, 3 missed beats before unhealthy.
type HeartbeatConfig struct {
	Interval        time.Duration
	MissedThreshold int
}

// DefaultHeartbeatConfig returns the spec defaults.
func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{Interval: 15 * time.Second, MissedThreshold: 3}
}

// StillConnected reports whether any transport still considers peerID
// CONNECTED. The heartbeat monitor consults this before firing
// OnPeerDisconnected, so a stale heartbeat on one transport does not
// disconnect a peer still reachable on another.
type StillConnected func(peerID string) bool

// HeartbeatMonitor tracks the latest heartbeat time per peer and detects
// unhealthy peers: now - last_beat > interval * missed_threshold.
type HeartbeatMonitor struct {
	cfg            HeartbeatConfig
	stillConnected StillConnected
	onDisconnected func(peerID string)
	logger         logger.Logger
	now            func() time.Time

	mu        sync.Mutex
	lastBeat  map[string]time.Time
	unhealthy map[string]bool
}

// NewHeartbeatMonitor constructs a HeartbeatMonitor. onDisconnected fires
// exactly once per peer transition into unhealthy, and only if
// stillConnected reports no transport is still connected.
func NewHeartbeatMonitor(cfg HeartbeatConfig, stillConnected StillConnected, onDisconnected func(peerID string)) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		cfg:            cfg,
		stillConnected: stillConnected,
		onDisconnected: onDisconnected,
		logger:         logger.GetDefaultLogger(),
		now:            time.Now,
		lastBeat:       make(map[string]time.Time),
		unhealthy:      make(map[string]bool),
	}
}

// Beat records a heartbeat from peerID at the current time, clearing any
// unhealthy flag it previously carried.
func (h *HeartbeatMonitor) Beat(peerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastBeat[peerID] = h.now()
	delete(h.unhealthy, peerID)
}

// Forget drops all heartbeat state for peerID, e.g. after it is removed
// from the routing table entirely.
func (h *HeartbeatMonitor) Forget(peerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.lastBeat, peerID)
	delete(h.unhealthy, peerID)
}

// Sweep checks every tracked peer against the missed-beat threshold,
// firing onDisconnected for any peer that just crossed into unhealthy and
// has no transport still reporting CONNECTED.
func (h *HeartbeatMonitor) Sweep() {
	threshold := h.cfg.Interval * time.Duration(h.cfg.MissedThreshold)
	now := h.now()

	h.mu.Lock()
	var justUnhealthy []string
	for peerID, last := range h.lastBeat {
		if h.unhealthy[peerID] {
			continue
		}
		if now.Sub(last) > threshold {
			h.unhealthy[peerID] = true
			justUnhealthy = append(justUnhealthy, peerID)
		}
	}
	h.mu.Unlock()

	for _, peerID := range justUnhealthy {
		metrics.HeartbeatMissed.WithLabelValues(peerID).Inc()
		if h.stillConnected != nil && h.stillConnected(peerID) {
			h.logger.Debug("peer missed heartbeats but still connected on another transport",
				logger.String("peer_id", peerID))
			continue
		}
		if h.onDisconnected != nil {
			h.onDisconnected(peerID)
		}
	}
}

// IsUnhealthy reports whether peerID is currently flagged unhealthy.
func (h *HeartbeatMonitor) IsUnhealthy(peerID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unhealthy[peerID]
}
