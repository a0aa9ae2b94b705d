// Package routing maintains the direct-peer registry and the
// destination-keyed next-hop table that the relay (C6) consults to decide
// where a message should go.
package routing

import (
	"sort"
	"sync"
	"time"
)

// PeerEntry describes a directly connected neighbor.
type PeerEntry struct {
	ID            string
	LastSeen      time.Time
	TransportType string
	Reliability   float64
	BytesRelayed  uint64
}

// Route is the best known path to a destination that is not a direct peer.
type Route struct {
	NextHop   string
	HopCount  int
	UpdatedAt time.Time
}

// Config configures a Table. StaleAfter defaults to 10 minutes per spec §4.4.
type Config struct {
	StaleAfter time.Duration
	Now        func() time.Time
}

// DefaultConfig returns the spec default staleness window.
func DefaultConfig() Config {
	return Config{StaleAfter: 10 * time.Minute, Now: time.Now}
}

// Table is the routing table: direct peers plus learned next-hop routes.
type Table struct {
	mu         sync.RWMutex
	peers      map[string]*PeerEntry
	routes     map[string]Route
	staleAfter time.Duration
	now        func() time.Time
}

// NewTable constructs a Table from cfg, filling zero fields from DefaultConfig.
func NewTable(cfg Config) *Table {
	def := DefaultConfig()
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = def.StaleAfter
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	return &Table{
		peers:      make(map[string]*PeerEntry),
		routes:     make(map[string]Route),
		staleAfter: cfg.StaleAfter,
		now:        cfg.Now,
	}
}

// UpsertPeer records or updates a direct neighbor.
func (t *Table) UpsertPeer(entry PeerEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := entry
	t.peers[entry.ID] = &cp
}

// RemovePeer drops a direct neighbor (e.g. on disconnect).
func (t *Table) RemovePeer(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.peers, id)
}

// Peer returns a copy of the peer entry for id, if known.
func (t *Table) Peer(id string) (PeerEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.peers[id]
	if !ok {
		return PeerEntry{}, false
	}
	return *p, true
}

// Peers returns a snapshot of all direct peers, sorted by ID for
// deterministic iteration.
func (t *Table) Peers() []PeerEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]PeerEntry, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdateRoute offers a candidate route to destID. It replaces the stored
// route only if the candidate wins the tie-break: smallest hop_count,
// then most recent updated_at, then lexicographically smallest next_hop.
func (t *Table) UpdateRoute(destID, nextHop string, hopCount int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	candidate := Route{NextHop: nextHop, HopCount: hopCount, UpdatedAt: t.now()}
	existing, ok := t.routes[destID]
	if !ok || candidateWins(existing, candidate) {
		t.routes[destID] = candidate
	}
}

// candidateWins reports whether candidate should replace existing.
func candidateWins(existing, candidate Route) bool {
	if candidate.HopCount != existing.HopCount {
		return candidate.HopCount < existing.HopCount
	}
	if !candidate.UpdatedAt.Equal(existing.UpdatedAt) {
		return candidate.UpdatedAt.After(existing.UpdatedAt)
	}
	return candidate.NextHop < existing.NextHop
}

// NextHopFor returns the best known route to destID, or false if there is
// none or the stored route has gone stale (and is pruned as a side effect).
func (t *Table) NextHopFor(destID string) (Route, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.routes[destID]
	if !ok {
		return Route{}, false
	}
	if t.now().Sub(r.UpdatedAt) > t.staleAfter {
		delete(t.routes, destID)
		return Route{}, false
	}
	return r, true
}

// PruneStale removes every route older than staleAfter and returns how
// many were removed.
func (t *Table) PruneStale() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	now := t.now()
	for dest, r := range t.routes {
		if now.Sub(r.UpdatedAt) > t.staleAfter {
			delete(t.routes, dest)
			removed++
		}
	}
	return removed
}
