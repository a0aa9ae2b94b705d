// Package ledger implements the Silent Mesh neighbor/contact bookkeeping
// and the Eternal Ledger (C10): three strictly separate sets — mesh
// neighbors, potential contacts, and the ledger of every peer ever
// observed — plus watering-hole store-and-forward for offline recipients
// and a light-ping reachability probe.
package ledger

import (
	"bytes"
	"sort"
	"sync"
	"time"
)

// Neighbor is a technical mesh connection, populated automatically on
// discovery. Neighbors never appear in the user's contact list.
type Neighbor struct {
	NodeID      string
	ConnectedAt time.Time
}

// Contact is a potential-contact entry: created by user action or inbound
// messaging, promoted to a full contact only by explicit user action.
type Contact struct {
	NodeID    string
	CreatedAt time.Time
	Promoted  bool
}

// LedgerEntry records every sighting of a peer ever observed by this node.
type LedgerEntry struct {
	NodeID    string
	PublicKey []byte
	FirstSeen time.Time
	LastSeen  time.Time
}

// Mesh owns the three sets. Neighbors and potential contacts are cleared
// on identity reset; the Eternal Ledger never is.
type Mesh struct {
	mu        sync.RWMutex
	neighbors map[string]*Neighbor
	contacts  map[string]*Contact
	ledger    map[string]*LedgerEntry
	now       func() time.Time
}

// NewMesh constructs an empty Mesh.
func NewMesh() *Mesh {
	return &Mesh{
		neighbors: make(map[string]*Neighbor),
		contacts:  make(map[string]*Contact),
		ledger:    make(map[string]*LedgerEntry),
		now:       time.Now,
	}
}

// RecordSighting updates the Eternal Ledger for nodeID: stamping
// first_seen on first observation and last_seen on every call. If
// publicKey is non-empty and the ledger already recorded a different key
// for this node, the sighting is rejected as a spoof attempt and the
// stored key is left untouched.
func (m *Mesh) RecordSighting(nodeID string, publicKey []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry, ok := m.ledger[nodeID]
	if !ok {
		cp := append([]byte(nil), publicKey...)
		m.ledger[nodeID] = &LedgerEntry{NodeID: nodeID, PublicKey: cp, FirstSeen: now, LastSeen: now}
		return true
	}

	if len(publicKey) > 0 && len(entry.PublicKey) > 0 && !bytes.Equal(entry.PublicKey, publicKey) {
		return false
	}
	if len(publicKey) > 0 && len(entry.PublicKey) == 0 {
		entry.PublicKey = append([]byte(nil), publicKey...)
	}
	entry.LastSeen = now
	return true
}

// ValidateNodeIdentity reports true iff the ledger has no stored key for
// nodeID, or the stored key equals publicKey.
func (m *Mesh) ValidateNodeIdentity(nodeID string, publicKey []byte) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.ledger[nodeID]
	if !ok || len(entry.PublicKey) == 0 {
		return true
	}
	return bytes.Equal(entry.PublicKey, publicKey)
}

// LedgerEntryFor returns the Eternal Ledger entry for nodeID, if any.
func (m *Mesh) LedgerEntryFor(nodeID string) (LedgerEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.ledger[nodeID]
	if !ok {
		return LedgerEntry{}, false
	}
	return *e, true
}

// RecentlyActive returns ledger entries with LastSeen within window of
// now, sorted most-recent first. Used by light-ping to pick probe
// candidates.
func (m *Mesh) RecentlyActive(now time.Time, window time.Duration) []LedgerEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []LedgerEntry
	for _, e := range m.ledger {
		if now.Sub(e.LastSeen) <= window {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	return out
}

// AddNeighbor records a technical mesh connection to nodeID.
func (m *Mesh) AddNeighbor(nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.neighbors[nodeID] = &Neighbor{NodeID: nodeID, ConnectedAt: m.now()}
}

// RemoveNeighbor drops a technical mesh connection.
func (m *Mesh) RemoveNeighbor(nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.neighbors, nodeID)
}

// Neighbors lists current technical connections, sorted by node ID.
func (m *Mesh) Neighbors() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.neighbors))
	for id := range m.neighbors {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// TrackPotentialContact creates a pending potential-contact entry for
// nodeID if one does not already exist, from an inbound message or
// explicit user tracking request.
func (m *Mesh) TrackPotentialContact(nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contacts[nodeID]; ok {
		return
	}
	m.contacts[nodeID] = &Contact{NodeID: nodeID, CreatedAt: m.now()}
}

// MarkAsPromoted promotes nodeID out of pending requests into the user's
// contact list. Promotion is always user-driven; callers must not call
// this automatically on inbound messages.
func (m *Mesh) MarkAsPromoted(nodeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[nodeID]
	if !ok {
		return false
	}
	c.Promoted = true
	return true
}

// PendingRequests lists potential contacts awaiting promotion, sorted by
// node ID.
func (m *Mesh) PendingRequests() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for id, c := range m.contacts {
		if !c.Promoted {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// PromotedContacts lists nodes promoted to full contacts, sorted by node
// ID.
func (m *Mesh) PromotedContacts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for id, c := range m.contacts {
		if c.Promoted {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// ResetIdentity clears mesh neighbors and potential contacts, as part of
// an identity reset. The Eternal Ledger is never cleared by this call;
// the watering-hole queue is cleared separately by the caller holding it.
func (m *Mesh) ResetIdentity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.neighbors = make(map[string]*Neighbor)
	m.contacts = make(map[string]*Contact)
}
