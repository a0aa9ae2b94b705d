package node

import "github.com/silentmesh/mesh/wire"

// EventKind enumerates the event stream a node subscriber can observe.
type EventKind uint8

const (
	EventOnMessage EventKind = iota
	EventOnPeerConnected
	EventOnPeerDisconnected
	EventOnQuotaWarning
	EventOnDeliveryStatusChanged
)

// Event is a single notification delivered to subscribers of a Node's
// event stream.
type Event struct {
	Kind EventKind

	// EventOnMessage
	From    string
	Message *wire.Message

	// EventOnPeerConnected / EventOnPeerDisconnected
	PeerID string
	Reason string

	// EventOnQuotaWarning
	QuotaStatus string

	// EventOnDeliveryStatusChanged
	MessageID string
	Status    string
}

// Subscription is a channel of Events a subscriber reads from. Close
// stops delivery and frees the subscription's slot.
type Subscription struct {
	ch     chan Event
	cancel func()
}

// Events returns the channel to range over.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() { s.cancel() }
