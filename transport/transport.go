// Package transport defines the transport-abstract connection interface
// (C7) and the manager that multiplexes concrete transports with retry,
// fallback, and per-peer connection state tracking.
package transport

import (
	"context"
	"time"
)

// State is a per-peer-per-transport connection state.
type State uint8

const (
	StateNew State = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnected:
		return "DISCONNECTED"
	case StateFailed:
		return "FAILED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// PeerInfo is what a transport knows about a remote peer's address/session.
type PeerInfo struct {
	PeerID   string
	Address  string
	Metadata map[string]string
}

// InboundMessage is what a transport hands the manager on arrival.
type InboundMessage struct {
	From      string
	Payload   []byte
	Timestamp time.Time
}

// Events is the set of callbacks a Transport drives. Every field is
// optional; a nil callback is simply not invoked.
type Events struct {
	OnMessage         func(InboundMessage)
	OnPeerConnected   func(peerID string, info PeerInfo)
	OnPeerDisconnected func(peerID string, reason string)
	OnStateChange     func(peerID string, state State)
	OnError           func(err error)
}

// Transport is a concrete transport protocol (WebSocket, BLE, WebRTC,
// mDNS, …). The manager owns zero or more of these and fans traffic
// across whichever are available for a given peer.
type Transport interface {
	Name() string
	LocalPeerID() string
	Start(events Events) error
	Stop() error
	Connect(ctx context.Context, peerID string, signaling []byte) error
	Disconnect(peerID string) error
	Send(ctx context.Context, peerID string, payload []byte) error
	Broadcast(ctx context.Context, payload []byte, exclude ...string) error
	ConnectionState(peerID string) State
	PeerInfo(peerID string) (PeerInfo, bool)
}
