package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSTransport implements Transport over persistent WebSocket connections.
// Unlike a request/response RPC transport, every connection here is a raw,
// bidirectional pipe for already-framed mesh wire bytes: nothing above
// this layer waits for a reply on the same round trip.
type WSTransport struct {
	localPeerID string
	dialTimeout time.Duration
	writeTimeout time.Duration
	readTimeout time.Duration

	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*websocket.Conn // peerID -> connection
	state map[string]State

	events Events
}

// NewWSTransport constructs a WSTransport identifying itself as localPeerID.
func NewWSTransport(localPeerID string) *WSTransport {
	return &WSTransport{
		localPeerID:  localPeerID,
		dialTimeout:  30 * time.Second,
		writeTimeout: 30 * time.Second,
		readTimeout:  60 * time.Second,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		conns: make(map[string]*websocket.Conn),
		state: make(map[string]State),
	}
}

func (t *WSTransport) Name() string        { return "websocket" }
func (t *WSTransport) LocalPeerID() string { return t.localPeerID }

// Start records the event callbacks this transport should drive. The
// caller is still responsible for mounting Handler() on an HTTP server to
// accept inbound connections.
func (t *WSTransport) Start(events Events) error {
	t.mu.Lock()
	t.events = events
	t.mu.Unlock()
	return nil
}

// Stop closes every tracked connection.
func (t *WSTransport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for peerID, conn := range t.conns {
		_ = conn.Close()
		delete(t.conns, peerID)
		t.setStateLocked(peerID, StateClosed)
	}
	return nil
}

// Connect dials peerID's WebSocket endpoint, carried in signaling as a raw
// URL (e.g. "wss://host/mesh/ws").
func (t *WSTransport) Connect(ctx context.Context, peerID string, signaling []byte) error {
	t.setState(peerID, StateConnecting)

	dialer := &websocket.Dialer{HandshakeTimeout: t.dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, string(signaling), nil)
	if err != nil {
		t.setState(peerID, StateFailed)
		if resp != nil {
			return fmt.Errorf("websocket dial to %s failed (HTTP %d): %w", peerID, resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial to %s failed: %w", peerID, err)
	}

	t.mu.Lock()
	t.conns[peerID] = conn
	t.mu.Unlock()
	t.setState(peerID, StateConnected)

	go t.readLoop(peerID, conn)
	return nil
}

// Disconnect closes the connection to peerID, if any.
func (t *WSTransport) Disconnect(peerID string) error {
	t.mu.Lock()
	conn, ok := t.conns[peerID]
	delete(t.conns, peerID)
	t.mu.Unlock()

	if !ok {
		return nil
	}
	err := conn.Close()
	t.setState(peerID, StateDisconnected)
	return err
}

// Send writes payload as a single binary WebSocket frame to peerID.
func (t *WSTransport) Send(ctx context.Context, peerID string, payload []byte) error {
	t.mu.RLock()
	conn, ok := t.conns[peerID]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("websocket: not connected to %s", peerID)
	}

	if err := conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		t.setState(peerID, StateFailed)
		return fmt.Errorf("websocket send to %s failed: %w", peerID, err)
	}
	return nil
}

// Broadcast sends payload to every peer in exclude's complement.
func (t *WSTransport) Broadcast(ctx context.Context, payload []byte, exclude ...string) error {
	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}

	t.mu.RLock()
	peers := make([]string, 0, len(t.conns))
	for peerID := range t.conns {
		if !skip[peerID] {
			peers = append(peers, peerID)
		}
	}
	t.mu.RUnlock()

	var firstErr error
	for _, peerID := range peers {
		if err := t.Send(ctx, peerID, payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *WSTransport) ConnectionState(peerID string) State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state[peerID]
}

func (t *WSTransport) PeerInfo(peerID string) (PeerInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	conn, ok := t.conns[peerID]
	if !ok {
		return PeerInfo{}, false
	}
	return PeerInfo{PeerID: peerID, Address: conn.RemoteAddr().String()}, true
}

// Handler upgrades inbound HTTP requests to WebSocket connections. The
// caller identifies the remote peer (e.g. from a handshake query param or
// header) and passes it in; the mesh layer authenticates the peer by
// verifying the first signed frame it receives, not by transport identity.
func (t *WSTransport) Handler(peerIDFromRequest func(r *http.Request) string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		peerID := peerIDFromRequest(r)
		conn, err := t.upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, fmt.Sprintf("websocket upgrade failed: %v", err), http.StatusBadRequest)
			return
		}

		t.mu.Lock()
		t.conns[peerID] = conn
		t.mu.Unlock()
		t.setState(peerID, StateConnected)
		if t.events.OnPeerConnected != nil {
			t.events.OnPeerConnected(peerID, PeerInfo{PeerID: peerID, Address: conn.RemoteAddr().String()})
		}

		t.readLoop(peerID, conn)
	})
}

func (t *WSTransport) readLoop(peerID string, conn *websocket.Conn) {
	defer func() {
		t.mu.Lock()
		delete(t.conns, peerID)
		t.mu.Unlock()
		t.setState(peerID, StateDisconnected)
		if t.events.OnPeerDisconnected != nil {
			t.events.OnPeerDisconnected(peerID, "connection closed")
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(t.readTimeout)); err != nil {
			return
		}
		kind, payload, err := conn.ReadMessage()
		if err != nil {
			if t.events.OnError != nil && websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				t.events.OnError(fmt.Errorf("websocket read from %s: %w", peerID, err))
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		if t.events.OnMessage != nil {
			t.events.OnMessage(InboundMessage{From: peerID, Payload: payload, Timestamp: time.Now()})
		}
	}
}

func (t *WSTransport) setState(peerID string, s State) {
	t.mu.Lock()
	t.setStateLocked(peerID, s)
	events := t.events
	t.mu.Unlock()
	if events.OnStateChange != nil {
		events.OnStateChange(peerID, s)
	}
}

func (t *WSTransport) setStateLocked(peerID string, s State) {
	t.state[peerID] = s
}
