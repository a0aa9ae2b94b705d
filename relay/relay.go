// Package relay implements the message router: the inbound verify/dedup/
// deliver/forward pipeline and the outbound sign/mark-seen/enqueue path.
package relay

import (
	"crypto/ed25519"
	"errors"

	"github.com/silentmesh/mesh/crypto/keys"
	"github.com/silentmesh/mesh/dedup"
	mesherrs "github.com/silentmesh/mesh/errors"
	"github.com/silentmesh/mesh/internal/metrics"
	"github.com/silentmesh/mesh/routing"
	"github.com/silentmesh/mesh/wire"
)

// Destination resolves who a decoded message is meant for. The wire header
// itself carries no destination field — addressing lives in the payload,
// which only the caller can interpret (it may still be AEAD ciphertext at
// this layer) — so the relay asks the caller rather than inventing one.
type Destination struct {
	ID        string
	Broadcast bool
}

// Resolver determines a message's destination and whether it should be
// delivered to this node.
type Resolver func(m *wire.Message) Destination

// Deps wires the collaborators the relay needs but does not own.
type Deps struct {
	Dedup        *dedup.Cache
	Routes       *routing.Table
	LocalPeerID  string
	Resolve      Resolver
	DirectPeers  func() []string                 // IDs of all directly connected peers
	DeliverLocal func(m *wire.Message)            // local delivery callback
	Enqueue      func(peerID string, m *wire.Message) // hand off to C5 for peerID
}

// Relay implements the C6 inbound/outbound pipeline.
type Relay struct {
	deps   Deps
	decode wire.DecodeConfig
}

// New constructs a Relay. decode bounds what Inbound will accept.
func New(deps Deps, decode wire.DecodeConfig) *Relay {
	return &Relay{deps: deps, decode: decode}
}

// Inbound runs the full 7-step algorithm on a raw frame received from
// fromPeer. A nil error with no local delivery and no forward means the
// message was silently dropped (duplicate, or not addressed here and TTL
// exhausted) — that is not a failure.
func (r *Relay) Inbound(raw []byte, fromPeer string) error {
	m, err := wire.Decode(raw, r.decode)
	if err != nil {
		// Terminal per the error policy: signature/version/skew failures are
		// counted as bad_message and returned, never delivered or forwarded.
		metrics.MessagesProcessed.WithLabelValues("bad_message").Inc()
		if errors.Is(err, mesherrs.ErrSignatureMismatch) {
			metrics.CryptoOperations.WithLabelValues("verify", "ed25519").Inc()
			metrics.CryptoErrors.WithLabelValues("verify").Inc()
		}
		return err
	}
	metrics.CryptoOperations.WithLabelValues("verify", "ed25519").Inc()

	fp := wire.Fingerprint(m)
	if r.deps.Dedup.HasSeen(fp) {
		metrics.DuplicatesDropped.Inc()
		return nil // duplicate: drop silently, do not forward or redeliver
	}
	r.deps.Dedup.MarkSeen(fp)

	dest := r.deps.Resolve(m)
	if dest.Broadcast || dest.ID == r.deps.LocalPeerID {
		metrics.MessagesProcessed.WithLabelValues("delivered_local").Inc()
		r.deps.DeliverLocal(m)
	}

	if m.Header.TTL == 0 {
		metrics.MessagesProcessed.WithLabelValues("ttl_exhausted").Inc()
		return nil
	}

	relayed := wire.WithDecrementedTTL(m)
	senderID := keys.PeerIDFromEd25519(m.Header.SenderID[:])
	targets := r.relayTargets(dest, fromPeer, senderID)
	for _, peer := range targets {
		metrics.MessagesProcessed.WithLabelValues("forwarded").Inc()
		r.deps.Enqueue(peer, relayed)
	}
	return nil
}

// relayTargets computes all_direct_peers \ {fromPeer, sender_id}, narrowed
// to the known next hop when dest names a specific destination with a
// routing table entry.
func (r *Relay) relayTargets(dest Destination, fromPeer, senderID string) []string {
	excluded := map[string]bool{fromPeer: true, senderID: true}

	if !dest.Broadcast && dest.ID != "" {
		if route, ok := r.deps.Routes.NextHopFor(dest.ID); ok && !excluded[route.NextHop] {
			return []string{route.NextHop}
		}
	}

	all := r.deps.DirectPeers()
	out := make([]string, 0, len(all))
	for _, p := range all {
		if !excluded[p] {
			out = append(out, p)
		}
	}
	return out
}

// Outbound constructs, signs, marks-seen (so a reflected copy of our own
// message is dropped rather than redelivered), and enqueues a locally
// originated message to each of the given peers.
func (r *Relay) Outbound(h wire.Header, payload []byte, priv ed25519.PrivateKey, peers []string) *wire.Message {
	wire.Sign(&h, payload, priv)
	metrics.CryptoOperations.WithLabelValues("sign", "ed25519").Inc()
	m := &wire.Message{Header: h, Payload: payload}
	r.deps.Dedup.MarkSeen(wire.Fingerprint(m))
	for _, peer := range peers {
		r.deps.Enqueue(peer, m)
	}
	return m
}

// InboundError classifies a decode failure as a BadMessage for metrics,
// matching the error taxonomy's "terminal and silent" policy for input and
// cryptographic errors.
func InboundError(err error) error {
	if err == nil {
		return nil
	}
	return mesherrs.NewBadMessage(err.Error())
}

