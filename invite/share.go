package invite

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	mesherrs "github.com/silentmesh/mesh/errors"
)

// CurrentMajorVersion is the SharePayload wire version this node produces
// and accepts. A payload whose major version differs is rejected as
// mesherrs.ErrUnsupported.
const CurrentMajorVersion = 1

// MaxShareBytes bounds the encoded SharePayload so it fits a QR code.
const MaxShareBytes = 1024

// MaxSkew is the allowed clock skew, in either direction, for a
// SharePayload's timestamp.
const MaxSkew = 5 * time.Minute

// sharePeer is one bootstrap peer entry inside a bootstrap blob (compact
// keys per spec §6: i=peerId, c=connected 0|1).
type sharePeer struct {
	I string `json:"i"`
	C int    `json:"c"`
}

// SharePayload is the compact wire form of an Invite, sized for a QR
// code. Field names are deliberately short; checksum covers every other
// field's deterministic JSON encoding.
type SharePayload struct {
	V  int         `json:"v"`
	C  string      `json:"c"`            // invite code
	IP string      `json:"ip"`           // inviter peer id
	IK string      `json:"ik"`           // inviter public key, hex
	IN string      `json:"in,omitempty"` // inviter name
	E  int64       `json:"e"`            // expires_at, unix seconds
	T  int64       `json:"t"`            // timestamp, unix seconds
	P  []sharePeer `json:"p,omitempty"`  // bootstrap peers, max 20
	CS string      `json:"cs"`           // checksum, hex sha256
}

// maxBootstrapPeers caps how many bootstrap peers are embedded; excess
// entries are truncated per spec §6.
const maxBootstrapPeers = 20

// NewSharePayload builds a SharePayload from inv, truncating bootstrap
// peers beyond maxBootstrapPeers.
func NewSharePayload(inv *Invite, connectedPeers map[string]bool, now time.Time) *SharePayload {
	peers := make([]sharePeer, 0, len(inv.BootstrapPeers))
	for i, p := range inv.BootstrapPeers {
		if i >= maxBootstrapPeers {
			break
		}
		c := 0
		if connectedPeers[p] {
			c = 1
		}
		peers = append(peers, sharePeer{I: p, C: c})
	}

	sp := &SharePayload{
		V:  CurrentMajorVersion,
		C:  inv.Code,
		IP: inv.InviterPeerID,
		IK: hex.EncodeToString(inv.InviterPublicKey),
		IN: inv.InviterName,
		E:  inv.ExpiresAt.Unix(),
		T:  now.Unix(),
		P:  peers,
	}
	sp.CS = sp.computeChecksum()
	return sp
}

// computeChecksum is SHA-256 over the deterministic JSON encoding of sp
// with CS cleared.
func (sp *SharePayload) computeChecksum() string {
	cp := *sp
	cp.CS = ""
	raw, _ := json.Marshal(cp)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Encode serializes sp to compact JSON, base64url-encoded, rejecting
// payloads too large for a QR code.
func (sp *SharePayload) Encode() (string, error) {
	raw, err := json.Marshal(sp)
	if err != nil {
		return "", fmt.Errorf("failed to encode share payload: %w", err)
	}
	if len(raw) > MaxShareBytes {
		return "", mesherrs.NewTooLarge(len(raw))
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeSharePayload parses and validates a payload produced by Encode:
// checksum must match, version must share CurrentMajorVersion, and
// timestamp must lie within MaxSkew of now.
func DecodeSharePayload(encoded string, now time.Time) (*SharePayload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode share payload: %w", err)
	}
	if len(raw) > MaxShareBytes {
		return nil, mesherrs.NewTooLarge(len(raw))
	}

	var sp SharePayload
	if err := json.Unmarshal(raw, &sp); err != nil {
		return nil, fmt.Errorf("failed to parse share payload: %w", err)
	}

	if sp.V != CurrentMajorVersion {
		return nil, mesherrs.ErrUnsupported
	}
	if sp.computeChecksum() != sp.CS {
		return nil, fmt.Errorf("share payload checksum mismatch")
	}

	ts := time.Unix(sp.T, 0)
	skew := now.Sub(ts)
	if skew < 0 {
		skew = -skew
	}
	if skew > MaxSkew {
		return nil, fmt.Errorf("share payload timestamp outside allowed skew")
	}
	return &sp, nil
}
