// Package wire implements the canonical, signed, length-prefixed framing
// used on every mesh transport: the Header/Message types, deterministic
// encode/decode, the signature envelope, and the dedup fingerprint.
package wire

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	mesherrs "github.com/silentmesh/mesh/errors"
)

// MessageType enumerates the wire message kinds.
type MessageType uint8

const (
	MessageTypeText MessageType = iota + 1
	MessageTypeControl
	MessageTypeFile
	MessageTypeVoice
	MessageTypeStoreShare
	MessageTypeRequestShare
	MessageTypeResponseShare
	MessageTypeHeartbeat
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeText:
		return "TEXT"
	case MessageTypeControl:
		return "CONTROL"
	case MessageTypeFile:
		return "FILE"
	case MessageTypeVoice:
		return "VOICE"
	case MessageTypeStoreShare:
		return "STORE_SHARE"
	case MessageTypeRequestShare:
		return "REQUEST_SHARE"
	case MessageTypeResponseShare:
		return "RESPONSE_SHARE"
	case MessageTypeHeartbeat:
		return "HEARTBEAT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// CurrentVersion is the only version this codec emits. AcceptedVersions is
// the set decode() will accept without refusing as Unsupported.
const CurrentVersion uint8 = 1

var AcceptedVersions = map[uint8]bool{1: true}

const (
	senderIDLen  = 32
	signatureLen = 64
	headerLen    = 1 + 1 + 1 + 8 + senderIDLen + signatureLen // version,type,ttl,timestamp,sender,sig
)

// Header is the signed envelope of every mesh message.
type Header struct {
	Version   uint8
	Type      MessageType
	TTL       uint8
	Timestamp uint64 // milliseconds since epoch
	SenderID  [senderIDLen]byte
	Signature [signatureLen]byte
}

// Message is a header plus its opaque payload, which may itself be an AEAD
// ciphertext when end-to-end confidentiality is required for a recipient.
type Message struct {
	Header  Header
	Payload []byte
}

// DecodeConfig bounds what decode() will accept.
type DecodeConfig struct {
	MaxPayloadBytes int
	MaxSkewPast     time.Duration
	MaxSkewFuture   time.Duration
	Now             func() time.Time
}

// DefaultDecodeConfig matches spec defaults (1 MiB payload, 48h/5m skew).
func DefaultDecodeConfig() DecodeConfig {
	return DecodeConfig{
		MaxPayloadBytes: 1048576,
		MaxSkewPast:     48 * time.Hour,
		MaxSkewFuture:   5 * time.Minute,
		Now:             time.Now,
	}
}

// Encode serializes m deterministically: version||type||ttl||timestamp||
// sender_id||signature||payload_len||payload, all integers big-endian.
func Encode(m *Message) []byte {
	buf := make([]byte, headerLen+4+len(m.Payload))
	off := 0
	buf[off] = m.Header.Version
	off++
	buf[off] = byte(m.Header.Type)
	off++
	buf[off] = m.Header.TTL
	off++
	binary.BigEndian.PutUint64(buf[off:], m.Header.Timestamp)
	off += 8
	copy(buf[off:], m.Header.SenderID[:])
	off += senderIDLen
	copy(buf[off:], m.Header.Signature[:])
	off += signatureLen
	binary.BigEndian.PutUint32(buf[off:], uint32(len(m.Payload)))
	off += 4
	copy(buf[off:], m.Payload)
	return buf
}

// signingBytes returns the canonical encoding of m with the signature field
// zeroed, followed by the payload — exactly what Sign/Verify operate over.
func signingBytes(h Header, payload []byte) []byte {
	zeroed := h
	zeroed.Signature = [signatureLen]byte{}
	msg := &Message{Header: zeroed, Payload: payload}
	full := Encode(msg)
	// Encode already appends payload once; signingBytes per spec is
	// canonical(header_without_sig) || payload, which for our framing is
	// the same bytes as Encode with a zeroed signature.
	return full
}

// Sign fills in h.Signature (and h.SenderID, from the public key) by
// signing the canonical header-with-zeroed-signature concatenated with
// payload, using priv.
func Sign(h *Header, payload []byte, priv ed25519.PrivateKey) {
	pub := priv.Public().(ed25519.PublicKey)
	copy(h.SenderID[:], pub)
	h.Signature = [signatureLen]byte{}
	sig := ed25519.Sign(priv, signingBytes(*h, payload))
	copy(h.Signature[:], sig)
}

// Verify reports whether m's signature is valid for its embedded sender_id.
func Verify(m *Message) bool {
	pub := ed25519.PublicKey(m.Header.SenderID[:])
	msg := signingBytes(m.Header, m.Payload)
	return ed25519.Verify(pub, msg, m.Header.Signature[:])
}

// Fingerprint computes SHA-256(sender_id || timestamp || type || payload).
// TTL is deliberately excluded so a relayed message — which only
// decrements ttl while preserving the original signature — keeps the same
// dedup identity as the message that arrived.
func Fingerprint(m *Message) [32]byte {
	buf := make([]byte, 0, senderIDLen+8+1+len(m.Payload))
	buf = append(buf, m.Header.SenderID[:]...)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], m.Header.Timestamp)
	buf = append(buf, ts[:]...)
	buf = append(buf, byte(m.Header.Type))
	buf = append(buf, m.Payload...)
	return sha256.Sum256(buf)
}

// Decode parses, validates, and signature-checks buf per cfg. It never
// returns a partial value: on any error the returned message is nil.
func Decode(buf []byte, cfg DecodeConfig) (*Message, error) {
	if len(buf) < headerLen+4 {
		return nil, mesherrs.NewBadMessage("buffer too short for header")
	}

	off := 0
	version := buf[off]
	off++
	msgType := MessageType(buf[off])
	off++
	ttl := buf[off]
	off++
	timestamp := binary.BigEndian.Uint64(buf[off:])
	off += 8
	var senderID [senderIDLen]byte
	copy(senderID[:], buf[off:off+senderIDLen])
	off += senderIDLen
	var signature [signatureLen]byte
	copy(signature[:], buf[off:off+signatureLen])
	off += signatureLen
	payloadLen := binary.BigEndian.Uint32(buf[off:])
	off += 4

	if !AcceptedVersions[version] {
		return nil, fmt.Errorf("%w: version %d", mesherrs.ErrUnsupported, version)
	}
	if int(payloadLen) > cfg.MaxPayloadBytes {
		return nil, mesherrs.NewBadMessage("payload exceeds max_payload_bytes")
	}
	if len(buf)-off != int(payloadLen) {
		return nil, mesherrs.NewBadMessage("payload length mismatch")
	}

	payload := make([]byte, payloadLen)
	copy(payload, buf[off:])

	m := &Message{
		Header: Header{
			Version:   version,
			Type:      msgType,
			TTL:       ttl,
			Timestamp: timestamp,
			SenderID:  senderID,
			Signature: signature,
		},
		Payload: payload,
	}

	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}
	msgTime := time.UnixMilli(int64(timestamp))
	nowTime := now()
	if msgTime.Before(nowTime.Add(-cfg.MaxSkewPast)) || msgTime.After(nowTime.Add(cfg.MaxSkewFuture)) {
		return nil, mesherrs.NewBadMessage("timestamp outside accepted skew window")
	}

	if !Verify(m) {
		return nil, mesherrs.ErrSignatureMismatch
	}

	return m, nil
}

// WithDecrementedTTL returns a copy of m with TTL decremented by one and
// every other header field, including the signature, bit-for-bit
// unchanged — relay invariant 4 in the spec.
func WithDecrementedTTL(m *Message) *Message {
	out := &Message{Header: m.Header, Payload: m.Payload}
	if out.Header.TTL > 0 {
		out.Header.TTL--
	}
	return out
}
