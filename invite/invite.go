// Package invite implements signed, time-bounded mesh invites and their
// compact QR-sized wire form (C11).
package invite

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// DefaultTTL is the invite lifetime used when opts.TTL is zero.
const DefaultTTL = 7 * 24 * time.Hour

// CreateOptions configures a new invite.
type CreateOptions struct {
	InviterPeerID      string
	InviterPublicKey   ed25519.PublicKey
	InviterPrivateKey  ed25519.PrivateKey
	InviterName        string
	TTL                time.Duration
	BootstrapPeers     []string
	Metadata           map[string]string
	Now                time.Time
}

// Invite is a pending invitation recorded by the issuing node.
type Invite struct {
	Code             string
	InviterPeerID    string
	InviterPublicKey ed25519.PublicKey
	InviterName      string
	CreatedAt        time.Time
	ExpiresAt        time.Time
	Signature        []byte
	BootstrapPeers   []string
	Metadata         map[string]string
	Redeemed         bool
}

// signedBytes is what create_invite signs: the invite fields minus the
// signature itself, concatenated deterministically.
func signedBytes(code, inviterPeerID string, pub ed25519.PublicKey, createdAt, expiresAt time.Time) []byte {
	buf := make([]byte, 0, 128)
	buf = append(buf, []byte(code)...)
	buf = append(buf, []byte(inviterPeerID)...)
	buf = append(buf, pub...)
	buf = append(buf, []byte(createdAt.UTC().Format(time.RFC3339Nano))...)
	buf = append(buf, []byte(expiresAt.UTC().Format(time.RFC3339Nano))...)
	return buf
}

// CreateInvite generates a random 32-byte code (64 hex chars), signs it
// with the inviter's private key, and returns the recorded invite.
func CreateInvite(opts CreateOptions) (*Invite, error) {
	codeBytes := make([]byte, 32)
	if _, err := rand.Read(codeBytes); err != nil {
		return nil, fmt.Errorf("failed to generate invite code: %w", err)
	}
	code := hex.EncodeToString(codeBytes)

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	ttl := opts.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	expiresAt := now.Add(ttl)

	sig := ed25519.Sign(opts.InviterPrivateKey, signedBytes(code, opts.InviterPeerID, opts.InviterPublicKey, now, expiresAt))

	return &Invite{
		Code:             code,
		InviterPeerID:    opts.InviterPeerID,
		InviterPublicKey: opts.InviterPublicKey,
		InviterName:      opts.InviterName,
		CreatedAt:        now,
		ExpiresAt:        expiresAt,
		Signature:        sig,
		BootstrapPeers:   opts.BootstrapPeers,
		Metadata:         opts.Metadata,
	}, nil
}

// ValidationResult is the outcome of validating an invite code.
type ValidationResult int

const (
	ValidationOK ValidationResult = iota
	ValidationExpired
	ValidationUnknown
	ValidationBadSignature
)

func (v ValidationResult) String() string {
	switch v {
	case ValidationOK:
		return "OK"
	case ValidationExpired:
		return "EXPIRED"
	case ValidationUnknown:
		return "UNKNOWN"
	case ValidationBadSignature:
		return "BAD_SIGNATURE"
	default:
		return "UNKNOWN_RESULT"
	}
}

// Contact is the verified outcome of redeeming an invite.
type Contact struct {
	PeerID    string
	PublicKey ed25519.PublicKey
	Name      string
}

// Registry tracks pending invites by code: validate/redeem state machine.
type Registry struct {
	mu      sync.Mutex
	invites map[string]*Invite
	now     func() time.Time
}

// NewRegistry constructs an empty invite Registry.
func NewRegistry() *Registry {
	return &Registry{invites: make(map[string]*Invite), now: time.Now}
}

// Record stores inv for later validate/redeem calls.
func (r *Registry) Record(inv *Invite) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invites[inv.Code] = inv
}

// Validate reports the state of code without consuming it.
func (r *Registry) Validate(code string) (*Invite, ValidationResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.validateLocked(code)
}

func (r *Registry) validateLocked(code string) (*Invite, ValidationResult) {
	inv, ok := r.invites[code]
	if !ok || inv.Redeemed {
		return nil, ValidationUnknown
	}
	if r.now().After(inv.ExpiresAt) {
		return nil, ValidationExpired
	}
	sig := signedBytes(inv.Code, inv.InviterPeerID, inv.InviterPublicKey, inv.CreatedAt, inv.ExpiresAt)
	if !ed25519.Verify(inv.InviterPublicKey, sig, inv.Signature) {
		return nil, ValidationBadSignature
	}
	return inv, ValidationOK
}

// Redeem consumes code — once redeemed, subsequent Validate calls return
// ValidationUnknown — and returns the verified Contact for recipient to
// add.
func (r *Registry) Redeem(code string) (*Contact, ValidationResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inv, result := r.validateLocked(code)
	if result != ValidationOK {
		return nil, result
	}
	inv.Redeemed = true
	return &Contact{PeerID: inv.InviterPeerID, PublicKey: inv.InviterPublicKey, Name: inv.InviterName}, ValidationOK
}
