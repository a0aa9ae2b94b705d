// Package recovery implements the social recovery splitter (C9): Shamir
// secret sharing of a 32-byte identity secret across a set of peers, with
// each share sealed to its holder under an X25519 HPKE envelope, and
// fingerprint-verified reconstitution.
package recovery

import (
	"crypto"
	"crypto/ecdh"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"github.com/silentmesh/mesh/crypto/keys"
)

// The caller-supplied fingerprint, passed as the HPKE info and AAD, binds
// each sealed share to the secret it was split from, so a share sealed for
// one split can never be mistaken for a share of another. The exporter
// output derived from shareExportContext/shareExportLen is unused here
// (Reconstitute verifies via the secret's own fingerprint instead) but
// HPKE's Export requires a positive length.
const shareExportContext = "silentmesh-recovery-share-export"
const shareExportLen = 32

// Share is one recipient's sealed fragment of a split secret, an HPKE
// packet (encapsulated key || AEAD ciphertext) self-contained for its
// holder's private key.
type Share struct {
	ShareID     byte
	Packet      []byte
	Threshold   int
	Fingerprint [32]byte
}

// Split divides secret into len(recipients) shares requiring threshold t,
// sealing share i to recipients[i] (an X25519 public key) under HPKE, with
// fingerprint bound in as the HPKE info/AAD context. fingerprint identifies
// the secret being split (e.g. a hash of the public key paired with it) so
// a recovering party can confirm it reconstituted the right thing before
// trusting it.
func Split(secret []byte, recipients [][]byte, t int, fingerprint [32]byte) ([]Share, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("secret must be non-empty")
	}
	raw, err := ShamirSplit(secret, len(recipients), t)
	if err != nil {
		return nil, err
	}

	shares := make([]Share, len(recipients))
	for i, recipientPub := range recipients {
		peer, err := ecdh.X25519().NewPublicKey(recipientPub)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient key for share %d: %w", i, err)
		}
		packet, _, err := keys.HPKESealAndExportToX25519Peer(peer, raw[i], fingerprint[:], []byte(shareExportContext), shareExportLen)
		if err != nil {
			return nil, fmt.Errorf("failed to seal share %d: %w", i, err)
		}
		shares[i] = Share{
			ShareID:     byte(i + 1),
			Packet:      packet,
			Threshold:   t,
			Fingerprint: fingerprint,
		}
	}
	return shares, nil
}

// Open decrypts a single share with the holder's X25519 private key,
// returning the raw share bytes the holder must guard until hand-off.
func Open(holder interface {
	PrivateKey() crypto.PrivateKey
}, s Share) ([]byte, error) {
	pt, _, err := keys.HPKEOpenAndExportWithX25519Priv(holder.PrivateKey(), s.Packet, s.Fingerprint[:], []byte(shareExportContext), shareExportLen)
	return pt, err
}

// Reseal re-encrypts an already-opened share fragment to the requester's
// new public key, the hand-off step share holders must perform instead of
// ever transmitting a share decrypted under the original recipient key.
func Reseal(fragment []byte, requesterPub []byte, shareID byte, threshold int, fingerprint [32]byte) (Share, error) {
	peer, err := ecdh.X25519().NewPublicKey(requesterPub)
	if err != nil {
		return Share{}, fmt.Errorf("invalid requester key: %w", err)
	}
	packet, _, err := keys.HPKESealAndExportToX25519Peer(peer, fragment, fingerprint[:], []byte(shareExportContext), shareExportLen)
	if err != nil {
		return Share{}, fmt.Errorf("failed to reseal share: %w", err)
	}
	return Share{
		ShareID:     shareID,
		Packet:      packet,
		Threshold:   threshold,
		Fingerprint: fingerprint,
	}, nil
}

// Reconstitute combines t or more opened fragments (plaintext shares,
// keyed by their ShareID) back into the secret and wipes the fragments
// from the caller's slices once it returns. wantFingerprint is compared
// against the supplied fingerprint hash function over the recovered
// secret; a mismatch means the collected shares did not belong together.
func Reconstitute(fragments map[byte][]byte, wantFingerprint [32]byte, fingerprintOf func(secret []byte) [32]byte) (secret []byte, err error) {
	if len(fragments) == 0 {
		return nil, fmt.Errorf("no share fragments provided")
	}

	xs := make([]byte, 0, len(fragments))
	vals := make([][]byte, 0, len(fragments))
	for id, frag := range fragments {
		xs = append(xs, id)
		vals = append(vals, frag)
	}
	defer func() {
		for _, f := range vals {
			wipe(f)
		}
	}()

	secret, err = ShamirCombine(xs, vals)
	if err != nil {
		return nil, err
	}

	got := fingerprintOf(secret)
	if subtle.ConstantTimeCompare(got[:], wantFingerprint[:]) != 1 {
		wipe(secret)
		return nil, fmt.Errorf("recovered secret fingerprint mismatch")
	}
	return secret, nil
}

// Fingerprint is the default fingerprint function: SHA-256 of the secret.
func Fingerprint(secret []byte) [32]byte {
	return sha256.Sum256(secret)
}

// wipe zeroes b in place. Go's GC may still retain copies made before
// this call; it guards against the single remaining live reference.
func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
