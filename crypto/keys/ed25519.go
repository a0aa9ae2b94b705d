// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later


package keys

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"strings"

	meshcrypto "github.com/silentmesh/mesh/crypto"
)

// ed25519KeyPair implements the KeyPair interface for the node's Ed25519
// signing identity.
type ed25519KeyPair struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	id         string
}

// GenerateEd25519KeyPair generates a new Ed25519 identity key pair.
func GenerateEd25519KeyPair() (meshcrypto.KeyPair, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return newEd25519KeyPair(privateKey, publicKey), nil
}

// NewEd25519KeyPair wraps an existing private key, assigning it the given
// key ID if non-empty, or deriving the canonical ID otherwise. Used by the
// JWK/PEM importers to reconstruct a key pair from serialized material.
func NewEd25519KeyPair(privateKey ed25519.PrivateKey, id string) (meshcrypto.KeyPair, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, meshcrypto.ErrInvalidKeyLength
	}
	publicKey := privateKey.Public().(ed25519.PublicKey)
	kp := newEd25519KeyPair(privateKey, publicKey)
	if id != "" {
		kp.id = id
	}
	return kp, nil
}

func newEd25519KeyPair(privateKey ed25519.PrivateKey, publicKey ed25519.PublicKey) *ed25519KeyPair {
	return &ed25519KeyPair{
		privateKey: privateKey,
		publicKey:  publicKey,
		id:         PeerIDFromEd25519(publicKey),
	}
}

// PeerIDFromEd25519 derives the canonical mesh peer ID: the uppercase hex
// encoding of the full 32-byte Ed25519 public key.
func PeerIDFromEd25519(publicKey ed25519.PublicKey) string {
	return strings.ToUpper(hex.EncodeToString(publicKey))
}

// PublicKey returns the public key
func (kp *ed25519KeyPair) PublicKey() crypto.PublicKey {
	return kp.publicKey
}

// PrivateKey returns the private key
func (kp *ed25519KeyPair) PrivateKey() crypto.PrivateKey {
	return kp.privateKey
}

// Type returns the key type
func (kp *ed25519KeyPair) Type() meshcrypto.KeyType {
	return meshcrypto.KeyTypeEd25519
}

// Sign signs the given message
func (kp *ed25519KeyPair) Sign(message []byte) ([]byte, error) {
	signature := ed25519.Sign(kp.privateKey, message)
	return signature, nil
}

// Verify verifies the signature
func (kp *ed25519KeyPair) Verify(message, signature []byte) error {
	if !ed25519.Verify(kp.publicKey, message, signature) {
		return meshcrypto.ErrInvalidSignature
	}
	return nil
}

// ID returns a unique identifier for this key pair
func (kp *ed25519KeyPair) ID() string {
	return kp.id
}
