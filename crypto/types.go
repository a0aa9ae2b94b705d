// Package crypto provides the cryptographic primitives for the Silent Mesh
// identity and message-confidentiality layer: Ed25519 signing identities,
// X25519 key agreement, HKDF key derivation, and AEAD sealing.
package crypto

import (
	"crypto"
	"errors"
	"time"
)

// KeyType identifies the algorithm family of a KeyPair.
type KeyType string

const (
	// KeyTypeEd25519 is a signing identity keypair.
	KeyTypeEd25519 KeyType = "Ed25519"
	// KeyTypeX25519 is an ECDH-only key-agreement keypair, derived from or
	// generated alongside an Ed25519 identity.
	KeyTypeX25519 KeyType = "X25519"
)

// KeyFormat is the serialization used for key export/import.
type KeyFormat string

const (
	KeyFormatJWK KeyFormat = "JWK"
	KeyFormatPEM KeyFormat = "PEM"
)

// KeyPair is a cryptographic key pair. Ed25519 pairs support Sign/Verify;
// X25519 pairs are key-agreement only and return ErrSignNotSupported /
// ErrVerifyNotSupported.
type KeyPair interface {
	PublicKey() crypto.PublicKey
	PrivateKey() crypto.PrivateKey
	Type() KeyType
	Sign(message []byte) ([]byte, error)
	Verify(message, signature []byte) error
	// ID is the peer ID: uppercase hex of the public key, stripped of
	// whitespace for comparison purposes by callers.
	ID() string
}

// KeyExporter serializes a KeyPair to an external format.
type KeyExporter interface {
	Export(keyPair KeyPair, format KeyFormat) ([]byte, error)
	ExportPublic(keyPair KeyPair, format KeyFormat) ([]byte, error)
}

// KeyImporter parses a KeyPair from an external format.
type KeyImporter interface {
	Import(data []byte, format KeyFormat) (KeyPair, error)
	ImportPublic(data []byte, format KeyFormat) (crypto.PublicKey, error)
}

// KeyStorage is the PersistentKeyStore contract from spec §6, generalized
// to hold any number of named keys (identity, session, rotated-out).
type KeyStorage interface {
	Store(id string, keyPair KeyPair) error
	Load(id string) (KeyPair, error)
	Delete(id string) error
	List() ([]string, error)
	Exists(id string) bool
}

// KeyRotationConfig configures KeyRotator behavior.
type KeyRotationConfig struct {
	RotationInterval time.Duration
	MaxKeyAge        time.Duration
	KeepOldKeys      bool
}

// KeyRotator rotates session key-agreement material on demand.
type KeyRotator interface {
	Rotate(id string) (KeyPair, error)
	SetRotationConfig(config KeyRotationConfig)
	GetRotationHistory(id string) ([]KeyRotationEvent, error)
}

// KeyRotationEvent records one rotation.
type KeyRotationEvent struct {
	Timestamp time.Time
	OldKeyID  string
	NewKeyID  string
	Reason    string
}

// KeyManager is the aggregate façade over generation, storage, and
// import/export.
type KeyManager interface {
	GenerateKeyPair(keyType KeyType) (KeyPair, error)
	GetExporter() KeyExporter
	GetImporter() KeyImporter
	GetStorage() KeyStorage
	GetRotator() KeyRotator
}

// Sentinel errors per the taxonomy in spec §4.1 / §7.
var (
	ErrKeyNotFound        = errors.New("key not found")
	ErrInvalidKeyType     = errors.New("invalid key type")
	ErrInvalidKeyFormat   = errors.New("invalid key format")
	ErrKeyExists          = errors.New("key already exists")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrSignNotSupported   = errors.New("key agreement keys cannot sign")
	ErrVerifyNotSupported = errors.New("key agreement keys cannot verify")
	ErrInvalidKeyLength   = errors.New("invalid key length")
	ErrAeadAuthFailure    = errors.New("aead authentication failure")
)
