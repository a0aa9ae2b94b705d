package rotation

import (
	"fmt"
	"sync"
	"time"

	meshcrypto "github.com/silentmesh/mesh/crypto"
	"github.com/silentmesh/mesh/crypto/keys"
)

// keyRotator implements the KeyRotator interface. It backs session
// rekeying: rotating a peer's X25519 key-agreement material without
// disturbing its Ed25519 signing identity.
type keyRotator struct {
	storage  meshcrypto.KeyStorage
	config   meshcrypto.KeyRotationConfig
	history  map[string][]meshcrypto.KeyRotationEvent
	mu       sync.RWMutex
	rotating map[string]bool // Track keys currently being rotated
}

// NewKeyRotator creates a new key rotator
func NewKeyRotator(storage meshcrypto.KeyStorage) meshcrypto.KeyRotator {
	return &keyRotator{
		storage: storage,
		config: meshcrypto.KeyRotationConfig{
			KeepOldKeys: false,
		},
		history:  make(map[string][]meshcrypto.KeyRotationEvent),
		rotating: make(map[string]bool),
	}
}

// Rotate rotates the key for the given ID
func (r *keyRotator) Rotate(id string) (meshcrypto.KeyPair, error) {
	r.mu.Lock()

	if r.rotating[id] {
		r.mu.Unlock()
		return nil, fmt.Errorf("key %s is already being rotated", id)
	}
	r.rotating[id] = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.rotating, id)
		r.mu.Unlock()
	}()

	oldKeyPair, err := r.storage.Load(id)
	if err != nil {
		return nil, err
	}

	var newKeyPair meshcrypto.KeyPair
	switch oldKeyPair.Type() {
	case meshcrypto.KeyTypeEd25519:
		newKeyPair, err = keys.GenerateEd25519KeyPair()
	case meshcrypto.KeyTypeX25519:
		newKeyPair, err = keys.GenerateX25519KeyPair()
	default:
		return nil, fmt.Errorf("unsupported key type for rotation: %s", oldKeyPair.Type())
	}

	if err != nil {
		return nil, fmt.Errorf("failed to generate new key: %w", err)
	}

	if r.config.KeepOldKeys {
		oldKeyID := fmt.Sprintf("%s.old.%s", id, oldKeyPair.ID())
		if err := r.storage.Store(oldKeyID, oldKeyPair); err != nil {
			return nil, fmt.Errorf("failed to store old key: %w", err)
		}
	}

	if err := r.storage.Store(id, newKeyPair); err != nil {
		return nil, fmt.Errorf("failed to store new key: %w", err)
	}

	r.mu.Lock()
	event := meshcrypto.KeyRotationEvent{
		Timestamp: time.Now(),
		OldKeyID:  oldKeyPair.ID(),
		NewKeyID:  newKeyPair.ID(),
		Reason:    "manual rotation",
	}
	r.history[id] = append(r.history[id], event)
	r.mu.Unlock()

	return newKeyPair, nil
}

// SetRotationConfig sets the rotation configuration
func (r *keyRotator) SetRotationConfig(config meshcrypto.KeyRotationConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config = config
}

// GetRotationHistory returns the rotation history for a key, newest first.
func (r *keyRotator) GetRotationHistory(id string) ([]meshcrypto.KeyRotationEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history, exists := r.history[id]
	if !exists {
		return []meshcrypto.KeyRotationEvent{}, nil
	}

	result := make([]meshcrypto.KeyRotationEvent, len(history))
	for i, event := range history {
		result[len(history)-1-i] = event
	}

	return result, nil
}
