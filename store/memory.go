package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	mesherrs "github.com/silentmesh/mesh/errors"
)

// MemoryEngine is an in-memory Engine, suitable for a single-process node
// or for tests. All operations are linearizable under a single mutex.
type MemoryEngine struct {
	mu       sync.RWMutex
	messages map[string]*Message
	quota    *QuotaManager
}

// NewMemoryEngine constructs an empty MemoryEngine. Until SetQuotaManager
// is called, Store admits every message without any quota check.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{messages: make(map[string]*Message)}
}

// SetQuotaManager wires the quota manager this engine's Store calls
// consult. Present as a setter rather than a constructor argument to
// break the circular construction order (QuotaManager needs an Engine).
func (e *MemoryEngine) SetQuotaManager(q *QuotaManager) {
	e.quota = q
}

func (e *MemoryEngine) Store(ctx context.Context, m *Message) error {
	if e.quota != nil {
		if err := e.quota.EnsureRoom(ctx, m.SizeBytes); err != nil {
			if m.IsOwnMessage {
				return mesherrs.ErrMustRetain
			}
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	cp := *m
	e.messages[m.ID] = &cp
	return nil
}

func (e *MemoryEngine) Get(ctx context.Context, id string) (*Message, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.messages[id]
	if !ok {
		return nil, fmt.Errorf("message not found: %s", id)
	}
	cp := *m
	return &cp, nil
}

func (e *MemoryEngine) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.messages[id]; !ok {
		return fmt.Errorf("message not found: %s", id)
	}
	delete(e.messages, id)
	return nil
}

func (e *MemoryEngine) UpdateStatus(ctx context.Context, id string, status Status) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.messages[id]
	if !ok {
		return fmt.Errorf("message not found: %s", id)
	}
	m.Status = status
	if status == StatusDelivered {
		m.DeliveredAt = time.Now()
	}
	return nil
}

func (e *MemoryEngine) RecordAttempt(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.messages[id]
	if !ok {
		return fmt.Errorf("message not found: %s", id)
	}
	m.Attempts++
	return nil
}

func (e *MemoryEngine) PendingFor(ctx context.Context, recipient string) ([]*Message, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []*Message
	for _, m := range e.messages {
		if m.Recipient == recipient && m.Status == StatusPending {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (e *MemoryEngine) UsedBytes(ctx context.Context) (int64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var total int64
	for _, m := range e.messages {
		total += m.SizeBytes
	}
	return total, nil
}

// Evictable returns eligible messages in the spec's strict eviction
// order: expired oldest-first, then LOW/NORMAL/HIGH/EMERGENCY each
// oldest-first. A message with mustRetain() true is excluded unless it
// has already expired.
func (e *MemoryEngine) Evictable(ctx context.Context, now time.Time) ([]*Message, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []*Message
	for _, m := range e.messages {
		expired := !m.ExpiresAt.IsZero() && now.After(m.ExpiresAt)
		if m.mustRetain() && !expired {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		aExpired := !a.ExpiresAt.IsZero() && now.After(a.ExpiresAt)
		bExpired := !b.ExpiresAt.IsZero() && now.After(b.ExpiresAt)
		if aExpired != bExpired {
			return aExpired // expired messages sort first
		}
		if aExpired && bExpired {
			return a.ExpiresAt.Before(b.ExpiresAt)
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority // LOW before NORMAL before HIGH before EMERGENCY
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return out, nil
}

func (e *MemoryEngine) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	count := 0
	for _, m := range e.messages {
		if (m.Status == StatusPending || m.Status == StatusSent) &&
			!m.ExpiresAt.IsZero() && now.After(m.ExpiresAt) {
			m.Status = StatusExpired
			count++
		}
	}
	return count, nil
}

func (e *MemoryEngine) Close() error { return nil }
