package store

import (
	"context"
	"time"
)

// Engine is the durable outbox: a mapping id -> Message with secondary
// indexes by recipient, priority, status, expiry, geo zone, and
// ownership. Implementations must make each write atomic per message.
type Engine interface {
	// Store admits m, after the quota manager has ensured room. Returns
	// mesherrs.ErrQuotaExceeded (wrapped) if admission fails, or
	// mesherrs.ErrMustRetain if m is an own message that could not be
	// admitted and must be surfaced to the caller instead of dropped.
	Store(ctx context.Context, m *Message) error

	Get(ctx context.Context, id string) (*Message, error)
	Delete(ctx context.Context, id string) error

	// UpdateStatus transitions id to status, stamping DeliveredAt when
	// status is StatusDelivered.
	UpdateStatus(ctx context.Context, id string, status Status) error
	RecordAttempt(ctx context.Context, id string) error

	// PendingFor lists messages addressed to recipient awaiting delivery,
	// for the C8 delivery loop to hand to C6/C5/C7 once recipient becomes
	// reachable.
	PendingFor(ctx context.Context, recipient string) ([]*Message, error)

	// UsedBytes returns total bytes currently admitted.
	UsedBytes(ctx context.Context) (int64, error)

	// Evictable returns messages eligible for eviction in the strict
	// spec order: expired oldest-first, then LOW/NORMAL/HIGH/EMERGENCY
	// each oldest-first, never a message for which mustRetain is true
	// unless it is expired.
	Evictable(ctx context.Context, now time.Time) ([]*Message, error)

	// ExpireDue transitions every PENDING or SENT message whose
	// ExpiresAt has passed to StatusExpired, returning how many changed.
	ExpireDue(ctx context.Context, now time.Time) (int, error)

	Close() error
}
