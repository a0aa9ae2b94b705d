package store

import (
	"context"
	"sync"
	"time"

	mesherrs "github.com/silentmesh/mesh/errors"
	"github.com/silentmesh/mesh/internal/metrics"
)

// QuotaStatus is the quota manager's coarse usage state.
type QuotaStatus uint8

const (
	QuotaOK QuotaStatus = iota
	QuotaWarning
	QuotaCritical
	QuotaFull
)

func (s QuotaStatus) String() string {
	switch s {
	case QuotaOK:
		return "OK"
	case QuotaWarning:
		return "WARNING"
	case QuotaCritical:
		return "CRITICAL"
	case QuotaFull:
		return "FULL"
	default:
		return "UNKNOWN"
	}
}

// QuotaConfig configures the quota manager. Defaults match spec §6/§4.8.
type QuotaConfig struct {
	MaxBytes            int64
	WarningRatio        float64
	CriticalRatio       float64
	EvictionTargetRatio float64
	CheckInterval       time.Duration
}

// DefaultQuotaConfig returns the spec defaults: 500 MiB, 0.8/0.95/0.7, 60s.
func DefaultQuotaConfig() QuotaConfig {
	return QuotaConfig{
		MaxBytes:            524288000,
		WarningRatio:        0.8,
		CriticalRatio:       0.95,
		EvictionTargetRatio: 0.7,
		CheckInterval:       60 * time.Second,
	}
}

// QuotaManager owns admission and eviction decisions over an Engine.
type QuotaManager struct {
	cfg    QuotaConfig
	engine Engine
	now    func() time.Time

	mu         sync.Mutex
	lastStatus QuotaStatus
	onWarning  func(status QuotaStatus)
}

// NewQuotaManager constructs a QuotaManager. onWarning, if non-nil, fires
// once per status transition (edge-triggered), including transitions back
// down to OK.
func NewQuotaManager(cfg QuotaConfig, engine Engine, onWarning func(QuotaStatus)) *QuotaManager {
	return &QuotaManager{cfg: cfg, engine: engine, now: time.Now, onWarning: onWarning}
}

// Status computes the current quota status and fires onWarning if it
// differs from the previously observed status.
func (q *QuotaManager) Status(ctx context.Context) (QuotaStatus, error) {
	used, err := q.engine.UsedBytes(ctx)
	if err != nil {
		return QuotaOK, err
	}
	status := statusFor(used, q.cfg)
	metrics.StoreBytesUsed.Set(float64(used))
	metrics.StoreQuotaStatus.Set(float64(status))

	q.mu.Lock()
	changed := status != q.lastStatus
	q.lastStatus = status
	q.mu.Unlock()

	if changed && q.onWarning != nil {
		q.onWarning(status)
	}
	return status, nil
}

func statusFor(used int64, cfg QuotaConfig) QuotaStatus {
	if cfg.MaxBytes <= 0 {
		return QuotaOK
	}
	ratio := float64(used) / float64(cfg.MaxBytes)
	switch {
	case ratio >= 1.0:
		return QuotaFull
	case ratio >= cfg.CriticalRatio:
		return QuotaCritical
	case ratio >= cfg.WarningRatio:
		return QuotaWarning
	default:
		return QuotaOK
	}
}

// EnsureRoom admits incomingBytes by evicting, in strict spec order, until
// there is room, or returns ErrQuotaExceeded if eviction cannot make
// enough room (every remaining message must be retained).
func (q *QuotaManager) EnsureRoom(ctx context.Context, incomingBytes int64) error {
	used, err := q.engine.UsedBytes(ctx)
	if err != nil {
		return err
	}
	if used+incomingBytes <= q.cfg.MaxBytes {
		return nil
	}

	victims, err := q.engine.Evictable(ctx, q.now())
	if err != nil {
		return err
	}
	for _, v := range victims {
		if used+incomingBytes <= q.cfg.MaxBytes {
			break
		}
		if err := q.engine.Delete(ctx, v.ID); err != nil {
			return err
		}
		used -= v.SizeBytes
		metrics.StoreEvictions.Inc()
	}

	if used+incomingBytes > q.cfg.MaxBytes {
		metrics.StoreMessagesAdmitted.WithLabelValues("quota_exceeded").Inc()
		return mesherrs.ErrQuotaExceeded
	}
	metrics.StoreMessagesAdmitted.WithLabelValues("admitted").Inc()
	return nil
}

// Sweep prunes expired messages unconditionally, then — if usage is
// CRITICAL or FULL — evicts further until usage falls to
// eviction_target*max. It is meant to be called on CheckInterval.
func (q *QuotaManager) Sweep(ctx context.Context) error {
	now := q.now()
	expired, err := q.engine.Evictable(ctx, now)
	if err != nil {
		return err
	}
	for _, v := range expired {
		if v.ExpiresAt.IsZero() || !now.After(v.ExpiresAt) {
			break // Evictable lists expired messages first
		}
		if err := q.engine.Delete(ctx, v.ID); err != nil {
			return err
		}
		metrics.StoreEvictions.Inc()
	}

	status, err := q.Status(ctx)
	if err != nil {
		return err
	}
	if status != QuotaCritical && status != QuotaFull {
		return nil
	}

	target := int64(float64(q.cfg.MaxBytes) * q.cfg.EvictionTargetRatio)
	used, err := q.engine.UsedBytes(ctx)
	if err != nil {
		return err
	}

	victims, err := q.engine.Evictable(ctx, q.now())
	if err != nil {
		return err
	}
	for _, v := range victims {
		if used <= target {
			break
		}
		if err := q.engine.Delete(ctx, v.ID); err != nil {
			return err
		}
		used -= v.SizeBytes
		metrics.StoreEvictions.Inc()
	}
	return nil
}
