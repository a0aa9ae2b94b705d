package store

import (
	"context"
	"time"

	"github.com/silentmesh/mesh/internal/metrics"
)

// Forwarder hands a pending message's payload to the relay/scheduler/
// transport stack (C6 -> C5 -> C7) for recipient. It returns an error
// only for reasons the delivery loop should stop retrying this round.
type Forwarder func(ctx context.Context, recipient string, payload []byte) error

// DeliveryLoop drives the C8 "peer becomes reachable" delivery rule:
// for every PENDING message addressed to recipient, hand it to fwd; mark
// SENT and record the attempt on success.
type DeliveryLoop struct {
	engine Engine
	fwd    Forwarder
}

// NewDeliveryLoop constructs a DeliveryLoop over engine, using fwd to
// actually transmit.
func NewDeliveryLoop(engine Engine, fwd Forwarder) *DeliveryLoop {
	return &DeliveryLoop{engine: engine, fwd: fwd}
}

// OnPeerReachable is called when recipient becomes reachable (a C7
// OnPeerConnected event, typically). It attempts every pending message
// for that recipient and returns the IDs it successfully handed off.
func (d *DeliveryLoop) OnPeerReachable(ctx context.Context, recipient string) ([]string, error) {
	pending, err := d.engine.PendingFor(ctx, recipient)
	if err != nil {
		return nil, err
	}

	var sent []string
	for _, m := range pending {
		if err := d.fwd(ctx, recipient, m.Payload); err != nil {
			metrics.DeliveryAttempts.WithLabelValues("failed").Inc()
			continue
		}
		if err := d.engine.UpdateStatus(ctx, m.ID, StatusSent); err != nil {
			continue
		}
		_ = d.engine.RecordAttempt(ctx, m.ID)
		metrics.DeliveryAttempts.WithLabelValues("delivered").Inc()
		sent = append(sent, m.ID)
	}
	return sent, nil
}

// OnDelivered marks id DELIVERED on confirmed receipt (an application ack
// or a mesh relay hint).
func (d *DeliveryLoop) OnDelivered(ctx context.Context, id string) error {
	return d.engine.UpdateStatus(ctx, id, StatusDelivered)
}

// ExpireOverdue marks every message whose expiry has passed as EXPIRED.
// It is meant to run alongside the quota sweep.
func (d *DeliveryLoop) ExpireOverdue(ctx context.Context) (int, error) {
	return d.engine.ExpireDue(ctx, time.Now())
}
