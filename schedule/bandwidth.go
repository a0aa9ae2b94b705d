package schedule

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Bandwidth is a sliding, 1-second token-bucket budget measured in bytes.
// It wraps golang.org/x/time/rate, using bytes as the token unit instead of
// events.
type Bandwidth struct {
	limiter *rate.Limiter
}

// NewBandwidth constructs a Bandwidth allowing bytesPerSecond bytes/second,
// with a burst allowance equal to the same amount.
func NewBandwidth(bytesPerSecond int) *Bandwidth {
	return &Bandwidth{
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), bytesPerSecond),
	}
}

// CanSend reports whether n bytes can be sent right now without exceeding
// the budget, without consuming it.
func (b *Bandwidth) CanSend(n int) bool {
	return b.limiter.TokensAt(time.Now()) >= float64(n)
}

// RecordSent deducts n bytes from the budget.
func (b *Bandwidth) RecordSent(n int) {
	b.limiter.ReserveN(time.Now(), n)
}

// Wait blocks, without spinning, until n bytes of budget are available or
// ctx is canceled.
func (b *Bandwidth) Wait(ctx context.Context, n int) error {
	return b.limiter.WaitN(ctx, n)
}
