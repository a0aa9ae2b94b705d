package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fp(b byte) [32]byte {
	var out [32]byte
	out[0] = b
	return out
}

func TestMarkSeenIdempotent(t *testing.T) {
	c := NewCache(DefaultConfig())
	f := fp(1)

	assert.False(t, c.HasSeen(f))
	c.MarkSeen(f)
	assert.True(t, c.HasSeen(f))
	c.MarkSeen(f) // idempotent
	assert.True(t, c.HasSeen(f))
	assert.Equal(t, 1, c.Len())
}

func TestCapacityEvictsOldestFirst(t *testing.T) {
	cur := time.Now()
	clock := func() time.Time { return cur }

	c := NewCache(Config{TTL: time.Hour, Capacity: 2, Now: clock})
	c.MarkSeen(fp(1))
	cur = cur.Add(time.Millisecond)
	c.MarkSeen(fp(2))
	cur = cur.Add(time.Millisecond)
	c.MarkSeen(fp(3)) // evicts fp(1)

	assert.False(t, c.HasSeen(fp(1)))
	assert.True(t, c.HasSeen(fp(2)))
	assert.True(t, c.HasSeen(fp(3)))
}

func TestTTLExpiry(t *testing.T) {
	cur := time.Now()
	clock := func() time.Time { return cur }

	c := NewCache(Config{TTL: 10 * time.Millisecond, Capacity: 100, Now: clock})
	c.MarkSeen(fp(9))
	assert.True(t, c.HasSeen(fp(9)))

	cur = cur.Add(20 * time.Millisecond)
	assert.False(t, c.HasSeen(fp(9)), "entry must expire after TTL elapses")
}

func TestSweepRemovesExpiredOnly(t *testing.T) {
	cur := time.Now()
	clock := func() time.Time { return cur }

	c := NewCache(Config{TTL: 10 * time.Millisecond, Capacity: 100, Now: clock})
	c.MarkSeen(fp(1))
	cur = cur.Add(20 * time.Millisecond)
	c.MarkSeen(fp(2))

	removed := c.Sweep()
	require.Equal(t, 1, removed)
	assert.False(t, c.HasSeen(fp(1)))
	assert.True(t, c.HasSeen(fp(2)))
}
