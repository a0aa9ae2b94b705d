package ledger

import (
	"context"
	"sync"
	"time"
)

// DeviceProfile configures light-ping's probe cadence and concurrency per
// spec §6's silentmesh.* device-profile options.
type DeviceProfile struct {
	Enabled                bool
	LightPingInterval      time.Duration
	MaxParallelConnections int
	Aggressiveness         float64
	ActiveWindow           time.Duration
}

// DefaultDeviceProfile returns conservative defaults suitable for a
// battery-constrained device.
func DefaultDeviceProfile() DeviceProfile {
	return DeviceProfile{
		Enabled:                true,
		LightPingInterval:      5 * time.Minute,
		MaxParallelConnections: 4,
		Aggressiveness:         0.5,
		ActiveWindow:           24 * time.Hour,
	}
}

// TryConnect attempts a lightweight reachability probe to node, returning
// whether it succeeded.
type TryConnect func(ctx context.Context, node string) bool

// LightPing periodically probes recently active Eternal Ledger entries to
// keep routing/reachability state warm without a full handshake.
type LightPing struct {
	profile DeviceProfile
	mesh    *Mesh
}

// NewLightPing constructs a LightPing over mesh's Eternal Ledger.
func NewLightPing(profile DeviceProfile, mesh *Mesh) *LightPing {
	return &LightPing{profile: profile, mesh: mesh}
}

// Run probes up to MaxParallelConnections recently active ledger entries
// concurrently via try, returning how many were attempted and how many
// succeeded. It does nothing when the ledger is empty or light-ping is
// disabled.
func (l *LightPing) Run(ctx context.Context, now time.Time, try TryConnect) (attempted, succeeded int) {
	if !l.profile.Enabled {
		return 0, 0
	}

	candidates := l.mesh.RecentlyActive(now, l.profile.ActiveWindow)
	if len(candidates) == 0 {
		return 0, 0
	}

	parallel := l.profile.MaxParallelConnections
	if parallel <= 0 {
		parallel = 1
	}

	sem := make(chan struct{}, parallel)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, entry := range candidates {
		wg.Add(1)
		sem <- struct{}{}
		go func(nodeID string) {
			defer wg.Done()
			defer func() { <-sem }()
			ok := try(ctx, nodeID)
			mu.Lock()
			attempted++
			if ok {
				succeeded++
			}
			mu.Unlock()
		}(entry.NodeID)
	}
	wg.Wait()
	return attempted, succeeded
}
