package meshconfig

import (
	"time"

	"github.com/silentmesh/mesh/dedup"
	"github.com/silentmesh/mesh/health"
	"github.com/silentmesh/mesh/ledger"
	"github.com/silentmesh/mesh/routing"
	"github.com/silentmesh/mesh/store"
	"github.com/silentmesh/mesh/transport"
	"github.com/silentmesh/mesh/wire"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// ToDedupConfig converts to dedup.Config.
func (c *Config) ToDedupConfig() dedup.Config {
	return dedup.Config{TTL: ms(c.Dedup.WindowMS), Capacity: c.Dedup.Capacity, Now: time.Now}
}

// ToRoutingConfig converts to routing.Config.
func (c *Config) ToRoutingConfig() routing.Config {
	return routing.Config{StaleAfter: ms(c.Routing.StaleAfterMS), Now: time.Now}
}

// ToDecodeConfig converts to wire.DecodeConfig.
func (c *Config) ToDecodeConfig() wire.DecodeConfig {
	return wire.DecodeConfig{
		MaxPayloadBytes: c.Message.MaxPayloadBytes,
		MaxSkewPast:     ms(c.Message.MaxSkewPastMS),
		MaxSkewFuture:   ms(c.Message.MaxSkewFutureMS),
		Now:             time.Now,
	}
}

// ToQuotaConfig converts to store.QuotaConfig.
func (c *Config) ToQuotaConfig() store.QuotaConfig {
	return store.QuotaConfig{
		MaxBytes:            c.Store.MaxBytes,
		WarningRatio:        c.Store.WarningRatio,
		CriticalRatio:       c.Store.CriticalRatio,
		EvictionTargetRatio: c.Store.EvictionTargetRatio,
		CheckInterval:       ms(c.Store.CheckIntervalMS),
	}
}

// ToManagerConfig converts to transport.ManagerConfig.
func (c *Config) ToManagerConfig() transport.ManagerConfig {
	return transport.ManagerConfig{
		MaxRetries: c.Transport.SendRetryMax,
		RetryDelay: ms(c.Transport.SendRetryDelayMS),
	}
}

// ConnectTimeout is how long a Transport.Connect call is given before the
// caller should treat it as failed.
func (c *Config) ConnectTimeout() time.Duration { return ms(c.Transport.ConnectTimeoutMS) }

// ToHeartbeatConfig converts to health.HeartbeatConfig.
func (c *Config) ToHeartbeatConfig() health.HeartbeatConfig {
	return health.HeartbeatConfig{
		Interval:        ms(c.Heartbeat.IntervalMS),
		MissedThreshold: c.Heartbeat.MissedThreshold,
	}
}

// InviteDefaultTTL is the invite lifetime used when a caller does not
// specify one explicitly.
func (c *Config) InviteDefaultTTL() time.Duration { return time.Duration(c.Invite.DefaultTTLMS) * time.Millisecond }

// InviteShareMaxSkew bounds accepted clock skew on a decoded SharePayload.
func (c *Config) InviteShareMaxSkew() time.Duration { return ms(c.Invite.ShareMaxSkewMS) }

// ToDeviceProfile converts to ledger.DeviceProfile.
func (c *Config) ToDeviceProfile() ledger.DeviceProfile {
	return ledger.DeviceProfile{
		Enabled:                c.LightPing.Enabled,
		LightPingInterval:      ms(c.LightPing.IntervalMS),
		MaxParallelConnections: c.LightPing.MaxParallelConnections,
		Aggressiveness:         c.LightPing.Aggressiveness,
		ActiveWindow:           ms(c.LightPing.ActiveWindowMS),
	}
}

// DefaultTTL is the TTL an originating node stamps on its own messages.
func (c *Config) DefaultTTL() uint8 { return uint8(c.Relay.DefaultTTL) }
