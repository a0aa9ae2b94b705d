// Package meshconfig loads and validates node configuration: every
// subsystem's tunables in one YAML/JSON document, with environment
// variable substitution and overrides layered on top.
package meshconfig

import (
	"time"
)

// Config is the full node configuration surface. Every subsystem that
// exposes a tunable has a section here; node.DefaultConfig mirrors
// DefaultConfig's values exactly so an empty file and no file behave the
// same.
type Config struct {
	Environment string `yaml:"environment" json:"environment"`

	Dedup      DedupConfig      `yaml:"dedup" json:"dedup"`
	Relay      RelayConfig      `yaml:"relay" json:"relay"`
	Routing    RoutingConfig    `yaml:"routing" json:"routing"`
	Message    MessageConfig    `yaml:"message" json:"message"`
	Scheduler  SchedulerConfig  `yaml:"scheduler" json:"scheduler"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Transport  TransportConfig  `yaml:"transport" json:"transport"`
	Heartbeat  HeartbeatConfig  `yaml:"heartbeat" json:"heartbeat"`
	Invite     InviteConfig     `yaml:"invite" json:"invite"`
	LightPing  LightPingConfig  `yaml:"light_ping" json:"light_ping"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"metrics"`
}

// DedupConfig mirrors dedup.Config: window_ms/capacity.
type DedupConfig struct {
	WindowMS int `yaml:"window_ms" json:"window_ms"`
	Capacity int `yaml:"capacity" json:"capacity"`
}

// RelayConfig bounds the TTL an originating node stamps on its own
// messages, and the ceiling a loaded config is allowed to request.
type RelayConfig struct {
	DefaultTTL int `yaml:"default_ttl" json:"default_ttl"`
	MaxTTL     int `yaml:"max_ttl" json:"max_ttl"`
}

// RoutingConfig mirrors routing.Config.
type RoutingConfig struct {
	StaleAfterMS int `yaml:"stale_after_ms" json:"stale_after_ms"`
}

// MessageConfig mirrors wire.DecodeConfig.
type MessageConfig struct {
	MaxPayloadBytes int `yaml:"max_payload_bytes" json:"max_payload_bytes"`
	MaxSkewFutureMS int `yaml:"max_skew_future_ms" json:"max_skew_future_ms"`
	MaxSkewPastMS   int `yaml:"max_skew_past_ms" json:"max_skew_past_ms"`
}

// SchedulerConfig mirrors the C5 egress scheduler's bandwidth cap and
// per-peer queue depth.
type SchedulerConfig struct {
	BandwidthBytesPerSec int `yaml:"bandwidth_bytes_per_sec" json:"bandwidth_bytes_per_sec"`
	QueueCapacity        int `yaml:"queue_capacity" json:"queue_capacity"`
}

// StoreConfig mirrors store.QuotaConfig.
type StoreConfig struct {
	MaxBytes            int64   `yaml:"max_bytes" json:"max_bytes"`
	WarningRatio        float64 `yaml:"warning_ratio" json:"warning_ratio"`
	CriticalRatio       float64 `yaml:"critical_ratio" json:"critical_ratio"`
	EvictionTargetRatio float64 `yaml:"eviction_target_ratio" json:"eviction_target_ratio"`
	CheckIntervalMS     int     `yaml:"check_interval_ms" json:"check_interval_ms"`
}

// TransportConfig mirrors transport.ManagerConfig plus the connect
// timeout every concrete Transport is expected to honor.
type TransportConfig struct {
	ConnectTimeoutMS int `yaml:"connect_timeout_ms" json:"connect_timeout_ms"`
	SendRetryMax     int `yaml:"send_retry_max" json:"send_retry_max"`
	SendRetryDelayMS int `yaml:"send_retry_delay_ms" json:"send_retry_delay_ms"`
}

// HeartbeatConfig mirrors health.HeartbeatConfig.
type HeartbeatConfig struct {
	IntervalMS      int `yaml:"interval_ms" json:"interval_ms"`
	MissedThreshold int `yaml:"missed_threshold" json:"missed_threshold"`
}

// InviteConfig mirrors invite.DefaultTTL and invite.MaxSkew.
type InviteConfig struct {
	DefaultTTLMS   int64 `yaml:"default_ttl_ms" json:"default_ttl_ms"`
	ShareMaxSkewMS int   `yaml:"share_max_skew_ms" json:"share_max_skew_ms"`
}

// LightPingConfig mirrors ledger.DeviceProfile.
type LightPingConfig struct {
	Enabled                bool    `yaml:"enabled" json:"enabled"`
	IntervalMS             int     `yaml:"interval_ms" json:"interval_ms"`
	MaxParallelConnections int     `yaml:"max_parallel_connections" json:"max_parallel_connections"`
	Aggressiveness         float64 `yaml:"aggressiveness" json:"aggressiveness"`
	ActiveWindowMS         int     `yaml:"active_window_ms" json:"active_window_ms"`
}

// LoggingConfig controls the internal/logger backend.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// MetricsConfig controls the Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	Path    string `yaml:"path" json:"path"`
}

// DefaultConfig returns the same defaults node.DefaultConfig() builds
// programmatically, expressed as a loadable document.
func DefaultConfig() Config {
	return Config{
		Environment: "development",
		Dedup: DedupConfig{
			WindowMS: int(5 * time.Minute / time.Millisecond),
			Capacity: 10000,
		},
		Relay: RelayConfig{DefaultTTL: 64, MaxTTL: 64},
		Routing: RoutingConfig{
			StaleAfterMS: int(10 * time.Minute / time.Millisecond),
		},
		Message: MessageConfig{
			MaxPayloadBytes: 1048576,
			MaxSkewFutureMS: int(5 * time.Minute / time.Millisecond),
			MaxSkewPastMS:   int(48 * time.Hour / time.Millisecond),
		},
		Scheduler: SchedulerConfig{
			BandwidthBytesPerSec: 1 << 20,
			QueueCapacity:        1024,
		},
		Store: StoreConfig{
			MaxBytes:            524288000,
			WarningRatio:        0.8,
			CriticalRatio:       0.95,
			EvictionTargetRatio: 0.7,
			CheckIntervalMS:     int(60 * time.Second / time.Millisecond),
		},
		Transport: TransportConfig{
			ConnectTimeoutMS: 10000,
			SendRetryMax:     3,
			SendRetryDelayMS: 1000,
		},
		Heartbeat: HeartbeatConfig{
			IntervalMS:      15000,
			MissedThreshold: 3,
		},
		Invite: InviteConfig{
			DefaultTTLMS:   int64(7 * 24 * time.Hour / time.Millisecond),
			ShareMaxSkewMS: int(5 * time.Minute / time.Millisecond),
		},
		LightPing: LightPingConfig{
			Enabled:                false,
			IntervalMS:             int(15 * time.Minute / time.Millisecond),
			MaxParallelConnections: 2,
			Aggressiveness:         0.5,
			ActiveWindowMS:         int(2 * time.Hour / time.Millisecond),
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Metrics: MetricsConfig{Enabled: true, Addr: ":9090", Path: "/metrics"},
	}
}
