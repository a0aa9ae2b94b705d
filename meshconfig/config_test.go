package meshconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigPassesValidation(t *testing.T) {
	cfg := DefaultConfig()
	issues := Validate(&cfg)
	for _, issue := range issues {
		assert.NotEqual(t, SeverityError, issue.Severity, issue.String())
	}
}

func TestConvertersRoundTripIntoSubsystemDefaults(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 10000, cfg.ToDedupConfig().Capacity)
	assert.Equal(t, 1048576, cfg.ToDecodeConfig().MaxPayloadBytes)
	assert.Equal(t, int64(524288000), cfg.ToQuotaConfig().MaxBytes)
	assert.Equal(t, 3, cfg.ToManagerConfig().MaxRetries)
	assert.Equal(t, 3, cfg.ToHeartbeatConfig().MissedThreshold)
	assert.Equal(t, uint8(64), cfg.DefaultTTL())
	assert.False(t, cfg.ToDeviceProfile().Enabled)
}
