package meshconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFlagsWarningRatioAboveCritical(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.WarningRatio = 0.99
	cfg.Store.CriticalRatio = 0.95

	issues := Validate(&cfg)
	assert.Contains(t, fieldsOf(issues), "store.warning_ratio")
}

func TestValidateFlagsMaxTTLBelowDefaultTTL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Relay.DefaultTTL = 64
	cfg.Relay.MaxTTL = 32

	issues := Validate(&cfg)
	assert.Contains(t, fieldsOf(issues), "relay.max_ttl")
}

func TestValidateWarnsOnUnrecognizedLogLevelButDoesNotError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "verbose"

	issues := Validate(&cfg)
	var found *ValidationIssue
	for i := range issues {
		if issues[i].Field == "logging.level" {
			found = &issues[i]
		}
	}
	if assert.NotNil(t, found) {
		assert.Equal(t, SeverityWarning, found.Severity)
	}
}

func TestValidateRequiresPositiveMaxParallelConnectionsWhenLightPingEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LightPing.Enabled = true
	cfg.LightPing.MaxParallelConnections = 0

	issues := Validate(&cfg)
	assert.Contains(t, fieldsOf(issues), "light_ping.max_parallel_connections")
}

func fieldsOf(issues []ValidationIssue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.Field
	}
	return out
}
