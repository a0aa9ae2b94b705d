package meshconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstituteUsesEnvironmentValueWhenSet(t *testing.T) {
	t.Setenv("MESHCONFIG_TEST_VAR", "production")
	assert.Equal(t, "production", Substitute("${MESHCONFIG_TEST_VAR}"))
}

func TestSubstituteFallsBackToDefaultWhenUnset(t *testing.T) {
	assert.Equal(t, "fallback", Substitute("${MESHCONFIG_TEST_UNSET:fallback}"))
}

func TestSubstituteReturnsEmptyWhenUnsetAndNoDefault(t *testing.T) {
	assert.Equal(t, "", Substitute("${MESHCONFIG_TEST_UNSET}"))
}

func TestEnvironmentDefaultsToDevelopment(t *testing.T) {
	t.Setenv("MESH_ENV", "")
	t.Setenv("ENVIRONMENT", "")
	assert.Equal(t, "development", Environment())
}

func TestEnvironmentPrefersMeshEnvOverEnvironment(t *testing.T) {
	t.Setenv("MESH_ENV", "staging")
	t.Setenv("ENVIRONMENT", "production")
	assert.Equal(t, "staging", Environment())
}

func TestApplyEnvironmentOverridesWinsOverFileValue(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "info"
	t.Setenv("MESH_LOG_LEVEL", "debug")

	applyEnvironmentOverrides(&cfg)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
