package meshconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFallsBackToDefaultsWhenNoFileExists(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "test", EnvFile: filepath.Join(dir, "missing.env")})
	require.NoError(t, err)
	assert.Equal(t, int64(524288000), cfg.Store.MaxBytes)
	assert.Equal(t, "test", cfg.Environment)
}

func TestLoadPrefersEnvironmentSpecificFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "staging.yaml"), []byte("store:\n  max_bytes: 1000\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.yaml"), []byte("store:\n  max_bytes: 2000\n"), 0o644))

	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "staging"})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), cfg.Store.MaxBytes)
}

func TestLoadFillsUnsetSectionsFromDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.yaml"), []byte("store:\n  max_bytes: 1000\n"), 0o644))

	cfg, err := Load(LoaderOptions{ConfigDir: dir, Environment: "unused"})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), cfg.Store.MaxBytes)
	assert.Equal(t, 10000, cfg.Dedup.Capacity) // untouched section keeps its default
}

func TestLoadFailsOnInvalidConfiguration(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.yaml"), []byte("store:\n  max_bytes: -1\n"), 0o644))

	_, err := Load(LoaderOptions{ConfigDir: dir, Environment: "unused"})
	assert.Error(t, err)
}

func TestSaveAndLoadFromFileRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := DefaultConfig()
	cfg.Logging.Level = "debug"
	require.NoError(t, SaveToFile(&cfg, path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", loaded.Logging.Level)
}
