package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultConfigWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.ConfigPath)
	assert.Equal(t, "Super+Shift+D", cfg.Hotkeys.Toggle)
	assert.Equal(t, 0.003, cfg.VADThreshold)
	assert.FileExists(t, path)
}

func TestLoadRoundTripsEditedValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.Hotkeys.Toggle = "Ctrl+Alt+Space"
	cfg.NumThreads = 8
	idx := 2
	cfg.AudioDeviceIndex = &idx
	require.NoError(t, cfg.Save())

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Ctrl+Alt+Space", reloaded.Hotkeys.Toggle)
	assert.Equal(t, 8, reloaded.NumThreads)
	require.NotNil(t, reloaded.AudioDeviceIndex)
	assert.Equal(t, 2, *reloaded.AudioDeviceIndex)
}

func TestDefaultConfigPathIsUnderPlatformConfigDir(t *testing.T) {
	path, err := DefaultConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "config.toml", filepath.Base(path))
}

func TestDefaultSocketPathsAreDistinct(t *testing.T) {
	d := Default(t.TempDir())
	assert.NotEqual(t, d.SocketPath, d.BroadcastSocketPath)
}
