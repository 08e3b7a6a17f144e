package hotkey

import (
	"os"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChordSplitsModifiersAndKey(t *testing.T) {
	c, err := ParseChord("Ctrl+Alt+D")
	require.NoError(t, err)
	assert.Equal(t, []string{"ctrl", "alt"}, c.Mods)
	assert.Equal(t, "d", c.Key)
	assert.False(t, c.Empty())
}

func TestParseChordEmptyStringDisablesFeature(t *testing.T) {
	c, err := ParseChord("")
	require.NoError(t, err)
	assert.True(t, c.Empty())
}

func TestParseChordRejectsEmptyComponent(t *testing.T) {
	_, err := ParseChord("ctrl++d")
	assert.Error(t, err)
}

func TestChordMatchesRequiresExactModifierSet(t *testing.T) {
	c, err := ParseChord("ctrl+alt+d")
	require.NoError(t, err)

	assert.True(t, c.Matches(map[string]bool{"ctrl": true, "alt": true}, "d"))
	assert.False(t, c.Matches(map[string]bool{"ctrl": true}, "d"), "missing alt must not match")
	assert.False(t, c.Matches(map[string]bool{"ctrl": true, "alt": true}, "e"), "wrong main key must not match")
}

func TestResolveNeverPicksLinuxOnlyProvidersOffLinux(t *testing.T) {
	if runtime.GOOS == "linux" {
		t.Skip("this assertion only applies off-Linux")
	}
	got := Resolve(ProviderAuto)
	assert.Equal(t, ProviderGohook, got)
}

func TestResolvePassesThroughExplicitProvider(t *testing.T) {
	assert.Equal(t, ProviderDBus, Resolve(ProviderDBus))
	assert.Equal(t, ProviderEvdev, Resolve(ProviderEvdev))
}

func TestResolveAutoOnLinuxX11PicksEvdev(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("X11 detection only applies on linux")
	}
	old := os.Getenv("WAYLAND_DISPLAY")
	os.Unsetenv("WAYLAND_DISPLAY")
	os.Setenv("DISPLAY", ":0")
	defer func() {
		os.Setenv("WAYLAND_DISPLAY", old)
		os.Unsetenv("DISPLAY")
	}()

	assert.Equal(t, ProviderEvdev, Resolve(ProviderAuto))
}
