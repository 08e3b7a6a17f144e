package inject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInjector struct {
	texts  []string
	chords []string
}

func (f *fakeInjector) InjectText(text string) error {
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeInjector) SendChord(chord string) error {
	f.chords = append(f.chords, chord)
	return nil
}

func TestInjectSplitsLiteralTextAndChordMarkers(t *testing.T) {
	f := &fakeInjector{}
	err := Inject(f, "hello <KEY:Cmd+C> world")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello ", " world"}, f.texts)
	assert.Equal(t, []string{"Cmd+C"}, f.chords)
}

func TestInjectWithNoChordMarkersIsOneTextCall(t *testing.T) {
	f := &fakeInjector{}
	err := Inject(f, "plain text only")
	require.NoError(t, err)
	assert.Equal(t, []string{"plain text only"}, f.texts)
	assert.Empty(t, f.chords)
}

func TestInjectWithLeadingChordMarker(t *testing.T) {
	f := &fakeInjector{}
	err := Inject(f, "<KEY:super-Right>after")
	require.NoError(t, err)
	assert.Equal(t, []string{"after"}, f.texts)
	assert.Equal(t, []string{"super-Right"}, f.chords)
}

func TestXdotoolKeySyntaxNormalizesModifiers(t *testing.T) {
	assert.Equal(t, "super+c", xdotoolKeySyntax("Cmd+C"))
	assert.Equal(t, "super+shift+right", xdotoolKeySyntax("super-Shift-Right"))
}

func TestSplitChordSeparatesModifiersFromKey(t *testing.T) {
	mods, key := splitChord("Cmd+Shift+C")
	assert.Equal(t, []string{"super", "shift"}, mods)
	assert.Equal(t, "c", key)

	mods, key = splitChord("super-Right")
	assert.Equal(t, []string{"super"}, mods)
	assert.Equal(t, "right", key)
}
