// Package hotkey implements C12's hotkey half: the best available
// platform mechanism for recognizing a global key-chord and forwarding it
// to internal/session's command channel as a toggle or push-to-talk event
// (spec.md §4.12). The control-socket half of C12 lives in internal/ipc;
// both collapse onto the same session.Manager.Commands() channel.
package hotkey

import (
	"fmt"
	"runtime"
	"strings"

	"swictation/internal/display"
)

// Provider names a hotkey backend. "auto" (the default) resolves to a
// concrete provider from the detected display session, grounded on
// other_examples reference AshBuk-speak-to-ai's Hotkeys.Provider config key.
const (
	ProviderAuto   = "auto"
	ProviderDBus   = "dbus"
	ProviderEvdev  = "evdev"
	ProviderGohook = "gohook"
)

// Config configures the hotkey dispatcher. ToggleChord and PushToTalkChord
// use spec.md §6's "Mod1+Mod2+Key" chord syntax, e.g. "ctrl+alt+d".
type Config struct {
	Provider        string
	ToggleChord     string
	PushToTalkChord string
}

// Chord is a parsed key-chord: zero or more held modifiers plus one main
// key, compared case-insensitively.
type Chord struct {
	Mods []string
	Key  string
}

// ParseChord parses spec.md §6's "Mod1+Mod2+Key" syntax.
func ParseChord(s string) (Chord, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Chord{}, nil
	}
	parts := strings.Split(s, "+")
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
		if parts[i] == "" {
			return Chord{}, fmt.Errorf("invalid chord %q: empty component", s)
		}
	}
	return Chord{Mods: parts[:len(parts)-1], Key: parts[len(parts)-1]}, nil
}

// Empty reports whether the chord has no main key configured (the feature
// it gates, e.g. push-to-talk, is disabled).
func (c Chord) Empty() bool { return c.Key == "" }

// Keys returns the chord as a flat slice (modifiers then key), the shape
// github.com/robotn/gohook's Register expects.
func (c Chord) Keys() []string {
	out := make([]string, 0, len(c.Mods)+1)
	out = append(out, c.Mods...)
	out = append(out, c.Key)
	return out
}

// Matches reports whether the given set of currently-held key names
// (modifiers plus the just-changed main key) satisfies this chord exactly.
func (c Chord) Matches(held map[string]bool, key string) bool {
	if c.Empty() || key != c.Key {
		return false
	}
	want := make(map[string]bool, len(c.Mods))
	for _, m := range c.Mods {
		if !held[m] {
			return false
		}
		want[m] = true
	}
	for m, down := range held {
		if down && m != c.Key && !want[m] {
			return false
		}
	}
	return true
}

// Resolve turns "auto" into a concrete provider using the detected display
// session (SPEC_FULL.md §4.12): the desktop-portal dbus path for Wayland
// (the only reliable mechanism there in general), direct evdev device grab
// for X11, and gohook's cross-platform hook as the Windows/macOS default.
// An explicit (non-"auto") provider passes through unchanged.
func Resolve(provider string) string {
	if provider != "" && provider != ProviderAuto {
		return provider
	}
	switch runtime.GOOS {
	case "windows", "darwin":
		return ProviderGohook
	}
	switch display.Detect() {
	case display.SessionWaylandGNOME, display.SessionWaylandOther:
		return ProviderDBus
	case display.SessionX11:
		return ProviderEvdev
	default:
		return ProviderGohook
	}
}
