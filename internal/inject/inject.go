// Package inject implements C8: emitting recognized text and key chords into
// the active window through whichever platform mechanism the current
// session supports.
package inject

import (
	"fmt"
	"regexp"

	"swictation/internal/display"
)

// Injector synthesizes input events in the active window. Implementations
// are expected to be cheap to call repeatedly; the worker goroutine invokes
// one per recognized segment.
type Injector interface {
	// InjectText types the given unicode string as if entered at the
	// keyboard, handling full UTF-16 surrogate pairs on platforms whose
	// input API uses UTF-16 code units.
	InjectText(text string) error
	// SendChord synthesizes the key-down/key-up sequence for a chord such as
	// "Cmd+C" or "super-Right".
	SendChord(chord string) error
}

var chordPattern = regexp.MustCompile(`<KEY:([^>]+)>`)

// Inject splits text on embedded "<KEY:mod+mod+key>" markers, dispatching
// literal runs to InjectText and each marker to SendChord, in order.
func Inject(inj Injector, text string) error {
	matches := chordPattern.FindAllStringSubmatchIndex(text, -1)
	last := 0
	for _, loc := range matches {
		if loc[0] > last {
			if err := inj.InjectText(text[last:loc[0]]); err != nil {
				return err
			}
		}
		if err := inj.SendChord(text[loc[2]:loc[3]]); err != nil {
			return err
		}
		last = loc[1]
	}
	if last < len(text) {
		return inj.InjectText(text[last:])
	}
	return nil
}

// Select picks the Injector the current display session requires, per
// spec's primary/fallback table: xdotool on X11, wtype on non-GNOME Wayland,
// and the uinput adapter everywhere else on Linux (the universal fallback,
// and GNOME Wayland's only option since its compositor lacks the
// wlr-virtual-keyboard protocol wtype needs).
func Select() (Injector, error) {
	switch display.Detect() {
	case display.SessionX11:
		if hasBinary("xdotool") {
			return newXdotoolInjector(), nil
		}
		return newUinputInjector()
	case display.SessionWaylandOther:
		if hasBinary("wtype") {
			return newWtypeInjector(), nil
		}
		return newUinputInjector()
	case display.SessionWaylandGNOME:
		// wtype must never be selected here: GNOME's Mutter compositor does
		// not implement the virtual-keyboard protocol wtype requires.
		return newUinputInjector()
	case display.SessionMacOS:
		return newDarwinInjector()
	default:
		return newUinputInjector()
	}
}

func unsupportedErr(platform string) error {
	return fmt.Errorf("inject: no text injection mechanism available for %s", platform)
}
