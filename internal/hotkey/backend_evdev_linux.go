//go:build linux

package hotkey

import (
	"context"
	"sync"

	"github.com/gvalkov/golang-evdev"

	"swictation/internal/daemonlog"
	"swictation/internal/session"
)

// evdevBackend grabs raw input devices directly, the X11 (and portal-less
// Wayland compositor) fallback path named in SPEC_FULL.md §4.12. It reuses
// the same gvalkov/golang-evdev key-name vocabulary internal/inject's
// uinput writer already keys by name, so a chord string like "ctrl+alt+d"
// means the same thing on the injection side and the hotkey side.
type evdevBackend struct {
	cfg  Config
	cmds chan<- session.Command
	log  *daemonlog.Logger
}

func newEvdevBackend(cfg Config, cmds chan<- session.Command, log *daemonlog.Logger) (backend, error) {
	return &evdevBackend{cfg: cfg, cmds: cmds, log: log}, nil
}

// modifierNames maps the evdev codes this backend treats as chord
// modifiers to the lowercase names ParseChord expects.
var modifierNames = map[uint16]string{
	evdev.KEY_LEFTCTRL: "ctrl", evdev.KEY_RIGHTCTRL: "ctrl",
	evdev.KEY_LEFTALT: "alt", evdev.KEY_RIGHTALT: "alt",
	evdev.KEY_LEFTSHIFT: "shift", evdev.KEY_RIGHTSHIFT: "shift",
	evdev.KEY_LEFTMETA: "super", evdev.KEY_RIGHTMETA: "super",
}

// mainKeyNames maps the (small, letters/digits/punctuation) vocabulary of
// "main" keys a chord can end in. Extending this table to a full layout is
// unnecessary for a single global chord comparison.
var mainKeyNames = map[uint16]string{
	evdev.KEY_A: "a", evdev.KEY_B: "b", evdev.KEY_C: "c", evdev.KEY_D: "d",
	evdev.KEY_E: "e", evdev.KEY_F: "f", evdev.KEY_G: "g", evdev.KEY_H: "h",
	evdev.KEY_I: "i", evdev.KEY_J: "j", evdev.KEY_K: "k", evdev.KEY_L: "l",
	evdev.KEY_M: "m", evdev.KEY_N: "n", evdev.KEY_O: "o", evdev.KEY_P: "p",
	evdev.KEY_Q: "q", evdev.KEY_R: "r", evdev.KEY_S: "s", evdev.KEY_T: "t",
	evdev.KEY_U: "u", evdev.KEY_V: "v", evdev.KEY_W: "w", evdev.KEY_X: "x",
	evdev.KEY_Y: "y", evdev.KEY_Z: "z",
	evdev.KEY_0: "0", evdev.KEY_1: "1", evdev.KEY_2: "2", evdev.KEY_3: "3",
	evdev.KEY_4: "4", evdev.KEY_5: "5", evdev.KEY_6: "6", evdev.KEY_7: "7",
	evdev.KEY_8: "8", evdev.KEY_9: "9",
	evdev.KEY_SPACE: "space", evdev.KEY_ENTER: "enter", evdev.KEY_TAB: "tab",
	evdev.KEY_ESC: "escape",
}

func (b *evdevBackend) Run(ctx context.Context) error {
	toggle, err := ParseChord(b.cfg.ToggleChord)
	if err != nil {
		return err
	}
	ptt, err := ParseChord(b.cfg.PushToTalkChord)
	if err != nil {
		return err
	}

	devices, err := evdev.ListInputDevices()
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, dev := range devices {
		if !looksLikeKeyboard(dev) {
			continue
		}
		wg.Add(1)
		go func(d *evdev.InputDevice) {
			defer wg.Done()
			b.readDevice(ctx, d, toggle, ptt)
		}(dev)
	}

	<-ctx.Done()
	wg.Wait()
	return nil
}

func looksLikeKeyboard(dev *evdev.InputDevice) bool {
	for capType, codes := range dev.Capabilities {
		if capType.Type == evdev.EV_KEY && len(codes) > 0 {
			return true
		}
	}
	return false
}

func (b *evdevBackend) readDevice(ctx context.Context, dev *evdev.InputDevice, toggle, ptt Chord) {
	held := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		ev, err := dev.ReadOne()
		if err != nil {
			b.log.Warn("read input device", "device", dev.Name, "err", err)
			return
		}
		if ev.Type != evdev.EV_KEY {
			continue
		}
		b.applyEvent(ev, held, toggle, ptt)
	}
}

// applyEvent updates the per-device held-key set and checks it against the
// configured chords. ev.Value is evdev's convention: 0 = released, 1 =
// pressed, 2 = autorepeat (ignored here).
func (b *evdevBackend) applyEvent(ev *evdev.InputEvent, held map[string]bool, toggle, ptt Chord) {
	code := uint16(ev.Code)
	if mod, ok := modifierNames[code]; ok {
		held[mod] = ev.Value != 0
		return
	}
	key, ok := mainKeyNames[code]
	if !ok || ev.Value == 2 {
		return
	}

	down := ev.Value == 1
	if down && toggle.Matches(held, key) {
		send(b.cmds, session.CmdToggle)
		return
	}
	if ptt.Matches(held, key) {
		if down {
			send(b.cmds, session.CmdPressToTalkOn)
		} else {
			send(b.cmds, session.CmdPressToTalkOff)
		}
	}
}
