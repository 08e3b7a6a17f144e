//go:build linux

package inject

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"time"
	"unicode"

	"github.com/gvalkov/golang-evdev"
	"golang.org/x/sys/unix"
)

// Raw uinput ioctl numbers (linux/uinput.h); stable across kernel versions
// since the legacy uinput_user_dev ABI was frozen.
const (
	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502

	evSyn = 0x00
	evKey = 0x01
	synReport = 0
)

// uinputInjector synthesizes keyboard events through a virtual /dev/uinput
// device: the universal fallback for X11/Wayland when xdotool/wtype are
// unavailable, and GNOME Wayland's only option since its compositor
// implements no virtual-keyboard protocol at all.
type uinputInjector struct {
	f *os.File
}

func newUinputInjector() (Injector, error) {
	f, err := os.OpenFile("/dev/uinput", os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("inject: open /dev/uinput: %w (is the uinput kernel module loaded and is this process in the input group?)", err)
	}

	if err := registerKeyBits(f); err != nil {
		f.Close()
		return nil, err
	}
	if err := createDevice(f); err != nil {
		f.Close()
		return nil, err
	}
	// Kernel needs a brief moment to register the new device node before the
	// first events are accepted.
	time.Sleep(100 * time.Millisecond)

	return &uinputInjector{f: f}, nil
}

func registerKeyBits(f *os.File) error {
	if err := ioctlInt(f, uiSetEvBit, evKey); err != nil {
		return fmt.Errorf("inject: UI_SET_EVBIT EV_KEY: %w", err)
	}
	for _, code := range asciiKeycodes {
		if err := ioctlInt(f, uiSetKeyBit, int(code)); err != nil {
			return fmt.Errorf("inject: UI_SET_KEYBIT %d: %w", code, err)
		}
	}
	for _, code := range chordKeycodes {
		if err := ioctlInt(f, uiSetKeyBit, int(code)); err != nil {
			return fmt.Errorf("inject: UI_SET_KEYBIT %d: %w", code, err)
		}
	}
	return nil
}

func ioctlInt(f *os.File, req uint, val int) error {
	return unix.IoctlSetInt(int(f.Fd()), req, val)
}

// createDevice writes the legacy uinput_user_dev struct and issues
// UI_DEV_CREATE, bringing up a virtual keyboard named "swictation-injector".
func createDevice(f *os.File) error {
	var buf bytes.Buffer
	name := [80]byte{}
	copy(name[:], "swictation-injector")
	buf.Write(name[:])

	// struct input_id { bustype, vendor, product, version uint16 }
	binary.Write(&buf, binary.LittleEndian, uint16(0x03)) // BUS_USB
	binary.Write(&buf, binary.LittleEndian, uint16(0x1))
	binary.Write(&buf, binary.LittleEndian, uint16(0x1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))

	binary.Write(&buf, binary.LittleEndian, uint32(0)) // ff_effects_max
	for i := 0; i < 64; i++ {
		binary.Write(&buf, binary.LittleEndian, int32(0)) // absmax
	}
	for i := 0; i < 64; i++ {
		binary.Write(&buf, binary.LittleEndian, int32(0)) // absmin
	}
	for i := 0; i < 64; i++ {
		binary.Write(&buf, binary.LittleEndian, int32(0)) // absfuzz
	}
	for i := 0; i < 64; i++ {
		binary.Write(&buf, binary.LittleEndian, int32(0)) // absflat
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("inject: write uinput_user_dev: %w", err)
	}
	return unix.IoctlSetInt(int(f.Fd()), uiDevCreate, 0)
}

func (u *uinputInjector) emit(evType, code uint16, value int32) error {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, int64(0)) // tv_sec, ignored by the kernel on submit
	binary.Write(&buf, binary.LittleEndian, int64(0)) // tv_usec
	binary.Write(&buf, binary.LittleEndian, evType)
	binary.Write(&buf, binary.LittleEndian, code)
	binary.Write(&buf, binary.LittleEndian, value)
	_, err := u.f.Write(buf.Bytes())
	return err
}

func (u *uinputInjector) tapKey(code uint16) error {
	if err := u.emit(evKey, code, 1); err != nil {
		return err
	}
	if err := u.emit(evSyn, synReport, 0); err != nil {
		return err
	}
	if err := u.emit(evKey, code, 0); err != nil {
		return err
	}
	return u.emit(evSyn, synReport, 0)
}

// InjectText types ASCII characters directly via synthetic keycodes. A rune
// outside the mapped ASCII table is typed through the GTK Unicode entry
// sequence (Ctrl+Shift held while tapping U and the hex codepoint digits,
// then both released; no Enter is sent) rather than a dedicated keycode,
// since uinput has no native arbitrary-Unicode input event.
func (u *uinputInjector) InjectText(text string) error {
	for _, r := range text {
		if code, shifted, ok := lookupASCIIKey(r); ok {
			if shifted {
				if err := u.emit(evKey, evdev.KEY_LEFTSHIFT, 1); err != nil {
					return err
				}
			}
			if err := u.tapKey(code); err != nil {
				return err
			}
			if shifted {
				if err := u.emit(evKey, evdev.KEY_LEFTSHIFT, 0); err != nil {
					return err
				}
				if err := u.emit(evSyn, synReport, 0); err != nil {
					return err
				}
			}
			continue
		}
		if err := u.typeUnicodeCodepoint(r); err != nil {
			return err
		}
	}
	return nil
}

func (u *uinputInjector) typeUnicodeCodepoint(r rune) error {
	if err := u.emit(evKey, evdev.KEY_LEFTCTRL, 1); err != nil {
		return err
	}
	if err := u.emit(evKey, evdev.KEY_LEFTSHIFT, 1); err != nil {
		return err
	}
	if err := u.tapKey(evdev.KEY_U); err != nil {
		return err
	}
	for _, h := range fmt.Sprintf("%x", r) {
		code, _, _ := lookupASCIIKey(h)
		if err := u.tapKey(code); err != nil {
			return err
		}
	}
	if err := u.emit(evKey, evdev.KEY_LEFTSHIFT, 0); err != nil {
		return err
	}
	if err := u.emit(evKey, evdev.KEY_LEFTCTRL, 0); err != nil {
		return err
	}
	return u.emit(evSyn, synReport, 0)
}

// SendChord parses "Cmd+C" / "super-Right" style chords and synthesizes the
// modifier-down, key-tap, modifier-up sequence.
func (u *uinputInjector) SendChord(chord string) error {
	mods, key := splitChord(chord)
	code, ok := chordKeyCodes[key]
	if !ok {
		return fmt.Errorf("inject: unknown chord key %q", key)
	}

	for _, m := range mods {
		if err := u.emit(evKey, modifierKeyCodes[m], 1); err != nil {
			return err
		}
	}
	if err := u.tapKey(code); err != nil {
		return err
	}
	for _, m := range mods {
		if err := u.emit(evKey, modifierKeyCodes[m], 0); err != nil {
			return err
		}
	}
	return u.emit(evSyn, synReport, 0)
}

func (u *uinputInjector) Close() error {
	_ = unix.IoctlSetInt(int(u.f.Fd()), uiDevDestroy, 0)
	return u.f.Close()
}

var modifierKeyCodes = map[string]uint16{
	"super": evdev.KEY_LEFTMETA,
	"ctrl":  evdev.KEY_LEFTCTRL,
	"alt":   evdev.KEY_LEFTALT,
	"shift": evdev.KEY_LEFTSHIFT,
}

var chordKeyCodes = map[string]uint16{
	"a": evdev.KEY_A, "b": evdev.KEY_B, "c": evdev.KEY_C, "d": evdev.KEY_D,
	"e": evdev.KEY_E, "f": evdev.KEY_F, "g": evdev.KEY_G, "h": evdev.KEY_H,
	"i": evdev.KEY_I, "j": evdev.KEY_J, "k": evdev.KEY_K, "l": evdev.KEY_L,
	"m": evdev.KEY_M, "n": evdev.KEY_N, "o": evdev.KEY_O, "p": evdev.KEY_P,
	"q": evdev.KEY_Q, "r": evdev.KEY_R, "s": evdev.KEY_S, "t": evdev.KEY_T,
	"u": evdev.KEY_U, "v": evdev.KEY_V, "w": evdev.KEY_W, "x": evdev.KEY_X,
	"y": evdev.KEY_Y, "z": evdev.KEY_Z,
	"left": evdev.KEY_LEFT, "right": evdev.KEY_RIGHT, "up": evdev.KEY_UP, "down": evdev.KEY_DOWN,
	"space": evdev.KEY_SPACE, "enter": evdev.KEY_ENTER, "tab": evdev.KEY_TAB, "escape": evdev.KEY_ESC,
}

var asciiKeycodes = collectKeycodes()
var chordKeycodes = collectChordKeycodes()

func collectKeycodes() []uint16 {
	seen := make(map[uint16]bool)
	var out []uint16
	add := func(c uint16) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, entry := range asciiKeyTable {
		add(entry.code)
	}
	add(evdev.KEY_LEFTSHIFT)
	return out
}

func collectChordKeycodes() []uint16 {
	seen := make(map[uint16]bool)
	var out []uint16
	add := func(c uint16) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, c := range chordKeyCodes {
		add(c)
	}
	for _, c := range modifierKeyCodes {
		add(c)
	}
	return out
}

type keyEntry struct {
	code    uint16
	shifted bool
}

var asciiKeyTable = buildASCIIKeyTable()

func buildASCIIKeyTable() map[rune]keyEntry {
	t := map[rune]keyEntry{
		' ': {evdev.KEY_SPACE, false}, '\n': {evdev.KEY_ENTER, false}, '\t': {evdev.KEY_TAB, false},
		'.': {evdev.KEY_DOT, false}, ',': {evdev.KEY_COMMA, false}, '-': {evdev.KEY_MINUS, false},
		'\'': {evdev.KEY_APOSTROPHE, false}, '/': {evdev.KEY_SLASH, false}, ';': {evdev.KEY_SEMICOLON, false},
		'?': {evdev.KEY_SLASH, true}, '!': {evdev.KEY_1, true}, ':': {evdev.KEY_SEMICOLON, true},
	}
	letters := []struct {
		r    rune
		code uint16
	}{
		{'a', evdev.KEY_A}, {'b', evdev.KEY_B}, {'c', evdev.KEY_C}, {'d', evdev.KEY_D},
		{'e', evdev.KEY_E}, {'f', evdev.KEY_F}, {'g', evdev.KEY_G}, {'h', evdev.KEY_H},
		{'i', evdev.KEY_I}, {'j', evdev.KEY_J}, {'k', evdev.KEY_K}, {'l', evdev.KEY_L},
		{'m', evdev.KEY_M}, {'n', evdev.KEY_N}, {'o', evdev.KEY_O}, {'p', evdev.KEY_P},
		{'q', evdev.KEY_Q}, {'r', evdev.KEY_R}, {'s', evdev.KEY_S}, {'t', evdev.KEY_T},
		{'u', evdev.KEY_U}, {'v', evdev.KEY_V}, {'w', evdev.KEY_W}, {'x', evdev.KEY_X},
		{'y', evdev.KEY_Y}, {'z', evdev.KEY_Z},
	}
	for _, l := range letters {
		t[l.r] = keyEntry{l.code, false}
		t[unicode.ToUpper(l.r)] = keyEntry{l.code, true}
	}
	digits := []struct {
		r    rune
		code uint16
	}{
		{'0', evdev.KEY_0}, {'1', evdev.KEY_1}, {'2', evdev.KEY_2}, {'3', evdev.KEY_3},
		{'4', evdev.KEY_4}, {'5', evdev.KEY_5}, {'6', evdev.KEY_6}, {'7', evdev.KEY_7},
		{'8', evdev.KEY_8}, {'9', evdev.KEY_9},
	}
	for _, d := range digits {
		t[d.r] = keyEntry{d.code, false}
	}
	return t
}

func lookupASCIIKey(r rune) (code uint16, shifted bool, ok bool) {
	entry, ok := asciiKeyTable[r]
	if !ok {
		return 0, false, false
	}
	return entry.code, entry.shifted, true
}
