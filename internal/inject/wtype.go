package inject

import (
	"fmt"
	"os/exec"
	"strings"
)

// wtypeInjector shells out to wtype, the Wayland equivalent of xdotool for
// wlroots-based and KDE compositors (never selected for GNOME, whose
// compositor doesn't implement the virtual-keyboard protocol wtype needs).
type wtypeInjector struct{}

func newWtypeInjector() Injector {
	return wtypeInjector{}
}

func (wtypeInjector) InjectText(text string) error {
	if text == "" {
		return nil
	}
	cmd := exec.Command("wtype", text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("wtype: %w: %s", err, out)
	}
	return nil
}

func (wtypeInjector) SendChord(chord string) error {
	mods, key := splitChord(chord)
	args := make([]string, 0, len(mods)*2+2)
	for _, m := range mods {
		args = append(args, "-M", m)
	}
	args = append(args, "-k", key)
	for _, m := range mods {
		args = append(args, "-m", m)
	}

	cmd := exec.Command("wtype", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("wtype %v: %w: %s", args, err, out)
	}
	return nil
}

// splitChord parses "Cmd+C" / "super-Right" into wtype's modifier list and
// terminal key name.
func splitChord(chord string) (mods []string, key string) {
	chord = strings.NewReplacer("-", "+", " ", "").Replace(chord)
	parts := strings.Split(chord, "+")
	if len(parts) == 0 {
		return nil, ""
	}
	for _, p := range parts[:len(parts)-1] {
		mods = append(mods, normalizeModifier(p))
	}
	return mods, strings.ToLower(parts[len(parts)-1])
}
