//go:build !linux

package hotkey

import (
	"fmt"

	"swictation/internal/daemonlog"
	"swictation/internal/session"
)

// newBackend on non-Linux platforms only ever has gohook: the dbus portal
// path and the raw evdev fallback are both Linux-only mechanisms, and
// Resolve never picks them outside runtime.GOOS == "linux".
func newBackend(provider string, cfg Config, cmds chan<- session.Command, log *daemonlog.Logger) (backend, error) {
	switch provider {
	case ProviderGohook:
		return newGohookBackend(cfg, cmds, log)
	default:
		return nil, fmt.Errorf("provider %q is only available on linux", provider)
	}
}
