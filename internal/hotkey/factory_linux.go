//go:build linux

package hotkey

import (
	"fmt"

	"swictation/internal/daemonlog"
	"swictation/internal/session"
)

func newBackend(provider string, cfg Config, cmds chan<- session.Command, log *daemonlog.Logger) (backend, error) {
	switch provider {
	case ProviderDBus:
		return newDBusBackend(cfg, cmds, log)
	case ProviderEvdev:
		return newEvdevBackend(cfg, cmds, log)
	case ProviderGohook:
		return newGohookBackend(cfg, cmds, log)
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}
