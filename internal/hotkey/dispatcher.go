package hotkey

import (
	"context"
	"fmt"

	"swictation/internal/daemonlog"
	"swictation/internal/session"
)

// backend is satisfied by each platform-specific hotkey mechanism. Run
// blocks until ctx is cancelled or the underlying hook library's own event
// loop exits.
type backend interface {
	Run(ctx context.Context) error
}

// Dispatcher is C12's hotkey half. It owns no session state itself: every
// recognized chord is forwarded as a session.Command on cmds, the same
// channel internal/ipc writes to, so both input paths collapse onto
// internal/session's single command consumer (spec.md §4.12).
type Dispatcher struct {
	backend backend
	log     *daemonlog.Logger
}

// New resolves cfg.Provider and constructs the matching backend.
func New(cfg Config, cmds chan<- session.Command, logger *daemonlog.Logger) (*Dispatcher, error) {
	if _, err := ParseChord(cfg.ToggleChord); err != nil {
		return nil, fmt.Errorf("toggle chord: %w", err)
	}
	if _, err := ParseChord(cfg.PushToTalkChord); err != nil {
		return nil, fmt.Errorf("push-to-talk chord: %w", err)
	}

	provider := Resolve(cfg.Provider)
	b, err := newBackend(provider, cfg, cmds, logger)
	if err != nil {
		return nil, fmt.Errorf("hotkey provider %q: %w", provider, err)
	}
	logger.Info("hotkey dispatcher ready", "provider", provider)
	return &Dispatcher{backend: b, log: logger}, nil
}

// Run blocks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	return d.backend.Run(ctx)
}

// send forwards a recognized chord event to session.Manager. Used by every
// backend implementation.
func send(cmds chan<- session.Command, kind session.CommandKind) {
	cmds <- session.Command{Kind: kind}
}
