package hotkey

import (
	"context"

	hook "github.com/robotn/gohook"

	"swictation/internal/daemonlog"
	"swictation/internal/session"
)

// gohookBackend is the cross-platform hook Resolve picks on Windows and
// macOS, and on Linux when neither a Wayland nor an X11 session is detected
// (X11 resolves to evdev, Wayland to dbus), grounded on other_examples reference
// Jeff-Barlow-Spady-ramble's use of the same library for global hotkeys.
type gohookBackend struct {
	cfg  Config
	cmds chan<- session.Command
	log  *daemonlog.Logger
}

func newGohookBackend(cfg Config, cmds chan<- session.Command, log *daemonlog.Logger) (backend, error) {
	return &gohookBackend{cfg: cfg, cmds: cmds, log: log}, nil
}

func (b *gohookBackend) Run(ctx context.Context) error {
	toggle, err := ParseChord(b.cfg.ToggleChord)
	if err != nil {
		return err
	}
	ptt, err := ParseChord(b.cfg.PushToTalkChord)
	if err != nil {
		return err
	}

	if !toggle.Empty() {
		hook.Register(hook.KeyDown, toggle.Keys(), func(hook.Event) {
			send(b.cmds, session.CmdToggle)
		})
	}
	if !ptt.Empty() {
		hook.Register(hook.KeyDown, ptt.Keys(), func(hook.Event) {
			send(b.cmds, session.CmdPressToTalkOn)
		})
		hook.Register(hook.KeyUp, ptt.Keys(), func(hook.Event) {
			send(b.cmds, session.CmdPressToTalkOff)
		})
	}

	s := hook.Start()
	defer hook.End()
	// hook.Process drains the raw event stream and dispatches the
	// Register() callbacks above; it closes when hook.End() runs.
	processed := hook.Process(s)

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-processed:
			if !ok {
				return nil
			}
		}
	}
}
