//go:build linux

package hotkey

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"

	"swictation/internal/daemonlog"
	"swictation/internal/session"
)

// dbusBackend binds global shortcuts through the
// org.freedesktop.portal.GlobalShortcuts desktop-portal interface, the only
// reliable mechanism for a global hotkey under GNOME/KDE Wayland
// (SPEC_FULL.md §4.12). This is a best-effort port of the portal's
// session/request handshake, not a full implementation of every portal
// capability (no restore-token persistence across restarts, no shortcut
// re-binding UI) — see DESIGN.md.
type dbusBackend struct {
	cfg  Config
	cmds chan<- session.Command
	log  *daemonlog.Logger
}

func newDBusBackend(cfg Config, cmds chan<- session.Command, log *daemonlog.Logger) (backend, error) {
	return &dbusBackend{cfg: cfg, cmds: cmds, log: log}, nil
}

const (
	portalDest      = "org.freedesktop.portal.Desktop"
	portalPath      = "/org/freedesktop/portal/desktop"
	portalIface     = "org.freedesktop.portal.GlobalShortcuts"
	requestIface    = "org.freedesktop.portal.Request"
	shortcutToggle  = "swictation-toggle"
	shortcutPushTo  = "swictation-push-to-talk"
)

func (b *dbusBackend) Run(ctx context.Context) error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("connect session bus: %w", err)
	}
	defer conn.Close()

	sessionHandle, err := b.createSession(conn)
	if err != nil {
		return fmt.Errorf("create global-shortcuts session: %w", err)
	}

	if err := b.bindShortcuts(conn, sessionHandle); err != nil {
		return fmt.Errorf("bind shortcuts: %w", err)
	}

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)
	matchRule := fmt.Sprintf("type='signal',interface='%s',member='Activated'", portalIface)
	if err := conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, matchRule).Err; err != nil {
		return fmt.Errorf("subscribe to Activated signal: %w", err)
	}
	releaseRule := fmt.Sprintf("type='signal',interface='%s',member='Deactivated'", portalIface)
	if err := conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, releaseRule).Err; err != nil {
		return fmt.Errorf("subscribe to Deactivated signal: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			b.handleSignal(sig)
		}
	}
}

// createSession opens a GlobalShortcuts session and blocks for the portal's
// Response signal on the returned request object, per the desktop-portal
// request pattern every portal call follows.
func (b *dbusBackend) createSession(conn *dbus.Conn) (dbus.ObjectPath, error) {
	obj := conn.Object(portalDest, dbus.ObjectPath(portalPath))
	token := "swictation_" + uuid.NewString()
	options := map[string]dbus.Variant{
		"handle_token":    dbus.MakeVariant(token),
		"session_handle_token": dbus.MakeVariant(token),
	}

	var requestPath dbus.ObjectPath
	if err := obj.Call(portalIface+".CreateSession", 0, options).Store(&requestPath); err != nil {
		return "", err
	}

	result, err := awaitResponse(conn, requestPath)
	if err != nil {
		return "", err
	}
	handle, ok := result["session_handle"].Value().(string)
	if !ok {
		return "", fmt.Errorf("portal response missing session_handle")
	}
	return dbus.ObjectPath(handle), nil
}

// bindShortcuts registers the toggle and push-to-talk chords as
// portal-level shortcuts. The portal's own UI (compositor-provided) is
// responsible for actually mapping these to physical keys; we only supply
// the human-readable descriptions the spec's chord strings already carry.
func (b *dbusBackend) bindShortcuts(conn *dbus.Conn, sessionHandle dbus.ObjectPath) error {
	obj := conn.Object(portalDest, dbus.ObjectPath(portalPath))

	type shortcutEntry struct {
		ID          string
		Description map[string]dbus.Variant
	}
	shortcuts := []shortcutEntry{
		{ID: shortcutToggle, Description: map[string]dbus.Variant{
			"description":    dbus.MakeVariant("Toggle dictation"),
			"preferred_trigger": dbus.MakeVariant(b.cfg.ToggleChord),
		}},
	}
	if ptt, _ := ParseChord(b.cfg.PushToTalkChord); !ptt.Empty() {
		shortcuts = append(shortcuts, shortcutEntry{ID: shortcutPushTo, Description: map[string]dbus.Variant{
			"description":       dbus.MakeVariant("Push to talk"),
			"preferred_trigger": dbus.MakeVariant(b.cfg.PushToTalkChord),
		}})
	}

	options := map[string]dbus.Variant{
		"handle_token": dbus.MakeVariant("swictation_" + uuid.NewString()),
	}
	var requestPath dbus.ObjectPath
	call := obj.Call(portalIface+".BindShortcuts", 0, sessionHandle, shortcuts, "", options)
	if err := call.Store(&requestPath); err != nil {
		return err
	}
	_, err := awaitResponse(conn, requestPath)
	return err
}

// awaitResponse blocks for a single org.freedesktop.portal.Request.Response
// signal on requestPath and returns its results map.
func awaitResponse(conn *dbus.Conn, requestPath dbus.ObjectPath) (map[string]dbus.Variant, error) {
	signals := make(chan *dbus.Signal, 1)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	rule := fmt.Sprintf("type='signal',interface='%s',member='Response',path='%s'", requestIface, requestPath)
	if err := conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule).Err; err != nil {
		return nil, err
	}

	sig := <-signals
	if len(sig.Body) < 2 {
		return nil, fmt.Errorf("malformed portal Response signal")
	}
	code, ok := sig.Body[0].(uint32)
	if !ok || code != 0 {
		return nil, fmt.Errorf("portal request denied or failed (code %v)", sig.Body[0])
	}
	results, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("portal response missing results map")
	}
	return results, nil
}

func (b *dbusBackend) handleSignal(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	shortcutID, ok := sig.Body[1].(string)
	if !ok {
		return
	}
	switch sig.Name {
	case portalIface + ".Activated":
		switch shortcutID {
		case shortcutToggle:
			send(b.cmds, session.CmdToggle)
		case shortcutPushTo:
			send(b.cmds, session.CmdPressToTalkOn)
		}
	case portalIface + ".Deactivated":
		if shortcutID == shortcutPushTo {
			send(b.cmds, session.CmdPressToTalkOff)
		}
	}
}
