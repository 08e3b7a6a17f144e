package ipc

import (
	"bufio"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"swictation/internal/daemonlog"
	"swictation/internal/rewrite"
	"swictation/internal/session"
)

func newTestServer(t *testing.T) (*Server, string, chan session.Command) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "control.sock")
	cmds := make(chan session.Command, 4)
	store := rewrite.NewCorrectionStore(t.TempDir(), 0.25, daemonlog.Default("test"))
	require.NoError(t, store.Reload())
	s, err := Listen(path, cmds, store, daemonlog.Default("test"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path, cmds
}

func roundTrip(t *testing.T, path string, req request) response {
	t.Helper()
	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()

	body, err := json.Marshal(req)
	require.NoError(t, err)
	_, err = conn.Write(append(body, '\n'))
	require.NoError(t, err)

	// Longer than replyTimeout, so a server-side timeout reply still arrives.
	conn.SetReadDeadline(time.Now().Add(replyTimeout + 2*time.Second))
	sc := bufio.NewScanner(conn)
	require.True(t, sc.Scan())
	var resp response
	require.NoError(t, json.Unmarshal(sc.Bytes(), &resp))
	return resp
}

func TestToggleForwardsCommandAndReplies(t *testing.T) {
	_, path, cmds := newTestServer(t)
	go func() {
		cmd := <-cmds
		require.Equal(t, session.CmdToggle, cmd.Kind)
	}()

	resp := roundTrip(t, path, request{Action: "toggle"})
	require.Equal(t, "success", resp.Status)
	require.Equal(t, "toggled", resp.Message)
}

func TestStatusRepliesWithCurrentState(t *testing.T) {
	_, path, cmds := newTestServer(t)
	go func() {
		cmd := <-cmds
		require.Equal(t, session.CmdStatus, cmd.Kind)
		cmd.Reply <- session.Reply{State: session.StateRecording}
	}()

	resp := roundTrip(t, path, request{Action: "status"})
	require.Equal(t, "success", resp.Status)
	require.Equal(t, string(session.StateRecording), resp.State)
}

func TestStatusTimesOutWhenManagerNeverReplies(t *testing.T) {
	_, path, cmds := newTestServer(t)
	go func() { <-cmds }() // drain, never reply

	resp := roundTrip(t, path, request{Action: "status"})
	require.Equal(t, "error", resp.Status)
	require.NotEmpty(t, resp.Error)
}

func TestQuitInvokesQuitCallback(t *testing.T) {
	s, path, cmds := newTestServer(t)
	quit := make(chan struct{}, 1)
	s.Quit = func() { quit <- struct{}{} }

	go func() {
		cmd := <-cmds
		require.Equal(t, session.CmdQuit, cmd.Kind)
		cmd.Reply <- session.Reply{State: session.StateIdle}
	}()

	resp := roundTrip(t, path, request{Action: "quit"})
	require.Equal(t, "success", resp.Status)

	select {
	case <-quit:
	case <-time.After(time.Second):
		t.Fatal("expected Quit callback to fire")
	}
}

func TestUnknownActionReturnsError(t *testing.T) {
	_, path, _ := newTestServer(t)
	resp := roundTrip(t, path, request{Action: "bogus"})
	require.Equal(t, "error", resp.Status)
}

func TestLearnCorrectionStoresRuleAndReturnsID(t *testing.T) {
	_, path, _ := newTestServer(t)
	resp := roundTrip(t, path, request{
		Action:      "learn_correction",
		Trigger:     "gigaham",
		Replacement: "gigaam",
		Mode:        "all",
		MatchKind:   "exact",
	})
	require.Equal(t, "success", resp.Status)
	require.NotEmpty(t, resp.ID)
}

func TestLearnCorrectionRequiresTriggerAndReplacement(t *testing.T) {
	_, path, _ := newTestServer(t)
	resp := roundTrip(t, path, request{Action: "learn_correction"})
	require.Equal(t, "error", resp.Status)
}
