package broadcast

import (
	"bufio"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"swictation/internal/daemonlog"
	"swictation/internal/session"
)

func newTestHub(t *testing.T) (*Hub, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "broadcast.sock")
	h, err := Listen(path, daemonlog.Default("test"))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h, path
}

func dial(t *testing.T, path string) (net.Conn, *bufio.Scanner) {
	t.Helper()
	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, bufio.NewScanner(conn)
}

func readFrame(t *testing.T, sc *bufio.Scanner) Frame {
	t.Helper()
	require.True(t, sc.Scan(), "expected a frame line")
	var f Frame
	require.NoError(t, json.Unmarshal(sc.Bytes(), &f))
	return f
}

func TestCatchUpSendsStateChangeWhenIdle(t *testing.T) {
	h, path := newTestHub(t)
	_, sc := dial(t, path)

	f := readFrame(t, sc)
	require.Equal(t, typeStateChange, f.Type)
	require.Equal(t, string(session.StateIdle), f.State)
	_ = h
}

func TestCatchUpIncludesActiveSessionAndReplayedSegments(t *testing.T) {
	h, path := newTestHub(t)

	h.PublishStateChange(session.StateRecording)
	h.PublishSessionStart(7, time.Now())
	h.PublishTranscription("hello there", 80, 120, 2)
	time.Sleep(20 * time.Millisecond) // let dispatchLoop apply state before a client connects

	_, sc := dial(t, path)

	state := readFrame(t, sc)
	require.Equal(t, typeStateChange, state.Type)
	require.Equal(t, string(session.StateRecording), state.State)

	start := readFrame(t, sc)
	require.Equal(t, typeSessionStart, start.Type)
	require.NotNil(t, start.SessionID)
	require.EqualValues(t, 7, *start.SessionID)

	seg := readFrame(t, sc)
	require.Equal(t, typeTranscription, seg.Type)
	require.Equal(t, "hello there", seg.Text)
}

func TestReplayBufferClearedOnSessionStartRetainedAcrossSessionEnd(t *testing.T) {
	h, path := newTestHub(t)

	h.PublishSessionStart(1, time.Now())
	h.PublishTranscription("first session text", 60, 100, 3)
	h.PublishSessionEnd(1, time.Now())
	time.Sleep(20 * time.Millisecond)

	// A client connecting after session_end still sees the transcript.
	_, sc := dial(t, path)
	readFrame(t, sc) // state_change
	seg := readFrame(t, sc)
	require.Equal(t, typeTranscription, seg.Type)
	require.Equal(t, "first session text", seg.Text)

	// Starting a new session clears the replay buffer.
	h.PublishSessionStart(2, time.Now())
	time.Sleep(20 * time.Millisecond)

	conn2, sc2 := dial(t, path)
	readFrame(t, sc2) // state_change
	start := readFrame(t, sc2)
	require.Equal(t, typeSessionStart, start.Type)
	// The hub keeps the connection open, so bound the wait for a further line.
	require.NoError(t, conn2.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	require.False(t, sc2.Scan(), "replay buffer must be empty right after a new session_start")
}

func TestPublishMetricsUpdateEncodesAllFields(t *testing.T) {
	h, path := newTestHub(t)
	_, sc := dial(t, path)
	readFrame(t, sc) // catch-up state_change

	sessionID := int64(9)
	h.PublishMetricsUpdate(session.StateRecording, &sessionID, 3, 40, 75.5, 32.0, 110, 512, 12.5, 8.0)

	f := readFrame(t, sc)
	require.Equal(t, typeMetricsUpdate, f.Type)
	require.Equal(t, string(session.StateRecording), f.State)
	require.NotNil(t, f.SessionID)
	require.EqualValues(t, 9, *f.SessionID)
	require.Equal(t, 3, f.Segments)
	require.Equal(t, 40, f.Words)
	require.InDelta(t, 75.5, f.WPM, 0.001)
	require.InDelta(t, 32.0, f.DurationS, 0.001)
	require.InDelta(t, 110.0, f.LatencyMs, 0.001)
	require.InDelta(t, 512.0, f.GPUMemoryMB, 0.001)
	require.InDelta(t, 12.5, f.GPUMemoryPercent, 0.001)
	require.InDelta(t, 8.0, f.CPUPercent, 0.001)
}

func TestLiveFrameDeliveredAfterCatchUp(t *testing.T) {
	h, path := newTestHub(t)
	_, sc := dial(t, path)
	readFrame(t, sc) // catch-up state_change

	h.PublishTranscription("live segment", 70, 90, 2)

	f := readFrame(t, sc)
	require.Equal(t, typeTranscription, f.Type)
	require.Equal(t, "live segment", f.Text)
}
