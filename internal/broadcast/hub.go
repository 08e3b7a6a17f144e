// Package broadcast implements the C11 broadcast hub: a local stream-socket
// endpoint that fans out session/state/transcription events to any number of
// connected UI clients, replaying a catch-up prologue to each new connection
// (spec.md §4.11). Transport is a Unix domain socket on POSIX and a named
// pipe on Windows, the same OS-switched pattern the teacher's
// internal/api/grpc_pipe_unix.go / grpc_pipe_windows.go pair uses for its own
// control transport, adapted here from gRPC-over-pipe to
// newline-delimited-JSON-over-pipe.
package broadcast

import (
	"bufio"
	"encoding/json"
	"net"
	"sync"
	"time"

	"swictation/internal/daemonlog"
	"swictation/internal/session"
)

// eventQueueSize bounds the T_worker->T_meta channel (spec.md §5's "bounded
// channel"; SPEC_FULL.md §5 default of 256).
const eventQueueSize = 256

// client is one connected broadcast subscriber. Writes happen on a
// per-client goroutine draining sendCh, so one slow reader can never block
// the hub's fan-out loop or any other client.
type client struct {
	conn   net.Conn
	sendCh chan Frame
	dead   bool
}

// Hub is the C11 broadcast hub. It satisfies session.BroadcastSink.
type Hub struct {
	listener net.Listener
	log      *daemonlog.Logger

	events   chan Frame
	register chan *client
	done     chan struct{}
	mainWG   sync.WaitGroup // acceptLoop, dispatchLoop
	clientWG sync.WaitGroup // one clientWriter per connected client

	mu              sync.Mutex
	clients         map[*client]struct{}
	state           session.State
	activeSessionID *int64
	replay          []Frame
}

// Listen opens the broadcast socket at path (mode 0600 on POSIX) and starts
// accepting clients. Call Close to shut down.
func Listen(path string, logger *daemonlog.Logger) (*Hub, error) {
	ln, err := listen(path)
	if err != nil {
		return nil, err
	}
	h := &Hub{
		listener: ln,
		log:      logger,
		events:   make(chan Frame, eventQueueSize),
		register: make(chan *client),
		done:     make(chan struct{}),
		clients:  make(map[*client]struct{}),
		state:    session.StateIdle,
	}
	h.mainWG.Add(2)
	go h.acceptLoop()
	go h.dispatchLoop()
	return h, nil
}

// Close stops accepting new clients, waits for the hub's own loops to exit
// (so nothing else can still be writing to a client's send channel), then
// closes every connected client and waits for their writer goroutines.
func (h *Hub) Close() error {
	close(h.done)
	err := h.listener.Close()
	h.mainWG.Wait()

	h.mu.Lock()
	for c := range h.clients {
		h.closeClient(c)
	}
	h.clients = nil
	h.mu.Unlock()

	h.clientWG.Wait()
	return err
}

func (h *Hub) acceptLoop() {
	defer h.mainWG.Done()
	for {
		conn, err := h.listener.Accept()
		if err != nil {
			select {
			case <-h.done:
				return
			default:
				h.log.Warn("accept broadcast client", "err", err)
				return
			}
		}
		c := &client{conn: conn, sendCh: make(chan Frame, 32)}
		h.clientWG.Add(1)
		go h.clientWriter(c)
		select {
		case h.register <- c:
		case <-h.done:
			h.closeClient(c)
			return
		}
	}
}

// clientWriter drains a client's send queue to its socket, one JSON frame
// per line. It exits (and is reaped by the next fan-out) on any write error.
func (h *Hub) clientWriter(c *client) {
	defer h.clientWG.Done()
	w := bufio.NewWriter(c.conn)
	enc := json.NewEncoder(w)
	for f := range c.sendCh {
		if err := enc.Encode(f); err != nil {
			h.markDead(c)
			return
		}
		if err := w.Flush(); err != nil {
			h.markDead(c)
			return
		}
	}
}

func (h *Hub) markDead(c *client) {
	h.mu.Lock()
	c.dead = true
	h.mu.Unlock()
}

// dispatchLoop is T_meta: the sole owner of hub state (current daemon state,
// active session id, and the replay buffer), serialized through a single
// goroutine so no locking is needed around those fields.
func (h *Hub) dispatchLoop() {
	defer h.mainWG.Done()
	for {
		select {
		case c := <-h.register:
			h.sendCatchUp(c)
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
		case f := <-h.events:
			h.applyState(f)
			h.fanOut(f)
		case <-h.done:
			return
		}
	}
}

// applyState updates the hub's own view of daemon state from a frame about
// to be broadcast, and maintains the replay buffer per spec.md §4.11: cleared
// on session_start, retained across session_end.
func (h *Hub) applyState(f Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch f.Type {
	case typeStateChange:
		h.state = session.State(f.State)
	case typeSessionStart:
		h.activeSessionID = f.SessionID
		h.replay = nil
	case typeSessionEnd:
		h.activeSessionID = nil
	case typeTranscription:
		h.replay = append(h.replay, f)
	}
}

// sendCatchUp writes the three-frame catch-up prologue directly to a newly
// accepted client before it is added to the fan-out set, so it never misses
// or double-receives a frame relative to the prologue.
func (h *Hub) sendCatchUp(c *client) {
	h.mu.Lock()
	state := h.state
	sessionID := h.activeSessionID
	replay := append([]Frame(nil), h.replay...)
	h.mu.Unlock()

	frames := make([]Frame, 0, len(replay)+2)
	frames = append(frames, stateChangeFrame(string(state), nowUnix()))
	if sessionID != nil {
		frames = append(frames, sessionStartFrame(*sessionID, nowUnix()))
	}
	frames = append(frames, replay...)

	for _, f := range frames {
		select {
		case c.sendCh <- f:
		default:
			h.markDead(c)
			return
		}
	}
}

// fanOut enqueues f onto every live client's send channel. A client whose
// queue is already full is marked dead rather than blocking the hub (spec.md
// §4.11: "a send failure to any client marks that client dead; dead clients
// are pruned on the next broadcast").
func (h *Hub) fanOut(f Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.dead {
			h.closeClient(c)
			delete(h.clients, c)
			continue
		}
		select {
		case c.sendCh <- f:
		default:
			c.dead = true
		}
	}
}

func (h *Hub) closeClient(c *client) {
	close(c.sendCh)
	c.conn.Close()
}

func (h *Hub) emit(f Frame) {
	select {
	case h.events <- f:
	case <-h.done:
	}
}

// PublishStateChange satisfies session.BroadcastSink.
func (h *Hub) PublishStateChange(state session.State) {
	h.emit(stateChangeFrame(string(state), nowUnix()))
}

// PublishSessionStart satisfies session.BroadcastSink.
func (h *Hub) PublishSessionStart(sessionID int64, startedAt time.Time) {
	h.emit(sessionStartFrame(sessionID, float64(startedAt.Unix())))
}

// PublishSessionEnd satisfies session.BroadcastSink.
func (h *Hub) PublishSessionEnd(sessionID int64, endedAt time.Time) {
	h.emit(sessionEndFrame(sessionID, float64(endedAt.Unix())))
}

// PublishTranscription satisfies session.BroadcastSink.
func (h *Hub) PublishTranscription(text string, wpm, latencyMs float64, words int) {
	h.emit(transcriptionFrame(text, time.Now().Format("15:04:05"), wpm, latencyMs, words))
}

// PublishMetricsUpdate sends a resource/throughput snapshot. Not part of
// session.BroadcastSink (no per-segment caller owns these fields), and
// nothing in cmd/swictationd calls it. Unlike the other Publish methods it
// never blocks: when the event queue is full the frame is dropped, so
// observational metrics never hold up transcription frames.
func (h *Hub) PublishMetricsUpdate(state session.State, sessionID *int64, segments, words int, wpm, durationS, latencyMs, gpuMB, gpuPercent, cpuPercent float64) {
	select {
	case h.events <- metricsUpdateFrame(string(state), sessionID, segments, words, wpm, durationS, latencyMs, gpuMB, gpuPercent, cpuPercent):
	default:
	}
}

func nowUnix() float64 {
	return float64(time.Now().Unix())
}
