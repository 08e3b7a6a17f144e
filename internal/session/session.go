// Package session implements the session/state machine (C9): the daemon's
// Idle/Recording states, the command channel fed by internal/hotkey and
// internal/ipc, and the pipeline worker that drives C3(embedded in
// internal/audio)->C4->C5->C6->C7->C8 on a speech segment.
//
// Grounded on the teacher's session/manager.go (a mutex-guarded state
// struct with explicit status fields), regeneralized per Design Note §9
// ("implement as a message-driven loop, not shared mutation with locks"):
// Manager owns a single goroutine that reads a command channel and performs
// every state transition itself, so no lock is needed around the state
// field at all.
package session

import (
	"context"
	"strings"
	"time"

	"swictation/internal/accel"
	"swictation/internal/asr"
	"swictation/internal/audio"
	"swictation/internal/daemonlog"
	"swictation/internal/features"
	"swictation/internal/inject"
	"swictation/internal/ringbuf"
	"swictation/internal/rewrite"
	"swictation/internal/vad"
)

// drainBatch is the scratch buffer size used to drain C1 on each wakeup.
// Sized generously above a typical malgo callback batch so a single drain
// loop iteration almost always empties the ring in one pass.
const drainBatch = 8192

// State is the daemon's externally-visible state, matching the
// broadcast protocol's state_change frame vocabulary.
type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
	StateError      State = "error"
)

// CommandKind enumerates every input that can reach the state machine,
// from either the hotkey path or the IPC path (spec.md §4.12: "both paths
// collapse to the same entry point in C9").
type CommandKind string

const (
	CmdToggle         CommandKind = "toggle"
	CmdPressToTalkOn  CommandKind = "press_to_talk_on"
	CmdPressToTalkOff CommandKind = "press_to_talk_off"
	CmdStatus         CommandKind = "status"
	CmdQuit           CommandKind = "quit"
)

// Command is sent by internal/hotkey or internal/ipc over Manager's command
// channel. Reply is optional; Status and Quit use it to return a synchronous
// result, Toggle/press-to-talk commands may leave it nil.
type Command struct {
	Kind  CommandKind
	Reply chan<- Reply
}

// Reply answers a Command that asked for one.
type Reply struct {
	State State
	Err   error
}

// recorder is the C2/C3 dependency, satisfied by *audio.Capture. Narrowed to
// an interface so the pipeline driver can be exercised with a fake in tests
// without a real audio backend.
type recorder interface {
	Start(audio.Config) error
	Arm()
	Disarm()
	Stop() error
	Notify() <-chan struct{}
	Drain(out []float32) int
}

// segmenter is the C5 dependency, satisfied by *vad.Detector.
type segmenter interface {
	ProcessAudio(samples []float32) (vad.Segment, bool)
	Flush() (vad.Segment, bool)
	Reset()
}

// melExtractor is the C4 dependency, satisfied by *features.Extractor.
type melExtractor interface {
	Compute(samples []float32) [][]float64
}

// corrector is the C7 Stage B dependency, satisfied by *rewrite.CorrectionStore.
type corrector interface {
	Apply(text, mode string) string
	ShouldFlush() bool
	FlushUsageCounts() error
}

// MetricsSink is the C10 dependency: per-session and per-segment recording.
// Implemented by internal/metrics; declared here so session has no import
// dependency on it (metrics depends on session's exported types instead).
type MetricsSink interface {
	SessionStart(startedAt time.Time) (sessionID int64, err error)
	SessionEnd(sessionID int64, endedAt time.Time, usage ResourceUsage) error
	RecordSegment(sessionID int64, text string, words int, durationSec float64, latency time.Duration, wpm float64) error
}

// BroadcastSink is the C11 dependency: fan-out to connected clients.
type BroadcastSink interface {
	PublishStateChange(state State)
	PublishSessionStart(sessionID int64, startedAt time.Time)
	PublishSessionEnd(sessionID int64, endedAt time.Time)
	PublishTranscription(text string, wpm, latencyMs float64, words int)
}

// Config carries the pipeline parameters a Manager needs beyond its
// constructed dependencies.
type Config struct {
	// BufferDurationSeconds sizes C1, the ring buffer staged between T_audio
	// and T_worker (spec.md §4.1: "Capacity is set by C9 from
	// buffer_duration_seconds * 16 000").
	BufferDurationSeconds float64
	CorrectionMode        string // "secretary"|"code"|"all", forwarded to rewrite.CorrectionStore.Apply
	DeviceIndex           *int
}

// Manager is C9. It owns the capture device, VAD, feature extractor, ASR
// engine, correction store and injector, and runs the only goroutine that
// ever calls into any of them concurrently with audio capture, avoiding the
// need for any lock around pipeline state.
type Manager struct {
	cfg Config
	log *daemonlog.Logger

	capture     recorder
	extractor   melExtractor
	detector    segmenter
	engine      asr.Engine
	injector    inject.Injector
	corrections corrector

	metrics   MetricsSink
	broadcast BroadcastSink

	cmdCh    chan Command
	ring     *ringbuf.Ring
	drainBuf []float32
	detectFn func() accel.Info
	sampler  *resourceSampler

	state         State
	sessionID     int64
	startedAt     time.Time
	pressedDown   bool // idempotency guard for push-to-talk (spec.md §4.12)
	transitioning bool
}

// New constructs a Manager. All dependencies must already be initialized
// (model files loaded, injector selected); Manager only orchestrates them.
func New(cfg Config, capture *audio.Capture, extractor *features.Extractor, detector *vad.Detector, engine asr.Engine, injector inject.Injector, corrections *rewrite.CorrectionStore, metrics MetricsSink, broadcast BroadcastSink, logger *daemonlog.Logger) *Manager {
	return newManager(cfg, capture, extractor, detector, engine, injector, corrections, metrics, broadcast, logger)
}

// newManager is the unexported constructor tests use to inject fakes for
// recorder/segmenter/melExtractor/corrector in place of the concrete types
// New requires from callers.
func newManager(cfg Config, capture recorder, extractor melExtractor, detector segmenter, engine asr.Engine, injector inject.Injector, corrections corrector, metrics MetricsSink, broadcast BroadcastSink, logger *daemonlog.Logger) *Manager {
	seconds := cfg.BufferDurationSeconds
	if seconds <= 0 {
		seconds = 5
	}
	return &Manager{
		cfg:         cfg,
		log:         logger,
		capture:     capture,
		extractor:   extractor,
		detector:    detector,
		engine:      engine,
		injector:    injector,
		corrections: corrections,
		metrics:     metrics,
		broadcast:   broadcast,
		cmdCh:       make(chan Command),
		ring:        ringbuf.New(int(seconds * float64(vad.SampleRate))),
		drainBuf:    make([]float32, drainBatch),
		detectFn:    accel.Detect,
		state:       StateIdle,
	}
}

// Commands returns the channel internal/hotkey and internal/ipc send
// Commands on.
func (m *Manager) Commands() chan<- Command { return m.cmdCh }

// Run is T_ipc's and T_worker's shared driver: it owns state exclusively and
// blocks until ctx is cancelled, draining in-flight work first (spec.md §5:
// "Shutdown waits for T_worker to drain").
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if m.state == StateRecording || m.state == StateProcessing {
				m.stopRecording()
			}
			return
		case cmd := <-m.cmdCh:
			m.handleCommand(ctx, cmd)
		case <-m.capture.Notify():
			m.drainRing()
		}
	}
}

func (m *Manager) handleCommand(ctx context.Context, cmd Command) {
	switch cmd.Kind {
	case CmdToggle:
		m.toggle(ctx)
	case CmdPressToTalkOn:
		// Idempotent: a duplicate key-down while already recording is a
		// no-op (spec.md §4.12: "duplicate events are idempotent").
		if !m.pressedDown {
			m.pressedDown = true
			if m.state == StateIdle {
				m.startRecording(ctx)
			}
		}
	case CmdPressToTalkOff:
		if m.pressedDown {
			m.pressedDown = false
			if m.state == StateRecording {
				m.stopRecording()
			}
		}
	case CmdStatus:
		reply(cmd.Reply, Reply{State: m.state})
	case CmdQuit:
		reply(cmd.Reply, Reply{State: m.state})
	}
}

func (m *Manager) toggle(ctx context.Context) {
	switch m.state {
	case StateIdle:
		m.startRecording(ctx)
	case StateRecording:
		m.stopRecording()
	default:
		// Mid-transition or error: re-entrancy forbidden, drop the toggle
		// (spec.md §4.9: "toggles during an active transition are ignored").
	}
}

// startRecording performs the Idle->Recording transition (spec.md §4.9):
// open a new session in C10, arm C2, reset C5 and C4 normalization state,
// clear the correction rewriter's use-count counters.
func (m *Manager) startRecording(ctx context.Context) {
	if m.transitioning {
		return
	}
	m.transitioning = true
	defer func() { m.transitioning = false }()

	now := time.Now()
	sessionID, err := m.metrics.SessionStart(now)
	if err != nil {
		m.log.Error("start session", "err", err)
		m.state = StateError
		m.broadcast.PublishStateChange(m.state)
		return
	}
	m.sessionID = sessionID
	m.startedAt = now

	m.detector.Reset()
	if err := m.corrections.FlushUsageCounts(); err != nil {
		m.log.Warn("flush correction usage counts before session start", "err", err)
	}

	m.ring.Clear()
	if err := m.capture.Start(audio.Config{
		DeviceIndex: m.cfg.DeviceIndex,
		TargetRate:  vad.SampleRate,
		Ring:        m.ring,
	}); err != nil {
		m.log.Error("start capture", "err", err)
		m.state = StateError
		m.broadcast.PublishStateChange(m.state)
		return
	}
	m.capture.Arm()
	m.sampler = startResourceSampler(ctx, m.detectFn)

	m.state = StateRecording
	m.broadcast.PublishSessionStart(m.sessionID, m.startedAt)
	m.broadcast.PublishStateChange(m.state)
}

// drainRing is T_worker's wakeup step (spec.md §4.1's pop_slice, called on
// every doorbell signal from T_audio): drain C1 until empty, handing each
// batch to C5 directly. VAD buffers partial windows internally (spec.md
// §4.5), so batches need no fixed size or alignment.
func (m *Manager) drainRing() {
	for {
		n := m.capture.Drain(m.drainBuf)
		if n == 0 {
			return
		}
		m.processChunk(m.drainBuf[:n])
	}
}

// processChunk is T_worker's per-chunk step: C4 feature extraction runs
// continuously isn't needed here since C5 VAD operates on raw samples
// directly (spec.md §4.5); C4 only runs once a VAD segment closes.
func (m *Manager) processChunk(samples []float32) {
	seg, closed := m.detector.ProcessAudio(samples)
	if !closed {
		return
	}
	m.runPipeline(seg)
}

// runPipeline drives C6->C7->C8 on a closed VAD segment (spec.md §4.9: "when
// C5 yields a segment, the worker times and runs C6, C7, then hands the
// result to C8 and records metrics"). This is the longest critical section
// in the daemon; it runs synchronously on T_worker, never blocking T_audio
// since T_audio only ever pushes into C1 and never waits on T_worker.
func (m *Manager) runPipeline(seg vad.Segment) {
	m.state = StateProcessing
	m.broadcast.PublishStateChange(m.state)
	defer func() {
		if m.state == StateProcessing {
			m.state = StateRecording
			m.broadcast.PublishStateChange(m.state)
		}
	}()

	mel := m.extractor.Compute(seg.Samples)
	start := time.Now()
	raw, _, err := m.engine.Recognize(mel)
	latency := time.Since(start)
	if err != nil {
		m.log.Error("recognize segment", "err", err)
		return
	}
	if strings.TrimSpace(raw) == "" {
		return
	}

	text := m.rewrite(raw)
	if err := inject.Inject(m.injector, text); err != nil {
		m.log.Error("inject text", "err", err)
	}

	words := len(strings.Fields(text))
	durSec := float64(len(seg.Samples)) / float64(vad.SampleRate)
	wpm := 0.0
	if durSec > 0 {
		wpm = float64(words) / (durSec / 60)
	}

	if err := m.metrics.RecordSegment(m.sessionID, text, words, durSec, latency, wpm); err != nil {
		m.log.Warn("record segment metrics", "err", err)
	}
	m.broadcast.PublishTranscription(text, wpm, float64(latency.Milliseconds()), words)

	if m.corrections.ShouldFlush() {
		if err := m.corrections.FlushUsageCounts(); err != nil {
			m.log.Warn("flush correction usage counts", "err", err)
		}
	}
}

// rewrite runs the full C7 pipeline: Stage A marker-based punctuation
// normalization, Stage B learned corrections on that canonical word form,
// the render step back to symbol form, then Stage C capitalization
// (spec.md §4.7, ordering per the worked example "hello comma world period"
// -> "Hello, world.").
//
// ProcessCapitalCommands must run before ApplyCapitalization: it matches
// the literal "capital X"/"all caps X" trigger words, which
// ApplyCapitalization's sentence-initial rule would otherwise title-case
// into "Capital X"/"All caps X" first, breaking the match (spec.md §4.7
// Stage C, "capital r robert" -> "Robert", "all caps fbi" -> "FBI").
func (m *Manager) rewrite(text string) string {
	text = rewrite.NormalizeBuiltinPunctuation(text)
	text = m.corrections.Apply(text, m.cfg.CorrectionMode)
	text = rewrite.RenderMarkersToSymbols(text)
	text = rewrite.ProcessCapitalCommands(text)
	text = rewrite.ApplyCapitalization(text)
	return text
}

// stopRecording performs the Recording->Idle transition (spec.md §4.9):
// disarm C2, flush C5, finalize the session in C10, push session_end to C11.
func (m *Manager) stopRecording() {
	if m.transitioning {
		return
	}
	m.transitioning = true
	defer func() { m.transitioning = false }()

	m.capture.Disarm()
	if err := m.capture.Stop(); err != nil {
		m.log.Error("stop capture", "err", err)
	}

	if seg, ok := m.detector.Flush(); ok {
		m.runPipeline(seg)
	}

	var usage ResourceUsage
	if m.sampler != nil {
		usage = m.sampler.Stop()
		m.sampler = nil
	}

	endedAt := time.Now()
	if err := m.metrics.SessionEnd(m.sessionID, endedAt, usage); err != nil {
		m.log.Error("end session", "err", err)
	}
	m.broadcast.PublishSessionEnd(m.sessionID, endedAt)

	m.state = StateIdle
	m.broadcast.PublishStateChange(m.state)
}

// State returns the current daemon state. Safe to call only from Run's
// goroutine or via the CmdStatus command from elsewhere.
func (m *Manager) State() State { return m.state }

func reply(ch chan<- Reply, r Reply) {
	if ch == nil {
		return
	}
	select {
	case ch <- r:
	default:
	}
}
