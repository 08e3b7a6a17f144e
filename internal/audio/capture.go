// Package audio implements device capture (C2) and sample-rate conversion
// (C3). Device handling is grounded on the malgo wiring pattern of the
// codebase this module was adapted from: context init, device enumeration, and a
// callback that converts the raw byte buffer into []float32 samples.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"swictation/internal/ringbuf"
)

// Device describes one enumerated capture device for diagnostics.
type Device struct {
	Index int
	Name  string
}

// Capture owns the malgo input stream for C2. It downmixes to mono by taking
// the first channel (never averaging — spec.md §4.2 is explicit that
// averaging halves amplitude when the mic only populates one channel of a
// stereo device), resamples to 16kHz via Resampler when the native rate
// differs, and pushes the result into C1, the ring buffer T_worker drains
// (spec.md §4.1/§4.2: "push the result into C1"). The device callback
// (T_audio) downmixes and resamples each block, then calls Ring.PushSlice
// plus a non-blocking doorbell send; nothing in it blocks.
type Capture struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mu      sync.Mutex
	armed   atomic.Bool
	running bool

	resampler *Resampler
	ring      *ringbuf.Ring
	notify    chan struct{}

	overrunCount atomic.Uint64
}

// Config configures a Capture instance.
type Config struct {
	DeviceIndex *int           // nil = system default
	TargetRate  int            // fixed 16000 per spec.md §3
	Ring        *ringbuf.Ring  // C1; capacity set by C9 per spec.md §4.1
}

// NewCapture initializes the audio backend context. Fatal to the caller if
// the platform audio subsystem cannot be reached at all (spec.md §7:
// "Audio device not found / permission denied": fatal at first Recording
// attempt, handled one level up by the session state machine — here we only
// report the error).
func NewCapture() (*Capture, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &Capture{ctx: ctx, notify: make(chan struct{}, 1)}, nil
}

// ListDevices enumerates capture devices for diagnostics (spec.md §4.2).
func (c *Capture) ListDevices() ([]Device, error) {
	devs, err := c.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerate capture devices: %w", err)
	}
	out := make([]Device, len(devs))
	for i, d := range devs {
		out[i] = Device{Index: i, Name: d.Name()}
	}
	return out, nil
}

// OverrunCount returns the number of samples dropped due to a full ring
// buffer since the capture started (spec.md §7: non-fatal, counted/logged).
func (c *Capture) OverrunCount() uint64 { return c.overrunCount.Load() }

// Notify returns a channel that receives a signal each time the device
// callback pushes a batch of samples into the ring buffer. T_worker selects
// on this instead of polling C1, so the only cross-goroutine signaling on
// the hot path is this single non-blocking channel send (spec.md §5's
// "T_audio... only calls C1::push").
func (c *Capture) Notify() <-chan struct{} { return c.notify }

// Drain pops up to len(out) buffered samples from the ring into out and
// returns the count actually read (spec.md §4.1's pop_slice, called from
// T_worker).
func (c *Capture) Drain(out []float32) int {
	if c.ring == nil {
		return 0
	}
	return c.ring.PopSlice(out)
}

// Start opens the configured device at its native rate/channel count and
// begins the callback. Armed must be set true (via Arm) before the callback
// does any work; this lets C9 open/close the stream once and arm/disarm it
// cheaply on every Idle<->Recording transition instead of tearing the device
// down each time.
func (c *Capture) Start(cfg Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	if cfg.Ring == nil {
		return fmt.Errorf("audio: ring buffer not configured")
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.Capture.Format = malgo.FormatF32
	if cfg.DeviceIndex != nil {
		devs, err := c.ctx.Devices(malgo.Capture)
		if err != nil {
			return fmt.Errorf("enumerate capture devices: %w", err)
		}
		if *cfg.DeviceIndex < 0 || *cfg.DeviceIndex >= len(devs) {
			return fmt.Errorf("audio device index %d out of range (have %d devices)", *cfg.DeviceIndex, len(devs))
		}
		devCfg.Capture.DeviceID = devs[*cfg.DeviceIndex].ID.Pointer()
	}

	c.ring = cfg.Ring

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			if !c.armed.Load() {
				return
			}
			c.onData(in, devCfg)
		},
	}

	device, err := malgo.InitDevice(c.ctx.Context, devCfg, callbacks)
	if err != nil {
		return fmt.Errorf("init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("start capture device: %w", err)
	}

	nativeRate := int(devCfg.SampleRate)
	c.resampler = NewResampler(nativeRate, cfg.TargetRate)

	c.device = device
	c.running = true
	return nil
}

func (c *Capture) onData(in []byte, devCfg malgo.DeviceConfig) {
	channels := int(devCfg.Capture.Channels)
	if channels < 1 {
		channels = 1
	}
	frameBytes := 4 * channels
	frames := len(in) / frameBytes

	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		// First-channel downmix only, never averaged (spec.md §4.2).
		off := i*frameBytes + 0
		bits := binary.LittleEndian.Uint32(in[off : off+4])
		mono[i] = math.Float32frombits(bits)
	}

	out := c.resampler.Process(mono)
	written := c.ring.PushSlice(out)
	if written < len(out) {
		c.overrunCount.Add(uint64(len(out) - written))
	}

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Arm enables the data callback to begin producing samples.
func (c *Capture) Arm() { c.armed.Store(true) }

// Disarm stops the data callback from producing further samples without
// tearing down the device (cheap re-arm on the next Recording transition).
func (c *Capture) Disarm() { c.armed.Store(false) }

// Stop tears down the stream. Any accumulated unflushed audio still sitting
// in the ring is discarded (spec.md §4.2: "on stop... any accumulated
// unflushed audio is discarded after a final flush of the VAD").
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return nil
	}
	c.armed.Store(false)
	if c.device != nil {
		if err := c.device.Stop(); err != nil {
			return fmt.Errorf("stop capture device: %w", err)
		}
		c.device.Uninit()
		c.device = nil
	}
	if c.ring != nil {
		c.ring.Clear()
	}
	c.running = false
	return nil
}

// Close releases the audio backend context entirely.
func (c *Capture) Close() {
	if c.ctx != nil {
		c.ctx.Uninit()
		c.ctx.Free()
	}
}
