// Package vad implements the VAD segmenter (C5): Silero VAD v4 inference
// plus the SILENCE/SPEECH/TRAILING_SILENCE endpointing state machine from
// spec.md §4.5. Per-window speech inference is delegated to
// k2-fsa/sherpa-onnx-go's Silero VAD binding (already a teacher dependency,
// used there only for offline speaker diarization — rewired here to drive
// VAD so the dependency serves in-scope code instead of being dropped); the
// endpointing state machine itself is implemented directly, following
// the buffering-across-calls contract of the original VAD crate
// (process_audio/flush/reset, partial windows carried to the next call).
package vad

import (
	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"
)

// WindowSize is the fixed Silero VAD v4 window: 512 samples at 16kHz (32ms).
const WindowSize = 512

// SampleRate is the fixed rate the VAD operates at.
const SampleRate = 16000

// ONNXThreshold is the default threshold. The ONNX Silero model emits
// probabilities roughly 100-200x lower than the commonly cited PyTorch
// Silero thresholds; 0.003 is correct here, 0.5 (a PyTorch-scale threshold)
// would silently starve the state machine of SPEECH transitions. See
// spec.md §4.5.
const ONNXThreshold = 0.003

type state int

const (
	stateSilence state = iota
	stateSpeech
	stateTrailingSilence
)

// Config carries the endpointing parameters from spec.md §4.5/§6.
type Config struct {
	ModelPath   string
	Threshold   float32
	MinSilence  float64 // seconds
	MinSpeech   float64 // seconds
	MaxSpeech   float64 // seconds
	NumThreads  int
}

// Segment is a detected speech region: the full sample vector plus the
// sample index of its onset within the session.
type Segment struct {
	StartSample int64
	Samples     []float32
}

// Detector implements process_audio/flush/reset per spec.md §4.5.
type Detector struct {
	cfg   Config
	raw   *sherpa.VoiceActivityDetector
	infer func(window []float32) bool // overridable in tests; defaults to d.inferWindow

	st            state
	pending       []float32 // buffered partial window (<512 samples)
	sampleCursor  int64     // absolute sample index of the next window
	onsetSample   int64
	speechSamples []float32
	silenceFrames int
	speechFrames  int
}

const framesPerSecond = float64(SampleRate) / float64(WindowSize)

// New constructs a Detector. modelPath must point at the silero_vad.onnx
// artifact.
func New(cfg Config) *Detector {
	vadCfg := &sherpa.VadModelConfig{
		SileroVad: sherpa.SileroVadModelConfig{
			Model:              cfg.ModelPath,
			Threshold:          cfg.Threshold,
			MinSilenceDuration: float32(cfg.MinSilence),
			MinSpeechDuration:  float32(cfg.MinSpeech),
			WindowSize:         WindowSize,
		},
		SampleRate: SampleRate,
		NumThreads: cfg.NumThreads,
		Debug:      0,
	}
	raw := sherpa.NewVoiceActivityDetector(vadCfg, 60) // 60s ring buffer, matches original

	d := &Detector{cfg: cfg, raw: raw, st: stateSilence}
	d.infer = d.inferWindow
	return d
}

// Close releases the underlying ONNX session.
func (d *Detector) Close() {
	if d.raw != nil {
		sherpa.DeleteVoiceActivityDetector(d.raw)
		d.raw = nil
	}
}

// ProcessAudio ingests any number of samples, running inference on every
// complete 512-sample window, and returns a Segment each time the state
// machine closes a speech region with duration >= MinSpeech. Returns nil,
// false when no region closed (including when the region was dropped for
// being shorter than MinSpeech).
func (d *Detector) ProcessAudio(samples []float32) (Segment, bool) {
	d.pending = append(d.pending, samples...)

	var result Segment
	var ok bool
	for len(d.pending) >= WindowSize {
		window := d.pending[:WindowSize]
		d.pending = d.pending[WindowSize:]

		isSpeech := d.infer(window)
		if seg, closed := d.step(isSpeech, window); closed {
			result, ok = seg, true
		}
	}
	return result, ok
}

func (d *Detector) inferWindow(window []float32) bool {
	d.raw.AcceptWaveform(window)
	return d.raw.IsSpeechDetected()
}

// step advances the state machine by one window and returns a closed
// Segment when applicable, per the transition table in spec.md §4.5.
func (d *Detector) step(isSpeech bool, window []float32) (Segment, bool) {
	windowStart := d.sampleCursor
	d.sampleCursor += WindowSize

	switch d.st {
	case stateSilence:
		if isSpeech {
			d.st = stateSpeech
			d.onsetSample = windowStart
			d.speechSamples = append([]float32(nil), window...)
			d.speechFrames = 1
			d.silenceFrames = 0
		}
		return Segment{}, false

	case stateSpeech:
		if isSpeech {
			d.speechSamples = append(d.speechSamples, window...)
			d.speechFrames++
			if d.durationSeconds() >= d.cfg.MaxSpeech {
				return d.forceEmitAndRearm()
			}
			return Segment{}, false
		}
		d.st = stateTrailingSilence
		d.speechSamples = append(d.speechSamples, window...)
		d.speechFrames++
		d.silenceFrames = 1
		if d.durationSeconds() >= d.cfg.MaxSpeech {
			return d.forceEmitAndRearm()
		}
		return Segment{}, false

	case stateTrailingSilence:
		if isSpeech {
			d.st = stateSpeech
			d.speechSamples = append(d.speechSamples, window...)
			d.speechFrames++
			d.silenceFrames = 0
			if d.durationSeconds() >= d.cfg.MaxSpeech {
				return d.forceEmitAndRearm()
			}
			return Segment{}, false
		}
		d.speechSamples = append(d.speechSamples, window...)
		d.speechFrames++
		d.silenceFrames++
		if d.durationSeconds() >= d.cfg.MaxSpeech {
			return d.forceEmitAndRearm()
		}
		if float64(d.silenceFrames)/framesPerSecond >= d.cfg.MinSilence {
			return d.closeRegion()
		}
		return Segment{}, false
	}
	return Segment{}, false
}

func (d *Detector) durationSeconds() float64 {
	return float64(d.speechFrames) / framesPerSecond
}

// closeRegion ends the current region on dwell-time silence expiry; emits
// only if the speech portion satisfies MinSpeech, else drops it silently.
func (d *Detector) closeRegion() (Segment, bool) {
	// Trim the trailing silence windows back off before measuring/emitting:
	// the region's "speech" duration should reflect onset..last-speech-window,
	// per spec.md's duration invariant (min_speech <= duration <= max_speech).
	trailingSamples := d.silenceFrames * WindowSize
	speechOnly := d.speechSamples
	if trailingSamples > 0 && trailingSamples <= len(speechOnly) {
		speechOnly = speechOnly[:len(speechOnly)-trailingSamples]
	}
	durSec := float64(len(speechOnly)) / float64(SampleRate)

	seg := Segment{StartSample: d.onsetSample, Samples: speechOnly}
	d.resetRegion()

	if durSec < d.cfg.MinSpeech {
		return Segment{}, false
	}
	return seg, true
}

// forceEmitAndRearm closes the region immediately on hitting MaxSpeech and
// re-arms as if a new onset begins at the next window (spec.md §4.5: "force-
// emit and immediately re-arm").
func (d *Detector) forceEmitAndRearm() (Segment, bool) {
	seg := Segment{StartSample: d.onsetSample, Samples: d.speechSamples}
	d.resetRegion()
	return seg, true
}

func (d *Detector) resetRegion() {
	d.st = stateSilence
	d.speechSamples = nil
	d.speechFrames = 0
	d.silenceFrames = 0
}

// Flush forces any in-progress region to close and returns it, per spec.md
// §4.5. Used when capture stops (spec.md §4.2).
func (d *Detector) Flush() (Segment, bool) {
	if d.st == stateSilence || len(d.speechSamples) == 0 {
		d.resetRegion()
		return Segment{}, false
	}
	durSec := float64(len(d.speechSamples)) / float64(SampleRate)
	seg := Segment{StartSample: d.onsetSample, Samples: d.speechSamples}
	d.resetRegion()
	if durSec < d.cfg.MinSpeech {
		return Segment{}, false
	}
	return seg, true
}

// Reset clears LSTM state and buffers (spec.md §4.5), used on every
// Idle->Recording transition (spec.md §4.9).
func (d *Detector) Reset() {
	if d.raw != nil {
		d.raw.Reset()
	}
	d.pending = nil
	d.sampleCursor = 0
	d.resetRegion()
}
