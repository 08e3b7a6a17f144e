package vad

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDetector(cfg Config, speechWindows func(windowIndex int) bool) *Detector {
	d := &Detector{cfg: cfg, st: stateSilence}
	idx := -1
	d.infer = func(_ []float32) bool {
		idx++
		return speechWindows(idx)
	}
	return d
}

func defaultTestConfig() Config {
	return Config{
		Threshold:  ONNXThreshold,
		MinSilence: 0.5,
		MinSpeech:  0.25,
		MaxSpeech:  30.0,
	}
}

// TestSilenceNeverEmits checks spec.md §8: "pure silence input never emits a
// segment".
func TestSilenceNeverEmits(t *testing.T) {
	d := newTestDetector(defaultTestConfig(), func(int) bool { return false })
	samples := make([]float32, WindowSize*200)
	_, ok := d.ProcessAudio(samples)
	assert.False(t, ok)
	_, ok = d.Flush()
	assert.False(t, ok)
}

// TestSpeechLongerThanMinSpeechEmitsExactlyOne checks spec.md §8's second
// VAD property.
func TestSpeechLongerThanMinSpeechEmitsExactlyOne(t *testing.T) {
	// min_speech=0.25s => 0.25*16000/512 ≈ 7.8 windows. Use 20 speech windows
	// then enough silence windows to clear min_silence (0.5s ≈ 16 windows).
	speechWindows := 20
	silenceWindows := 20
	d := newTestDetector(defaultTestConfig(), func(i int) bool {
		return i < speechWindows
	})

	total := (speechWindows + silenceWindows) * WindowSize
	samples := make([]float32, total)
	seg, ok := d.ProcessAudio(samples)
	require.True(t, ok)
	assert.Equal(t, int64(0), seg.StartSample)

	durSec := float64(len(seg.Samples)) / float64(SampleRate)
	assert.GreaterOrEqual(t, durSec, 0.25)
	assert.LessOrEqual(t, durSec, 30.0)

	// No further segment should be produced from the same stream.
	_, ok2 := d.Flush()
	assert.False(t, ok2)
}

func TestShortSpeechBelowMinSpeechDropped(t *testing.T) {
	// Only 2 windows of speech (~64ms) then silence: below min_speech (0.25s).
	d := newTestDetector(defaultTestConfig(), func(i int) bool { return i < 2 })
	total := (2 + 20) * WindowSize
	_, ok := d.ProcessAudio(make([]float32, total))
	assert.False(t, ok)
}

func TestMaxSpeechForcesEmitAndRearms(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.MaxSpeech = 1.0 // force after 1s = ~31.25 windows
	d := newTestDetector(cfg, func(int) bool { return true })

	windows := int(cfg.MaxSpeech*float64(SampleRate)/float64(WindowSize)) + 5
	seg, ok := d.ProcessAudio(make([]float32, windows*WindowSize))
	require.True(t, ok)
	durSec := float64(len(seg.Samples)) / float64(SampleRate)
	assert.LessOrEqual(t, durSec, cfg.MaxSpeech+0.05)
}

func TestResetClearsBuffers(t *testing.T) {
	d := newTestDetector(defaultTestConfig(), func(int) bool { return true })
	d.ProcessAudio(make([]float32, WindowSize*3))
	d.raw = nil // avoid touching the real sherpa handle in Reset
	d.Reset()
	assert.Equal(t, stateSilence, d.st)
	assert.Equal(t, int64(0), d.sampleCursor)
}
