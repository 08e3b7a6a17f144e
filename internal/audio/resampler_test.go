package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestPassThroughWhenRatesEqual(t *testing.T) {
	r := NewResampler(16000, 16000)
	in := []float32{0.1, -0.2, 0.3, 0.4}
	out := r.Process(in)
	assert.Equal(t, in, out)
}

// TestOutputLenWithinOneSample checks spec.md §8: "for all input lengths,
// |output_len - input_len * target/source| <= 1".
func TestOutputLenWithinOneSample(t *testing.T) {
	rates := [][2]int{{44100, 16000}, {48000, 16000}, {8000, 16000}, {16000, 16000}}
	for _, rr := range rates {
		r := NewResampler(rr[0], rr[1])
		rapid.Check(t, func(rt *rapid.T) {
			n := rapid.IntRange(0, 4000).Draw(rt, "n")
			in := make([]float32, n)
			out := r.Process(in)
			want := float64(n) * float64(rr[1]) / float64(rr[0])
			diff := float64(len(out)) - want
			if diff < 0 {
				diff = -diff
			}
			assert.LessOrEqual(rt, diff, 1.0)
		})
	}
}

func TestChunkSizeIs100ms(t *testing.T) {
	r := NewResampler(44100, 16000)
	assert.Equal(t, 4410, r.ChunkSize())
}
