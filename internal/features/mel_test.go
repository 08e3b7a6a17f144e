package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// TestFrameCountMatchesFormula checks spec.md §8: "features.shape ==
// (ceil((len - 400)/160) + 1, n_mels)".
func TestFrameCountMatchesFormula(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(WinLength, WinLength+4000).Draw(rt, "n")
		e := New(80)
		samples := make([]float32, n)
		out := e.Compute(samples)
		want := int(math.Ceil(float64(n-WinLength)/float64(HopLength))) + 1
		assert.Equal(rt, want, len(out))
	})
}

func TestPerBinNormalizedMeanZeroStdOne(t *testing.T) {
	e := New(80)
	samples := make([]float32, 4000)
	for i := range samples {
		samples[i] = float32(math.Sin(float64(i) * 0.1))
	}
	out := e.Compute(samples)
	for m := 0; m < 80; m++ {
		var mean, variance float64
		for _, f := range out {
			mean += f[m]
		}
		mean /= float64(len(out))
		for _, f := range out {
			d := f[m] - mean
			variance += d * d
		}
		variance /= float64(len(out))
		std := math.Sqrt(variance)
		assert.InDelta(t, 0, mean, 1e-5)
		if std > stdFloor {
			assert.InDelta(t, 1, std, 1e-5)
		}
	}
}
