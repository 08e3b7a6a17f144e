package audio

import "math"

// Resampler converts a stream of mono float32 samples at an arbitrary source
// rate to a fixed target rate using windowed-sinc polyphase interpolation
// (C3). It is grounded on the original daemon's use of rubato::SincFixedIn
// (sinc half-length 32, Blackman-Harris window, cutoff 0.95 of Nyquist,
// oversampling 128) and processes input in ~100ms chunks at the source rate,
// matching that crate's chunk_size convention.
type Resampler struct {
	sourceRate int
	targetRate int

	halfTaps    int // sinc half-length in source-sample units (32)
	oversample  int // polyphase table resolution (128)
	cutoff      float64
	kernel      [][]float64 // [phase][tap] precomputed polyphase kernel

	history []float64 // trailing halfTaps*2 source samples carried across calls
}

const (
	defaultHalfTaps   = 32
	defaultOversample = 128
	defaultCutoff     = 0.95
)

// NewResampler builds a resampler from sourceRate to targetRate. When the
// rates are equal, Process is a pure pass-through and no kernel is built.
func NewResampler(sourceRate, targetRate int) *Resampler {
	r := &Resampler{
		sourceRate: sourceRate,
		targetRate: targetRate,
		halfTaps:   defaultHalfTaps,
		oversample: defaultOversample,
		cutoff:     defaultCutoff,
	}
	if sourceRate != targetRate {
		r.buildKernel()
		r.history = make([]float64, 2*r.halfTaps)
	}
	return r
}

// ChunkSize returns the recommended input chunk length in source samples
// (100ms worth), matching the original resampler's chunk_size convention.
func (r *Resampler) ChunkSize() int {
	return r.sourceRate / 10
}

func (r *Resampler) buildKernel() {
	ratio := float64(r.targetRate) / float64(r.sourceRate)
	fc := r.cutoff
	if ratio < 1 {
		fc *= ratio // anti-aliasing when downsampling
	}
	taps := 2*r.halfTaps + 1
	r.kernel = make([][]float64, r.oversample)
	for phase := 0; phase < r.oversample; phase++ {
		frac := float64(phase) / float64(r.oversample)
		row := make([]float64, taps)
		for i := 0; i < taps; i++ {
			x := float64(i-r.halfTaps) - frac
			row[i] = sincLowpass(x, fc) * blackmanHarris(i, taps)
		}
		r.kernel[phase] = row
	}
}

func sincLowpass(x, fc float64) float64 {
	if x == 0 {
		return 2 * fc
	}
	arg := math.Pi * x
	return math.Sin(2*math.Pi*fc*x) / arg
}

func blackmanHarris(i, n int) float64 {
	const (
		a0 = 0.35875
		a1 = 0.48829
		a2 = 0.14128
		a3 = 0.01168
	)
	x := 2 * math.Pi * float64(i) / float64(n-1)
	return a0 - a1*math.Cos(x) + a2*math.Cos(2*x) - a3*math.Cos(3*x)
}

// ExpectedOutputLen returns ceil(inputFrames * target/source), the estimate
// spec.md §4.3 specifies (rounded to the next whole frame).
func (r *Resampler) ExpectedOutputLen(inputFrames int) int {
	if r.sourceRate == r.targetRate {
		return inputFrames
	}
	return int(math.Ceil(float64(inputFrames) * float64(r.targetRate) / float64(r.sourceRate)))
}

// Process resamples in (mono, source rate) to the target rate. Safe to call
// repeatedly on a continuous stream; trailing history from the previous call
// feeds the interpolation window of the next.
func (r *Resampler) Process(in []float32) []float32 {
	if r.sourceRate == r.targetRate {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}
	if len(in) == 0 {
		return nil
	}

	// Extend history with the new input so interpolation has lookback/lookahead.
	ext := make([]float64, len(r.history)+len(in))
	copy(ext, r.history)
	for i, v := range in {
		ext[len(r.history)+i] = float64(v)
	}

	ratio := float64(r.sourceRate) / float64(r.targetRate)
	outLen := r.ExpectedOutputLen(len(in))
	out := make([]float32, outLen)

	// ext[0] is the oldest history sample, 2*halfTaps source samples before
	// the start of `in`. Output o is interpolated at ext position
	// halfTaps + o*ratio, i.e. at -halfTaps + o*ratio relative to the start
	// of `in`: a fixed delay of halfTaps samples that keeps halfTaps samples
	// of lookahead inside ext.
	base := float64(r.halfTaps)
	for o := 0; o < outLen; o++ {
		srcPos := base + float64(o)*ratio
		idx := int(math.Floor(srcPos))
		frac := srcPos - float64(idx)
		phase := int(frac * float64(r.oversample))
		if phase >= r.oversample {
			phase = r.oversample - 1
		}
		kernel := r.kernel[phase]
		var acc float64
		start := idx - r.halfTaps
		for t, k := range kernel {
			si := start + t
			if si >= 0 && si < len(ext) {
				acc += ext[si] * k
			}
		}
		out[o] = float32(acc)
	}

	// Carry the trailing 2*halfTaps source samples forward as history.
	if len(ext) >= len(r.history) {
		copy(r.history, ext[len(ext)-len(r.history):])
	}
	return out
}

// Reset clears interpolation history (used when a session ends/restarts).
func (r *Resampler) Reset() {
	for i := range r.history {
		r.history[i] = 0
	}
}
