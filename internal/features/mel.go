// Package features implements the log-mel feature extractor (C4): framing,
// a Povey window, FFT power spectrum, triangular mel filterbank, log
// compression, and per-segment normalization. The FFT and filterbank
// construction are grounded on the mel-spectrogram processor of the codebase
// this module was adapted from
// (gonum.org/v1/gonum/dsp/fourier usage and HTK-formula triangular filters),
// generalized to the Povey window and per-segment (not streaming) stats
// spec.md §4.4 requires.
package features

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// SampleRate is the fixed rate C3 guarantees samples arrive at.
	SampleRate = 16000
	// WinLength is 25ms at 16kHz.
	WinLength = 400
	// HopLength is 10ms at 16kHz.
	HopLength = 160
	// NFFT is fixed regardless of window length; the first 257 bins are kept.
	NFFT     = 512
	NumBins  = NFFT/2 + 1
	preEmph  = 0.97
	logEps   = 1e-10
	stdFloor = 1e-8
)

// Extractor computes log-mel features for one ASR model variant (80 or 128
// mel bins, model-dependent per spec.md §4.6).
type Extractor struct {
	nMels      int
	melFilters [][]float64
	window     []float64
	fft        *fourier.FFT
}

// New builds an Extractor for nMels mel bins (80 or 128).
func New(nMels int) *Extractor {
	return &Extractor{
		nMels:      nMels,
		melFilters: melFilterbank(NFFT, nMels, SampleRate),
		window:     poveyWindow(WinLength),
		fft:        fourier.NewFFT(NFFT),
	}
}

// poveyWindow computes Kaldi's window: (0.5 - 0.5*cos(2*pi*n/(N-1)))^0.85.
func poveyWindow(n int) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		hann := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		w[i] = math.Pow(hann, 0.85)
	}
	return w
}

// Compute extracts log-mel features for an entire speech segment, then
// normalizes per mel bin across all frames of that segment (population
// std, ddof 0, matching spec.md §4.4 step 6). DC-offset removal is
// permanently disabled (spec.md §4.4: the NeMo/Parakeet family was trained
// without it).
func (e *Extractor) Compute(samples []float32) [][]float64 {
	pre := preemphasize(samples)
	numFrames := 0
	if len(pre) >= WinLength {
		numFrames = (len(pre)-WinLength+HopLength-1)/HopLength + 1
	} else if len(pre) > 0 {
		numFrames = 1
	}

	out := make([][]float64, numFrames)
	for f := 0; f < numFrames; f++ {
		start := f * HopLength
		frame := make([]float64, NFFT)
		for i := 0; i < WinLength; i++ {
			idx := start + i
			if idx < len(pre) {
				frame[i] = pre[idx] * e.window[i]
			}
		}
		coeffs := e.fft.Coefficients(nil, frame)
		power := make([]float64, NumBins)
		for i := 0; i < NumBins; i++ {
			re, im := real(coeffs[i]), imag(coeffs[i])
			power[i] = re*re + im*im
		}
		row := make([]float64, e.nMels)
		for m := 0; m < e.nMels; m++ {
			var sum float64
			filt := e.melFilters[m]
			for k, p := range power {
				sum += p * filt[k]
			}
			row[m] = math.Log(sum + logEps)
		}
		out[f] = row
	}

	normalizePerBin(out, e.nMels)
	return out
}

func preemphasize(in []float32) []float64 {
	if len(in) == 0 {
		return nil
	}
	out := make([]float64, len(in))
	out[0] = float64(in[0])
	for i := 1; i < len(in); i++ {
		out[i] = float64(in[i]) - preEmph*float64(in[i-1])
	}
	return out
}

// normalizePerBin zero-means and unit-variances each mel bin across all
// frames of this segment. When std is below stdFloor only the mean is
// subtracted (spec.md §4.4).
func normalizePerBin(frames [][]float64, nMels int) {
	n := len(frames)
	if n == 0 {
		return
	}
	for m := 0; m < nMels; m++ {
		var mean float64
		for _, f := range frames {
			mean += f[m]
		}
		mean /= float64(n)

		var variance float64
		for _, f := range frames {
			d := f[m] - mean
			variance += d * d
		}
		variance /= float64(n)
		std := math.Sqrt(variance)

		if std < stdFloor {
			for _, f := range frames {
				f[m] -= mean
			}
		} else {
			for _, f := range frames {
				f[m] = (f[m] - mean) / std
			}
		}
	}
}

func melFilterbank(nFFT, nMels, sampleRate int) [][]float64 {
	hzToMel := func(hz float64) float64 { return 2595.0 * math.Log10(1.0+hz/700.0) }
	melToHz := func(mel float64) float64 { return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0) }

	numBins := nFFT/2 + 1
	fMax := float64(sampleRate) / 2.0

	allFreqs := make([]float64, numBins)
	for i := 0; i < numBins; i++ {
		allFreqs[i] = float64(i) * fMax / float64(numBins-1)
	}

	mMin, mMax := hzToMel(0), hzToMel(fMax)
	fPts := make([]float64, nMels+2)
	for i := range fPts {
		fPts[i] = melToHz(mMin + float64(i)*(mMax-mMin)/float64(nMels+1))
	}

	fDiff := make([]float64, nMels+1)
	for i := range fDiff {
		fDiff[i] = fPts[i+1] - fPts[i]
	}

	filters := make([][]float64, nMels)
	for m := 0; m < nMels; m++ {
		filters[m] = make([]float64, numBins)
		for k := 0; k < numBins; k++ {
			freq := allFreqs[k]
			lower := (freq - fPts[m]) / fDiff[m]
			upper := (fPts[m+2] - freq) / fDiff[m+1]
			val := math.Min(lower, upper)
			if val < 0 {
				val = 0
			}
			filters[m][k] = val
		}
	}
	return filters
}
