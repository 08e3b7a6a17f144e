package asr

import "swictation/internal/accel"

// SelectionThresholds are the VRAM cutoffs from spec.md §4.6.
const (
	thresholdGB11B   = 6.0
	thresholdGB06BGPU = 3.5
)

// SelectVariant implements spec.md §4.6's selection policy: honor a user
// pin, else query available accelerator memory and pick 1.1B when >= 6GB,
// 0.6B-accelerated when >= 3.5GB, 0.6B-CPU otherwise.
func SelectVariant(pin string, info accel.Info) Variant {
	switch pin {
	case string(Variant11BAccel):
		return Variant11BAccel
	case string(Variant06BAccel):
		return Variant06BAccel
	case string(Variant06BCPU):
		return Variant06BCPU
	}

	if info.Provider == accel.ProviderCPU {
		return Variant06BCPU
	}

	freeGB := float64(info.FreeMB) / 1024.0
	switch {
	case freeGB >= thresholdGB11B:
		return Variant11BAccel
	case freeGB >= thresholdGB06BGPU:
		return Variant06BAccel
	default:
		return Variant06BCPU
	}
}

// NMelsForVariant returns the mel-bin count spec.md §4.6's artifact table
// requires for a variant (128 for 0.6B, 80 for 1.1B).
func NMelsForVariant(v Variant) int {
	if v == Variant11BAccel {
		return 80
	}
	return 128
}
