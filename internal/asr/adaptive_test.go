package asr

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"swictation/internal/accel"
)

func TestSelectVariantHonorsPin(t *testing.T) {
	v := SelectVariant("1.1b-gpu", accel.Info{Provider: accel.ProviderCPU})
	assert.Equal(t, Variant11BAccel, v)
}

func TestSelectVariantByMemoryThresholds(t *testing.T) {
	cases := []struct {
		freeMB int
		want   Variant
	}{
		{7 * 1024, Variant11BAccel},
		{4 * 1024, Variant06BAccel},
		{1 * 1024, Variant06BCPU},
	}
	for _, c := range cases {
		v := SelectVariant("auto", accel.Info{Provider: accel.ProviderCUDA, FreeMB: c.freeMB})
		assert.Equal(t, c.want, v)
	}
}

func TestSelectVariantCPUOnlyFallsBackTo06BCPU(t *testing.T) {
	v := SelectVariant("auto", accel.Info{Provider: accel.ProviderCPU})
	assert.Equal(t, Variant06BCPU, v)
}

func TestNMelsForVariant(t *testing.T) {
	assert.Equal(t, 80, NMelsForVariant(Variant11BAccel))
	assert.Equal(t, 128, NMelsForVariant(Variant06BAccel))
	assert.Equal(t, 128, NMelsForVariant(Variant06BCPU))
}
