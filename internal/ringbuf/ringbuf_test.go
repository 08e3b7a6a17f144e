package ringbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPushSliceReturnsShortfallOnOverrun(t *testing.T) {
	r := New(4)
	n := r.PushSlice([]float32{1, 2, 3, 4, 5, 6})
	assert.Equal(t, 4, n)
	assert.True(t, r.IsFull())
}

func TestPopOrdersFIFO(t *testing.T) {
	r := New(8)
	r.PushSlice([]float32{1, 2, 3})
	out := make([]float32, 3)
	n := r.PopSlice(out)
	require.Equal(t, 3, n)
	assert.Equal(t, []float32{1, 2, 3}, out)
}

func TestClearEmpties(t *testing.T) {
	r := New(8)
	r.PushSlice([]float32{1, 2, 3})
	r.Clear()
	assert.True(t, r.IsEmpty())
}

// TestOccupiedPlusVacantEqualsCapacity is the property spec.md §8 requires:
// "occupied + vacant == capacity at all observation points".
func TestOccupiedPlusVacantEqualsCapacity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(1, 256).Draw(rt, "capacity")
		r := New(capacity)

		ops := rapid.SliceOfN(rapid.IntRange(-64, 64), 0, 64).Draw(rt, "ops")
		for _, op := range ops {
			if op >= 0 {
				in := make([]float32, op)
				for i := range in {
					in[i] = float32(i)
				}
				r.PushSlice(in)
			} else {
				out := make([]float32, -op)
				r.PopSlice(out)
			}
			assert.Equal(rt, r.Capacity(), r.Occupied()+r.Vacant())
		}
	})
}

// TestPushSliceReturnValueEqualsMinLenVacant checks spec.md §8's exact
// "push_slice return value equals min(len(input), vacant_before)" invariant.
func TestPushSliceReturnValueEqualsMinLenVacant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(1, 128).Draw(rt, "capacity")
		r := New(capacity)

		preload := rapid.IntRange(0, capacity).Draw(rt, "preload")
		r.PushSlice(make([]float32, preload))

		inputLen := rapid.IntRange(0, 256).Draw(rt, "inputLen")
		vacantBefore := r.Vacant()
		n := r.PushSlice(make([]float32, inputLen))

		want := inputLen
		if vacantBefore < want {
			want = vacantBefore
		}
		assert.Equal(rt, want, n)
	})
}

// TestFIFOOrderPreserved checks values come back in the order pushed across
// an arbitrary interleaving of pushes/pops (the producer/consumer schedule
// spec.md §8 refers to).
func TestFIFOOrderPreserved(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := New(64)
		var expected []float32
		var next float32

		rounds := rapid.IntRange(1, 40).Draw(rt, "rounds")
		for i := 0; i < rounds; i++ {
			if rapid.Bool().Draw(rt, "doPush") {
				n := rapid.IntRange(0, 16).Draw(rt, "pushLen")
				in := make([]float32, n)
				for j := range in {
					in[j] = next
					next++
				}
				written := r.PushSlice(in)
				expected = append(expected, in[:written]...)
			} else {
				n := rapid.IntRange(0, 16).Draw(rt, "popLen")
				out := make([]float32, n)
				read := r.PopSlice(out)
				require.True(rt, read <= len(expected))
				assert.Equal(rt, expected[:read], out[:read])
				expected = expected[read:]
			}
		}
	})
}
