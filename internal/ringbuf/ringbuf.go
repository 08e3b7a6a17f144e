// Package ringbuf implements the wait-free single-producer/single-consumer
// sample staging buffer between the audio device callback and the pipeline
// worker (C1).
package ringbuf

import "sync/atomic"

// Ring is a fixed-capacity SPSC circular buffer of float32 samples. Capacity
// is rounded up to the next power of two so index wrapping is a mask, not a
// modulo. PushSlice is only ever called from the producer goroutine;
// PopSlice/Occupied/Vacant/IsEmpty/IsFull/Clear may be called from the
// consumer goroutine.
// Neither side takes a lock.
type Ring struct {
	buf  []float32
	mask uint64

	head atomic.Uint64 // next write index (producer-owned)
	tail atomic.Uint64 // next read index (consumer-owned)
}

// New allocates a ring sized to hold at least capacity samples.
func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	sz := nextPow2(capacity)
	return &Ring{
		buf:  make([]float32, sz),
		mask: uint64(sz - 1),
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Capacity returns the total number of samples the ring can hold.
func (r *Ring) Capacity() int {
	return len(r.buf)
}

// Occupied returns the number of samples currently buffered.
func (r *Ring) Occupied() int {
	return int(r.head.Load() - r.tail.Load())
}

// Vacant returns the number of samples that can be pushed before the ring is full.
func (r *Ring) Vacant() int {
	return r.Capacity() - r.Occupied()
}

// IsEmpty reports whether the ring currently holds no samples.
func (r *Ring) IsEmpty() bool {
	return r.Occupied() == 0
}

// IsFull reports whether the ring has no vacant space.
func (r *Ring) IsFull() bool {
	return r.Occupied() == r.Capacity()
}

// Clear discards all buffered samples. Not safe to call concurrently with
// PushSlice from the producer; intended for use when the pipeline is idle.
func (r *Ring) Clear() {
	r.tail.Store(r.head.Load())
}

// PushSlice writes as many samples from in as fit without blocking and
// returns the count actually written. A shortfall (len(in) - written) is an
// overrun: the newest samples beyond capacity are dropped, never the oldest.
func (r *Ring) PushSlice(in []float32) int {
	vacant := r.Vacant()
	n := len(in)
	if n > vacant {
		n = vacant
	}
	if n == 0 {
		return 0
	}
	head := r.head.Load()
	for i := 0; i < n; i++ {
		r.buf[(head+uint64(i))&r.mask] = in[i]
	}
	r.head.Store(head + uint64(n))
	return n
}

// PopSlice reads up to len(out) samples into out and returns the count read.
func (r *Ring) PopSlice(out []float32) int {
	occupied := r.Occupied()
	n := len(out)
	if n > occupied {
		n = occupied
	}
	if n == 0 {
		return 0
	}
	tail := r.tail.Load()
	for i := 0; i < n; i++ {
		out[i] = r.buf[(tail+uint64(i))&r.mask]
	}
	r.tail.Store(tail + uint64(n))
	return n
}
