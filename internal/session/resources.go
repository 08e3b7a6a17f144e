package session

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"

	"swictation/internal/accel"
)

// resourceSampleInterval is how often a recording session samples
// accelerator memory and host CPU load for the high-water-mark fields
// spec.md §3's Data Model lists on every Session.
const resourceSampleInterval = 2 * time.Second

// ResourceUsage is the resource-peak summary a session hands to C10 at
// SessionEnd (spec.md §3: "resource peaks (accelerator-memory high-water,
// CPU high-water)").
type ResourceUsage struct {
	GPUPeakMB      float64
	GPUMeanMB      float64
	CPUPeakPercent float64
	CPUMeanPercent float64
}

// resourceSampler runs on its own goroutine for the lifetime of a recording
// session, polling internal/accel and gopsutil's cpu package on a ticker.
// It never touches T_audio or T_worker state directly; Manager reads its
// Result only after stopping it, at stopRecording.
type resourceSampler struct {
	done chan struct{}
	stop context.CancelFunc

	gpuPeak, gpuSum float64
	cpuPeak, cpuSum float64
	samples         int
}

func startResourceSampler(ctx context.Context, detect func() accel.Info) *resourceSampler {
	sctx, cancel := context.WithCancel(ctx)
	r := &resourceSampler{done: make(chan struct{}), stop: cancel}
	go r.run(sctx, detect)
	return r
}

func (r *resourceSampler) run(ctx context.Context, detect func() accel.Info) {
	defer close(r.done)
	ticker := time.NewTicker(resourceSampleInterval)
	defer ticker.Stop()

	r.sample(detect)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sample(detect)
		}
	}
}

func (r *resourceSampler) sample(detect func() accel.Info) {
	info := detect()
	gpuMB := float64(info.TotalMB - info.FreeMB)
	if gpuMB < 0 {
		gpuMB = 0
	}
	if gpuMB > r.gpuPeak {
		r.gpuPeak = gpuMB
	}
	r.gpuSum += gpuMB

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		p := percents[0]
		if p > r.cpuPeak {
			r.cpuPeak = p
		}
		r.cpuSum += p
	}

	r.samples++
}

// Stop halts sampling and blocks until the sampler goroutine has exited, so
// Result can be read without a data race.
func (r *resourceSampler) Stop() ResourceUsage {
	r.stop()
	<-r.done
	return r.Result()
}

// Result returns the resource-peak summary collected so far.
func (r *resourceSampler) Result() ResourceUsage {
	usage := ResourceUsage{GPUPeakMB: r.gpuPeak, CPUPeakPercent: r.cpuPeak}
	if r.samples > 0 {
		usage.GPUMeanMB = r.gpuSum / float64(r.samples)
		usage.CPUMeanPercent = r.cpuSum / float64(r.samples)
	}
	return usage
}
