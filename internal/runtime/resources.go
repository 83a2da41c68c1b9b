package runtime

import (
	"runtime"
	"runtime/metrics"
	"sync"
	"time"
)

const (
	cpuSecondsMetric = "/sched/cpu:seconds"
	heapBytesMetric  = "/memory/classes/heap/objects:bytes"
	gcCyclesMetric   = "/gc/cycles/total:gc-cycles"
)

// ResourceUsage is a coarse sample of the process.
type ResourceUsage struct {
	CPUPercent  float64 `json:"cpu_percent"`
	MemoryBytes uint64  `json:"memory_bytes"`
	HeapBytes   uint64  `json:"heap_bytes"`
	GCCycles    uint64  `json:"gc_cycles"`
	Goroutines  int     `json:"goroutines"`
}

// resourceTracker samples CPU and memory usage for the status endpoint. CPU
// usage is averaged over the time since the previous snapshot.
type resourceTracker struct {
	mu             sync.Mutex
	samples        []metrics.Sample
	lastCPUSeconds float64
	lastSample     time.Time
	numCPU         float64
}

func (s *Service) getResourceTracker() *resourceTracker {
	if s.resourceTracker == nil {
		s.resourceTracker = newResourceTracker()
	}
	return s.resourceTracker
}

func newResourceTracker() *resourceTracker {
	return &resourceTracker{
		samples: newSamples(),
		numCPU:  float64(runtime.NumCPU()),
	}
}

func newSamples() []metrics.Sample {
	return []metrics.Sample{
		{Name: cpuSecondsMetric},
		{Name: heapBytesMetric},
		{Name: gcCyclesMetric},
	}
}

func (r *resourceTracker) Snapshot() ResourceUsage {
	if r == nil {
		return ResourceUsage{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.samples) == 0 {
		r.samples = newSamples()
	}
	if r.numCPU == 0 {
		r.numCPU = float64(runtime.NumCPU())
	}
	metrics.Read(r.samples)

	var usage ResourceUsage
	now := time.Now()
	for _, sample := range r.samples {
		switch sample.Name {
		case cpuSecondsMetric:
			if sample.Value.Kind() != metrics.KindFloat64 {
				continue
			}
			cpuSeconds := sample.Value.Float64()
			if !r.lastSample.IsZero() {
				if wall := now.Sub(r.lastSample).Seconds(); wall > 0 {
					usage.CPUPercent = (cpuSeconds - r.lastCPUSeconds) / wall / r.numCPU * 100
				}
			}
			r.lastCPUSeconds = cpuSeconds
		case heapBytesMetric:
			if sample.Value.Kind() == metrics.KindUint64 {
				usage.HeapBytes = sample.Value.Uint64()
			}
		case gcCyclesMetric:
			if sample.Value.Kind() == metrics.KindUint64 {
				usage.GCCycles = sample.Value.Uint64()
			}
		}
	}
	r.lastSample = now

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	usage.MemoryBytes = mem.Alloc
	usage.Goroutines = runtime.NumGoroutine()
	return usage
}
