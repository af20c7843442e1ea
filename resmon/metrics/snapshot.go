// Package metrics defines the result types emitted by resmon and the pure
// reductions over them: per-scenario interaction metrics, per-pass profile
// results, and the statistical average of repeated passes.
//
// The JSON field names in this package are a stable contract consumed by
// downstream reporting. Do not rename them.
package metrics

import "time"

// ResourceSnapshot is a single point-in-time measurement of the target's
// process tree, optionally merged with browser heap data. Immutable once
// taken. ProcessCount == 0 is a valid "target not found" state, not an error.
type ResourceSnapshot struct {
	Timestamp          time.Time `json:"timestamp"`
	MemoryMB           float64   `json:"memory_mb"`
	CPUPercent         float64   `json:"cpu_percent"`
	ProcessCount       int       `json:"process_count"`
	BrowserHeapUsedMB  float64   `json:"browser_heap_used_mb"`
	BrowserHeapTotalMB float64   `json:"browser_heap_total_mb"`

	// HeapSampled marks that heap fields were actually measured over a
	// working DevTools connection, so reductions can tell "no heap data"
	// apart from a genuine zero reading.
	HeapSampled bool `json:"heap_sampled,omitempty"`
}

// Baseline is an averaged idle-state snapshot, created once per profiling
// pass before any interaction and read-only thereafter.
type Baseline = ResourceSnapshot

// HeapUsage is the in-process script-engine memory reported by the
// remote-debugging protocol, distinct from OS-level process memory.
// ConnectionWorking == false means heap introspection failed and the
// numeric fields are meaningless zeros.
type HeapUsage struct {
	UsedMB            float64 `json:"heap_used_mb"`
	TotalMB           float64 `json:"heap_total_mb"`
	ConnectionWorking bool    `json:"connection_working"`
}

// MergeHeap returns a copy of s with heap data folded in. A non-working
// heap reading leaves s untouched.
func MergeHeap(s ResourceSnapshot, h HeapUsage) ResourceSnapshot {
	if !h.ConnectionWorking {
		return s
	}
	s.BrowserHeapUsedMB = h.UsedMB
	s.BrowserHeapTotalMB = h.TotalMB
	s.HeapSampled = true
	return s
}

// AppUsage subtracts the idle baseline from a snapshot to isolate usage
// attributable to the target application. Negative deltas are clamped to
// zero: a reading below baseline means noise, not negative consumption.
func AppUsage(current ResourceSnapshot, baseline Baseline) ResourceSnapshot {
	out := ResourceSnapshot{
		Timestamp:          current.Timestamp,
		MemoryMB:           max(0, current.MemoryMB-baseline.MemoryMB),
		CPUPercent:         max(0, current.CPUPercent-baseline.CPUPercent),
		BrowserHeapUsedMB:  current.BrowserHeapUsedMB,
		BrowserHeapTotalMB: current.BrowserHeapTotalMB,
		HeapSampled:        current.HeapSampled,
	}
	if current.ProcessCount > baseline.ProcessCount {
		out.ProcessCount = current.ProcessCount - baseline.ProcessCount
	}
	return out
}

// AverageSnapshots field-wise averages a set of snapshots. Used by baseline
// calibration. An empty input yields a zero snapshot.
func AverageSnapshots(samples []ResourceSnapshot) ResourceSnapshot {
	if len(samples) == 0 {
		return ResourceSnapshot{Timestamp: time.Now()}
	}
	var mem, cpu, procs float64
	for _, s := range samples {
		mem += s.MemoryMB
		cpu += s.CPUPercent
		procs += float64(s.ProcessCount)
	}
	n := float64(len(samples))
	return ResourceSnapshot{
		Timestamp:    time.Now(),
		MemoryMB:     mem / n,
		CPUPercent:   cpu / n,
		ProcessCount: int(procs / n),
	}
}
