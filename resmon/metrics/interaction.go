package metrics

import "time"

// Noise floors below which a max−min delta is considered measurement jitter
// and the reduction falls back to an average-based figure.
const (
	memoryNoiseFloorMB = 1.0
	heapNoiseFloorMB   = 0.1
)

// InteractionMetrics is the reduction of one scenario's sample sequence to a
// single record. It owns its samples.
type InteractionMetrics struct {
	Name              string             `json:"name"`
	DurationS         float64            `json:"duration_s"`
	MemoryDeltaMB     float64            `json:"memory_delta_mb"`
	CPUPeakPercent    float64            `json:"cpu_peak_percent"`
	CPUAveragePercent float64            `json:"cpu_average_percent"`
	HeapDeltaMB       float64            `json:"heap_delta_mb"`
	Samples           []ResourceSnapshot `json:"samples"`
}

// Reduce collapses a scenario's samples into one InteractionMetrics.
//
// memory delta is max−min of sampled memory; when that span is under the
// noise floor, the average usage above baseline is reported instead. Heap
// delta follows the same rule but only over samples where heap data was
// actually present, and its small-span fallback is the plain average of the
// heap readings (the baseline has no heap component to subtract).
func Reduce(name string, start time.Time, samples []ResourceSnapshot, baseline Baseline) InteractionMetrics {
	if len(samples) == 0 {
		return InteractionMetrics{Name: name, Samples: []ResourceSnapshot{}}
	}

	m := InteractionMetrics{
		Name:      name,
		DurationS: time.Since(start).Seconds(),
		Samples:   samples,
	}

	minMem, maxMem := samples[0].MemoryMB, samples[0].MemoryMB
	var sumMem float64
	for _, s := range samples {
		minMem = min(minMem, s.MemoryMB)
		maxMem = max(maxMem, s.MemoryMB)
		sumMem += s.MemoryMB
		m.CPUPeakPercent = max(m.CPUPeakPercent, s.CPUPercent)
		m.CPUAveragePercent += s.CPUPercent
	}
	m.CPUAveragePercent /= float64(len(samples))

	m.MemoryDeltaMB = maxMem - minMem
	if m.MemoryDeltaMB < memoryNoiseFloorMB {
		avg := sumMem / float64(len(samples))
		m.MemoryDeltaMB = max(0, avg-baseline.MemoryMB)
	}

	var heap []float64
	for _, s := range samples {
		if s.HeapSampled && s.BrowserHeapUsedMB > 0 {
			heap = append(heap, s.BrowserHeapUsedMB)
		}
	}
	if len(heap) > 0 {
		minHeap, maxHeap, sumHeap := heap[0], heap[0], 0.0
		for _, h := range heap {
			minHeap = min(minHeap, h)
			maxHeap = max(maxHeap, h)
			sumHeap += h
		}
		m.HeapDeltaMB = maxHeap - minHeap
		if m.HeapDeltaMB < heapNoiseFloorMB {
			m.HeapDeltaMB = sumHeap / float64(len(heap))
		}
	}

	return m
}
