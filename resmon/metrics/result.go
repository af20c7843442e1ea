package metrics

import "encoding/json"

// Summary aggregates all interactions of one profiling pass plus the two
// heuristic efficiency scores.
type Summary struct {
	TotalMemoryDeltaMB    float64 `json:"total_memory_delta_mb"`
	PeakCPUPercent        float64 `json:"peak_cpu_percent"`
	AverageCPUPercent     float64 `json:"average_cpu_percent"`
	TotalHeapDeltaMB      float64 `json:"total_heap_delta_mb"`
	FinalAppMemoryMB      float64 `json:"final_app_memory_mb"`
	FinalAppCPUPercent    float64 `json:"final_app_cpu_percent"`
	MemoryEfficiencyScore float64 `json:"memory_efficiency_score"`
	CPUEfficiencyScore    float64 `json:"cpu_efficiency_score"`
}

// ProfileResult is one target's complete profiling pass. Single-writer during
// creation, immutable once returned. A failed pass carries Error and no data.
type ProfileResult struct {
	TargetID      string               `json:"target_id"`
	Baseline      Baseline             `json:"baseline"`
	FinalSnapshot ResourceSnapshot     `json:"final_snapshot"`
	AppUsage      ResourceSnapshot     `json:"app_usage"`
	Interactions  []InteractionMetrics `json:"interactions"`
	Summary       Summary              `json:"summary"`
	Error         string               `json:"error,omitempty"`
}

// Failed reports whether this pass produced no usable data.
func (r *ProfileResult) Failed() bool { return r.Error != "" }

// FailedResult builds the result for a pass that could not establish its
// test subject (sandbox launch failure). No partial data is carried.
func FailedResult(targetID string, err error) *ProfileResult {
	return &ProfileResult{TargetID: targetID, Error: err.Error(), Interactions: []InteractionMetrics{}}
}

// Finalize combines baseline, final snapshot, and interaction records into
// one ProfileResult.
func Finalize(targetID string, baseline Baseline, final ResourceSnapshot, interactions []InteractionMetrics) *ProfileResult {
	app := AppUsage(final, baseline)

	var sum Summary
	sum.FinalAppMemoryMB = app.MemoryMB
	sum.FinalAppCPUPercent = app.CPUPercent
	for _, it := range interactions {
		sum.TotalMemoryDeltaMB += it.MemoryDeltaMB
		sum.PeakCPUPercent = max(sum.PeakCPUPercent, it.CPUPeakPercent)
		sum.AverageCPUPercent += it.CPUAveragePercent
		sum.TotalHeapDeltaMB += it.HeapDeltaMB
	}
	if len(interactions) > 0 {
		sum.AverageCPUPercent /= float64(len(interactions))
	}
	sum.MemoryEfficiencyScore = EfficiencyScore(sum.FinalAppMemoryMB, sum.TotalMemoryDeltaMB)
	sum.CPUEfficiencyScore = EfficiencyScore(sum.AverageCPUPercent, sum.PeakCPUPercent)

	if interactions == nil {
		interactions = []InteractionMetrics{}
	}
	return &ProfileResult{
		TargetID:      targetID,
		Baseline:      baseline,
		FinalSnapshot: final,
		AppUsage:      app,
		Interactions:  interactions,
		Summary:       sum,
	}
}

// EfficiencyScore maps a delta/base ratio onto a 0–100 scale, higher is
// better. This is a scoring convention kept for cross-run comparability, not
// a measured physical quantity: score = clamp(100 − ratio×30, 0, 100), with
// base ≤ 0 collapsing to 95 (no deltas either) or 70 (deltas without base).
func EfficiencyScore(base, delta float64) float64 {
	if base <= 0 {
		if delta <= 0 {
			return 95
		}
		return 70
	}
	score := 100 - (delta/base)*30
	return min(100, max(0, score))
}

// MarshalResult serialises a ProfileResult as indented JSON.
func MarshalResult(r *ProfileResult) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// MarshalAveraged serialises an AveragedProfileResult as indented JSON.
func MarshalAveraged(a *AveragedProfileResult) ([]byte, error) {
	return json.MarshalIndent(a, "", "  ")
}
