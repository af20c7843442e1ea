package metrics

// ExecutionTally counts how many of the repeated runs produced data.
type ExecutionTally struct {
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// SnapshotStats is a ResourceSnapshot with every scalar replaced by its
// per-run statistics.
type SnapshotStats struct {
	MemoryMB           Stat `json:"memory_mb"`
	CPUPercent         Stat `json:"cpu_percent"`
	ProcessCount       Stat `json:"process_count"`
	BrowserHeapUsedMB  Stat `json:"browser_heap_used_mb"`
	BrowserHeapTotalMB Stat `json:"browser_heap_total_mb"`
}

// InteractionStats is an InteractionMetrics with per-run statistics. The
// scenario name is copied from any member run.
type InteractionStats struct {
	Name              string `json:"name"`
	DurationS         Stat   `json:"duration_s"`
	MemoryDeltaMB     Stat   `json:"memory_delta_mb"`
	CPUPeakPercent    Stat   `json:"cpu_peak_percent"`
	CPUAveragePercent Stat   `json:"cpu_average_percent"`
	HeapDeltaMB       Stat   `json:"heap_delta_mb"`
}

// SummaryStats is a Summary with per-run statistics.
type SummaryStats struct {
	TotalMemoryDeltaMB    Stat `json:"total_memory_delta_mb"`
	PeakCPUPercent        Stat `json:"peak_cpu_percent"`
	AverageCPUPercent     Stat `json:"average_cpu_percent"`
	TotalHeapDeltaMB      Stat `json:"total_heap_delta_mb"`
	FinalAppMemoryMB      Stat `json:"final_app_memory_mb"`
	FinalAppCPUPercent    Stat `json:"final_app_cpu_percent"`
	MemoryEfficiencyScore Stat `json:"memory_efficiency_score"`
	CPUEfficiencyScore    Stat `json:"cpu_efficiency_score"`
}

// AveragedProfileResult is the statistical reduction of N independent
// profiling runs against one target. Derived purely from the runs; it owns
// nothing. When every run failed, FirstFailure carries the first failed run
// verbatim and no statistics are synthesized.
type AveragedProfileResult struct {
	TargetID      string             `json:"target_id"`
	Executions    ExecutionTally     `json:"executions"`
	Baseline      SnapshotStats      `json:"baseline"`
	FinalSnapshot SnapshotStats      `json:"final_snapshot"`
	Interactions  []InteractionStats `json:"interactions"`
	Summary       SummaryStats       `json:"summary"`
	FirstFailure  *ProfileResult     `json:"first_failure,omitempty"`
}

// Average reduces repeated runs of one target into per-field statistics.
// Failed runs increment the failure tally but contribute no numeric values.
func Average(runs []*ProfileResult) *AveragedProfileResult {
	out := &AveragedProfileResult{Interactions: []InteractionStats{}}

	var ok []*ProfileResult
	var firstFailed *ProfileResult
	for _, r := range runs {
		if r == nil {
			continue
		}
		out.TargetID = r.TargetID
		if r.Failed() {
			out.Executions.Failed++
			if firstFailed == nil {
				firstFailed = r
			}
			continue
		}
		ok = append(ok, r)
	}
	out.Executions.Successful = len(ok)

	if len(ok) == 0 {
		out.FirstFailure = firstFailed
		return out
	}

	out.Baseline = snapshotStats(ok, func(r *ProfileResult) ResourceSnapshot { return r.Baseline })
	out.FinalSnapshot = snapshotStats(ok, func(r *ProfileResult) ResourceSnapshot { return r.FinalSnapshot })
	out.Summary = summaryStats(ok)
	out.Interactions = interactionStats(ok)
	return out
}

func collect(runs []*ProfileResult, f func(r *ProfileResult) float64) Stat {
	vals := make([]float64, 0, len(runs))
	for _, r := range runs {
		vals = append(vals, f(r))
	}
	return NewStat(vals)
}

func snapshotStats(runs []*ProfileResult, pick func(r *ProfileResult) ResourceSnapshot) SnapshotStats {
	return SnapshotStats{
		MemoryMB:           collect(runs, func(r *ProfileResult) float64 { return pick(r).MemoryMB }),
		CPUPercent:         collect(runs, func(r *ProfileResult) float64 { return pick(r).CPUPercent }),
		ProcessCount:       collect(runs, func(r *ProfileResult) float64 { return float64(pick(r).ProcessCount) }),
		BrowserHeapUsedMB:  collect(runs, func(r *ProfileResult) float64 { return pick(r).BrowserHeapUsedMB }),
		BrowserHeapTotalMB: collect(runs, func(r *ProfileResult) float64 { return pick(r).BrowserHeapTotalMB }),
	}
}

func summaryStats(runs []*ProfileResult) SummaryStats {
	return SummaryStats{
		TotalMemoryDeltaMB:    collect(runs, func(r *ProfileResult) float64 { return r.Summary.TotalMemoryDeltaMB }),
		PeakCPUPercent:        collect(runs, func(r *ProfileResult) float64 { return r.Summary.PeakCPUPercent }),
		AverageCPUPercent:     collect(runs, func(r *ProfileResult) float64 { return r.Summary.AverageCPUPercent }),
		TotalHeapDeltaMB:      collect(runs, func(r *ProfileResult) float64 { return r.Summary.TotalHeapDeltaMB }),
		FinalAppMemoryMB:      collect(runs, func(r *ProfileResult) float64 { return r.Summary.FinalAppMemoryMB }),
		FinalAppCPUPercent:    collect(runs, func(r *ProfileResult) float64 { return r.Summary.FinalAppCPUPercent }),
		MemoryEfficiencyScore: collect(runs, func(r *ProfileResult) float64 { return r.Summary.MemoryEfficiencyScore }),
		CPUEfficiencyScore:    collect(runs, func(r *ProfileResult) float64 { return r.Summary.CPUEfficiencyScore }),
	}
}

// interactionStats groups interactions by scenario name, preserving the
// order of first appearance. A scenario omitted by some runs contributes
// statistics only over the runs where it is present.
func interactionStats(runs []*ProfileResult) []InteractionStats {
	var order []string
	grouped := map[string][]InteractionMetrics{}
	for _, r := range runs {
		for _, it := range r.Interactions {
			if _, seen := grouped[it.Name]; !seen {
				order = append(order, it.Name)
			}
			grouped[it.Name] = append(grouped[it.Name], it)
		}
	}

	out := make([]InteractionStats, 0, len(order))
	for _, name := range order {
		members := grouped[name]
		pick := func(f func(InteractionMetrics) float64) Stat {
			vals := make([]float64, 0, len(members))
			for _, m := range members {
				vals = append(vals, f(m))
			}
			return NewStat(vals)
		}
		out = append(out, InteractionStats{
			Name:              name,
			DurationS:         pick(func(m InteractionMetrics) float64 { return m.DurationS }),
			MemoryDeltaMB:     pick(func(m InteractionMetrics) float64 { return m.MemoryDeltaMB }),
			CPUPeakPercent:    pick(func(m InteractionMetrics) float64 { return m.CPUPeakPercent }),
			CPUAveragePercent: pick(func(m InteractionMetrics) float64 { return m.CPUAveragePercent }),
			HeapDeltaMB:       pick(func(m InteractionMetrics) float64 { return m.HeapDeltaMB }),
		})
	}
	return out
}
