package procsample

import (
	"context"
	"time"

	"github.com/Lissy93/framework-benchmarks/resmon/metrics"
)

const (
	baselineSamples = 3
	baselinePause   = 500 * time.Millisecond
)

// Calibrate averages repeated idle snapshots into a stable baseline. It must
// run before any interaction sampling: idle browser memory and CPU (JIT
// warm-up, GC, background tasks) would otherwise swamp the small deltas
// attributable to the target application.
func Calibrate(ctx context.Context, s *Sampler) metrics.Baseline {
	samples := make([]metrics.ResourceSnapshot, 0, baselineSamples)
	for i := 0; i < baselineSamples; i++ {
		samples = append(samples, s.Sample(ctx))
		if i < baselineSamples-1 {
			select {
			case <-ctx.Done():
				return metrics.AverageSnapshots(samples)
			case <-time.After(baselinePause):
			}
		}
	}
	return metrics.AverageSnapshots(samples)
}
