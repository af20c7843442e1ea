// Package scenario drives the fixed synthetic interaction workloads against
// a profiled target, sampling the OS and browser-heap domains each round.
// The scenario set and order are fixed, not data-driven, so results stay
// comparable across targets.
package scenario

import (
	"context"
	"log/slog"
	"time"

	"github.com/Lissy93/framework-benchmarks/resmon/metrics"
)

// Evaluator runs scripts and reads heap usage over the debugging protocol.
// A nil Evaluator means the protocol is unavailable and the scenario runs on
// OS-level sampling alone.
type Evaluator interface {
	Evaluate(ctx context.Context, expr string) error
	HeapUsage(ctx context.Context) metrics.HeapUsage
}

// Sampler takes one OS-level resource snapshot of the target.
type Sampler interface {
	Sample(ctx context.Context) metrics.ResourceSnapshot
}

// Scenario is one fixed synthetic workload. Script returns the expression
// evaluated at the given round; an empty script means pure observation.
type Scenario struct {
	Name   string
	Rounds int
	Pause  time.Duration
	Script func(round int) string
}

// Run executes one scenario: per round it evaluates the synthetic workload
// (when a client is available), takes a snapshot merged with heap data, and
// pauses before the next round. Workload evaluation failures are absorbed
// and the round still gets sampled, so only context cancellation aborts a
// scenario.
func Run(ctx context.Context, sc Scenario, client Evaluator, sampler Sampler, baseline metrics.Baseline, logger *slog.Logger) (metrics.InteractionMetrics, error) {
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()
	samples := make([]metrics.ResourceSnapshot, 0, sc.Rounds)

	for round := 0; round < sc.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return metrics.InteractionMetrics{}, err
		}

		if client != nil {
			if expr := sc.Script(round); expr != "" {
				if err := client.Evaluate(ctx, expr); err != nil {
					logger.Debug("scenario: workload evaluate failed",
						"scenario", sc.Name, "round", round, "error", err)
				}
			}
		}

		snap := sampler.Sample(ctx)
		if client != nil {
			snap = metrics.MergeHeap(snap, client.HeapUsage(ctx))
		}
		samples = append(samples, snap)

		if round < sc.Rounds-1 {
			select {
			case <-ctx.Done():
				return metrics.InteractionMetrics{}, ctx.Err()
			case <-time.After(sc.Pause):
			}
		}
	}

	return metrics.Reduce(sc.Name, start, samples, baseline), nil
}
