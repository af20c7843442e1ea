// Package resmon profiles the resource footprint of web apps. For each
// target it launches a disposable headless browser, calibrates an idle
// baseline, drives a fixed set of synthetic interaction scenarios while
// sampling the process tree and the browser heap, and averages the metrics
// over several independent runs.
//
// resmon measures, it does not interpret. Results are emitted as stable
// JSON documents for downstream comparison tooling.
package resmon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lissy93/framework-benchmarks/resmon/internal/config"
	"github.com/Lissy93/framework-benchmarks/resmon/internal/devtools"
	"github.com/Lissy93/framework-benchmarks/resmon/internal/procsample"
	"github.com/Lissy93/framework-benchmarks/resmon/internal/progress"
	"github.com/Lissy93/framework-benchmarks/resmon/internal/sandbox"
	"github.com/Lissy93/framework-benchmarks/resmon/internal/scenario"
	"github.com/Lissy93/framework-benchmarks/resmon/metrics"
)

// Recorder receives each target's averaged result as it completes. The
// diagnostics API implements it; tests use in-memory recorders.
type Recorder interface {
	Record(res *metrics.AveragedProfileResult)
}

// Runner is the top-level orchestrator. It profiles targets sequentially so
// runs never contend for CPU or memory with each other.
type Runner struct {
	cfg      *config.Config
	logger   *slog.Logger
	reporter progress.Reporter
	recorder Recorder
}

// Option configures a Runner.
type Option func(*Runner)

// WithReporter attaches a stage reporter.
func WithReporter(r progress.Reporter) Option {
	return func(rn *Runner) { rn.reporter = r }
}

// WithRecorder attaches a result recorder.
func WithRecorder(rec Recorder) Option {
	return func(rn *Runner) { rn.recorder = rec }
}

// New creates a Runner from configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	rn := &Runner{
		cfg:      cfg,
		logger:   logger,
		reporter: progress.Nop{},
	}
	for _, o := range opts {
		o(rn)
	}
	return rn
}

// RunAll profiles every configured target in order. A target that fails
// entirely still yields a result carrying its failure; only context
// cancellation stops the session.
func (rn *Runner) RunAll(ctx context.Context) ([]*metrics.AveragedProfileResult, error) {
	out := make([]*metrics.AveragedProfileResult, 0, len(rn.cfg.Targets))
	for _, target := range rn.cfg.Targets {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := rn.Run(ctx, target)
		if err != nil {
			return out, err
		}
		out = append(out, res)
		if rn.recorder != nil {
			rn.recorder.Record(res)
		}
	}
	return out, nil
}

// Run profiles one target over the configured number of runs and averages
// the results. Failed runs are tallied, not averaged.
func (rn *Runner) Run(ctx context.Context, target config.TargetConfig) (*metrics.AveragedProfileResult, error) {
	rn.logger.Info("resmon: profiling target", "target", target.ID, "url", target.URL, "runs", rn.cfg.Runs)

	runs := make([]*metrics.ProfileResult, 0, rn.cfg.Runs)
	for i := 1; i <= rn.cfg.Runs; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rn.stage(ctx, target.ID, i, "run", fmt.Sprintf("%d/%d", i, rn.cfg.Runs))

		res := rn.profileOnce(ctx, target, i)
		if res.Failed() {
			rn.logger.Warn("resmon: run failed", "target", target.ID, "run", i, "error", res.Error)
		}
		runs = append(runs, res)
	}

	avg := metrics.Average(runs)
	rn.stage(ctx, target.ID, 0, "done",
		fmt.Sprintf("%d ok, %d failed", avg.Executions.Successful, avg.Executions.Failed))
	return avg, nil
}

// profileOnce executes a single profiling pass. Browser launch failure is
// fatal for the pass; a broken debugging protocol only degrades it to
// OS-level sampling.
func (rn *Runner) profileOnce(ctx context.Context, target config.TargetConfig, run int) *metrics.ProfileResult {
	rn.stage(ctx, target.ID, run, "launch", "")
	inst, err := sandbox.Launch(ctx, sandbox.Config{
		Binary:    rn.cfg.Browser.Binary,
		DebugPort: rn.cfg.Browser.DebugPort,
		Logger:    rn.logger,
	})
	if err != nil {
		return metrics.FailedResult(target.ID, err)
	}
	defer inst.Stop()

	sampler := procsample.New(
		procsample.Target{RootPID: int32(inst.PID), Match: rn.cfg.Sampler.Match},
		procsample.WithCPUInterval(rn.cfg.Sampler.CPUInterval),
		procsample.WithLogger(rn.logger),
	)

	// Let the fresh browser settle before calibrating, so startup churn does
	// not leak into the baseline.
	if err := pause(ctx, rn.cfg.Browser.SettleDelay); err != nil {
		return metrics.FailedResult(target.ID, err)
	}

	rn.stage(ctx, target.ID, run, "baseline", "")
	baseline := procsample.Calibrate(ctx, sampler)
	if err := ctx.Err(); err != nil {
		return metrics.FailedResult(target.ID, err)
	}

	rn.stage(ctx, target.ID, run, "connect", "")
	client := devtools.New("127.0.0.1", inst.DebugPort,
		devtools.WithLogger(rn.logger),
		devtools.WithNavigationWait(rn.cfg.Browser.NavigationWait),
	)
	if err := client.Connect(ctx); err != nil {
		rn.logger.Warn("resmon: protocol unavailable, OS-level sampling only",
			"target", target.ID, "run", run, "error", err)
		client = nil
	} else {
		defer client.Close()
	}

	if client != nil {
		if err := rn.navigate(ctx, client, target, run); err != nil {
			return metrics.FailedResult(target.ID, err)
		}
	}

	var eval scenario.Evaluator
	if client != nil {
		eval = &protocolEvaluator{client: client}
	}

	interactions := make([]metrics.InteractionMetrics, 0, 4)
	for _, sc := range scenario.Fixed() {
		rn.stage(ctx, target.ID, run, "scenario", sc.Name)
		m, err := scenario.Run(ctx, sc, eval, sampler, baseline, rn.logger)
		if err != nil {
			return metrics.FailedResult(target.ID, err)
		}
		interactions = append(interactions, m)
	}

	rn.stage(ctx, target.ID, run, "final", "")
	final := sampler.Sample(ctx)
	if client != nil {
		final = metrics.MergeHeap(final, client.HeapUsage(ctx))
	}
	if err := ctx.Err(); err != nil {
		return metrics.FailedResult(target.ID, err)
	}

	return metrics.Finalize(target.ID, baseline, final, interactions)
}

// navigator is the slice of the protocol client the navigation step needs.
type navigator interface {
	Navigate(ctx context.Context, url string) (bool, error)
}

// navigate drives the target URL load and waits for the page to settle.
// Protocol failures degrade rather than abort: the pass continues with
// whatever sampling still works, so only context cancellation is returned.
func (rn *Runner) navigate(ctx context.Context, nav navigator, target config.TargetConfig, run int) error {
	rn.stage(ctx, target.ID, run, "navigate", target.URL)
	loaded, err := nav.Navigate(ctx, target.URL)
	switch {
	case err != nil && ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		rn.logger.Warn("resmon: navigation failed, continuing",
			"target", target.ID, "url", target.URL, "error", err)
	case !loaded:
		rn.logger.Warn("resmon: load event not observed, continuing",
			"target", target.ID, "url", target.URL)
	}
	return pause(ctx, rn.cfg.Browser.PageDelay)
}

func (rn *Runner) stage(ctx context.Context, target string, run int, name, detail string) {
	rn.reporter.Stage(ctx, progress.Stage{
		Target:    target,
		Run:       run,
		Name:      name,
		Detail:    detail,
		Timestamp: time.Now(),
	})
}

// protocolEvaluator adapts the devtools client to the scenario workload
// interface, discarding evaluation results.
type protocolEvaluator struct {
	client *devtools.Client
}

func (p *protocolEvaluator) Evaluate(ctx context.Context, expr string) error {
	_, err := p.client.Evaluate(ctx, expr)
	return err
}

func (p *protocolEvaluator) HeapUsage(ctx context.Context) metrics.HeapUsage {
	return p.client.HeapUsage(ctx)
}

func pause(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
