package resmon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Lissy93/framework-benchmarks/resmon/internal/config"
	"github.com/Lissy93/framework-benchmarks/resmon/internal/progress"
	"github.com/Lissy93/framework-benchmarks/resmon/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// brokenConfig points at a browser binary that does not exist, so every
// launch fails fast without external dependencies.
func brokenConfig(runs int) *config.Config {
	cfg := &config.Config{
		Targets: []config.TargetConfig{{ID: "react", URL: "http://localhost:3000/react/"}},
		Runs:    runs,
		Browser: config.BrowserConfig{Binary: "no-such-browser-zz9"},
	}
	cfg.ApplyDefaults()
	return cfg
}

type captureReporter struct {
	mu     sync.Mutex
	stages []progress.Stage
}

func (c *captureReporter) Stage(_ context.Context, s progress.Stage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stages = append(c.stages, s)
}

func (c *captureReporter) Close() error { return nil }

func (c *captureReporter) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.stages))
	for i, s := range c.stages {
		out[i] = s.Name
	}
	return out
}

type captureRecorder struct {
	results []*metrics.AveragedProfileResult
}

func (c *captureRecorder) Record(r *metrics.AveragedProfileResult) {
	c.results = append(c.results, r)
}

func TestRun_AllLaunchesFail(t *testing.T) {
	cfg := brokenConfig(2)
	rep := &captureReporter{}
	rn := New(cfg, testLogger(), WithReporter(rep))

	avg, err := rn.Run(context.Background(), cfg.Targets[0])
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if avg.Executions.Successful != 0 || avg.Executions.Failed != 2 {
		t.Errorf("executions: %+v", avg.Executions)
	}
	if avg.FirstFailure == nil {
		t.Fatal("all-failed average must carry the first failure")
	}
	if avg.FirstFailure.TargetID != "react" || avg.FirstFailure.Error == "" {
		t.Errorf("first failure: %+v", avg.FirstFailure)
	}

	names := rep.names()
	sawLaunch := false
	for _, n := range names {
		if n == "launch" {
			sawLaunch = true
		}
	}
	if !sawLaunch {
		t.Errorf("expected launch stage, got %v", names)
	}
	if names[len(names)-1] != "done" {
		t.Errorf("last stage: got %q", names[len(names)-1])
	}
}

func TestRunAll_RecordsResults(t *testing.T) {
	cfg := brokenConfig(1)
	cfg.Targets = append(cfg.Targets, config.TargetConfig{ID: "vue", URL: "http://localhost:3000/vue/"})
	rec := &captureRecorder{}
	rn := New(cfg, testLogger(), WithRecorder(rec))

	results, err := rn.RunAll(context.Background())
	if err != nil {
		t.Fatalf("run all: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results: got %d, want 2", len(results))
	}
	if len(rec.results) != 2 {
		t.Fatalf("recorded: got %d, want 2", len(rec.results))
	}
	if rec.results[0].TargetID != "react" || rec.results[1].TargetID != "vue" {
		t.Errorf("recorded order: %q, %q", rec.results[0].TargetID, rec.results[1].TargetID)
	}
}

// failingNavigator answers every navigate the way a browser-level socket
// does: with a method-not-found protocol error.
type failingNavigator struct {
	calls int
}

func (f *failingNavigator) Navigate(context.Context, string) (bool, error) {
	f.calls++
	return false, errors.New(`devtools: Page.enable: {-32601 "'Page.enable' wasn't found"}`)
}

func TestNavigate_ProtocolErrorDegradesNotFails(t *testing.T) {
	cfg := brokenConfig(1)
	cfg.Browser.PageDelay = time.Millisecond
	rn := New(cfg, testLogger())

	nav := &failingNavigator{}
	if err := rn.navigate(context.Background(), nav, cfg.Targets[0], 1); err != nil {
		t.Fatalf("protocol error must not abort the pass: %v", err)
	}
	if nav.calls != 1 {
		t.Errorf("navigate calls: got %d, want 1", nav.calls)
	}
}

func TestNavigate_CancelledContextAborts(t *testing.T) {
	cfg := brokenConfig(1)
	cfg.Browser.PageDelay = time.Millisecond
	rn := New(cfg, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rn.navigate(ctx, &failingNavigator{}, cfg.Targets[0], 1); err == nil {
		t.Fatal("expected context error")
	}
}

func TestRunAll_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rn := New(brokenConfig(1), testLogger())
	if _, err := rn.RunAll(ctx); err == nil {
		t.Fatal("expected context error")
	}
}
