// Package procsample measures OS-level memory and CPU for a target process
// tree. CPU percent is a two-point measurement: every matched process is
// primed, the sampler sleeps a fixed short interval, and the per-process
// deltas are summed. That sleep dominates per-sample latency and is not
// cancellable mid-flight; cancel a profiling pass between samples instead.
package procsample

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/Lissy93/framework-benchmarks/resmon/metrics"
)

const bytesPerMiB = 1024 * 1024

// Target identifies the process set to sample. RootPID is preferred and
// unambiguous: the sampler walks the subtree below it. When RootPID is zero,
// Match is used as a case-insensitive substring scan over process names and
// command lines, which is ambiguous but the only option for unscoped targets.
type Target struct {
	RootPID int32
	Match   []string
}

// Sampler takes ResourceSnapshots of one target. Zero matching processes is
// a valid state reported as a process_count=0 snapshot, never an error:
// targets come and go while a pass is running.
type Sampler struct {
	target   Target
	interval time.Duration
	logger   *slog.Logger
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithCPUInterval overrides the prime-to-read CPU interval. Default: 200ms.
func WithCPUInterval(d time.Duration) Option {
	return func(s *Sampler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger sets the sampler's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sampler) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Sampler for the target.
func New(target Target, opts ...Option) *Sampler {
	s := &Sampler{
		target:   target,
		interval: 200 * time.Millisecond,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Sample measures the target's current resource usage. Processes that vanish
// or deny access between priming and reading are excluded, not fatal.
func (s *Sampler) Sample(ctx context.Context) metrics.ResourceSnapshot {
	procs := s.resolve(ctx)
	snap := metrics.ResourceSnapshot{Timestamp: time.Now(), ProcessCount: len(procs)}
	if len(procs) == 0 {
		return snap
	}

	// Prime each process's CPU-time counter. The first Percent call after
	// priming returns usage over the elapsed interval, psutil-style.
	for _, p := range procs {
		_, _ = p.PercentWithContext(ctx, 0)
	}

	time.Sleep(s.interval)

	for _, p := range procs {
		cpu, err := p.PercentWithContext(ctx, 0)
		if err != nil {
			snap.ProcessCount--
			continue
		}
		mem, err := p.MemoryInfoWithContext(ctx)
		if err != nil {
			snap.ProcessCount--
			continue
		}
		snap.CPUPercent += cpu
		snap.MemoryMB += float64(mem.RSS) / bytesPerMiB
	}

	return snap
}

// resolve returns the live process set for the target. Per-process failures
// (exited, access denied) are swallowed; they only shrink the set.
func (s *Sampler) resolve(ctx context.Context) []*process.Process {
	if s.target.RootPID > 0 {
		return s.subtree(ctx)
	}
	return s.scan(ctx)
}

// subtree walks the process tree rooted at RootPID, root included.
func (s *Sampler) subtree(ctx context.Context) []*process.Process {
	root, err := process.NewProcessWithContext(ctx, s.target.RootPID)
	if err != nil {
		return nil
	}

	out := []*process.Process{root}
	queue := []*process.Process{root}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		children, err := p.ChildrenWithContext(ctx)
		if err != nil {
			continue
		}
		out = append(out, children...)
		queue = append(queue, children...)
	}
	return out
}

// scan matches the full process table against the target's name patterns.
func (s *Sampler) scan(ctx context.Context) []*process.Process {
	if len(s.target.Match) == 0 {
		return nil
	}

	all, err := process.ProcessesWithContext(ctx)
	if err != nil {
		s.logger.Warn("procsample: process table scan failed", "error", err)
		return nil
	}

	var out []*process.Process
	for _, p := range all {
		name, _ := p.NameWithContext(ctx)
		cmdline, _ := p.CmdlineWithContext(ctx)
		if s.matches(name) || s.matches(cmdline) {
			out = append(out, p)
		}
	}
	return out
}

func (s *Sampler) matches(candidate string) bool {
	if candidate == "" {
		return false
	}
	candidate = strings.ToLower(candidate)
	for _, m := range s.target.Match {
		if strings.Contains(candidate, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
