// Package progress reports discrete named stage transitions of a profiling
// pass. Reporters are passed explicitly into the pass; there is no global
// progress state, and reporting must never fail the pass.
package progress

import (
	"context"
	"log/slog"
	"time"
)

// Stage is one named transition within a profiling run.
type Stage struct {
	Target    string    `json:"target"`
	Run       int       `json:"run"`
	Name      string    `json:"name"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Reporter receives stage transitions. Implementations absorb their own
// errors and never propagate them into the pass.
type Reporter interface {
	Stage(ctx context.Context, s Stage)
	Close() error
}

// Slog logs stage transitions through a structured logger.
type Slog struct {
	logger *slog.Logger
}

// NewSlog creates a reporter writing to the given logger (nil = default).
func NewSlog(l *slog.Logger) *Slog {
	if l == nil {
		l = slog.Default()
	}
	return &Slog{logger: l}
}

func (r *Slog) Stage(ctx context.Context, s Stage) {
	r.logger.InfoContext(ctx, "progress: "+s.Name,
		"target", s.Target, "run", s.Run, "detail", s.Detail)
}

func (r *Slog) Close() error { return nil }

// Multi fans a stage out to all reporters. One reporter's problem never
// blocks the others.
type Multi struct {
	reporters []Reporter
}

// NewMulti creates a fan-out reporter.
func NewMulti(reporters ...Reporter) *Multi {
	return &Multi{reporters: reporters}
}

func (m *Multi) Stage(ctx context.Context, s Stage) {
	for _, r := range m.reporters {
		r.Stage(ctx, s)
	}
}

func (m *Multi) Close() error {
	var firstErr error
	for _, r := range m.reporters {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Nop discards all stages. Useful default when the caller passes none.
type Nop struct{}

func (Nop) Stage(context.Context, Stage) {}
func (Nop) Close() error                 { return nil }
