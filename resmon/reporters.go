package resmon

import (
	"log/slog"

	"github.com/Lissy93/framework-benchmarks/resmon/internal/progress"
)

// Reporter receives stage transitions during a profiling pass.
type Reporter = progress.Reporter

// Stage is one named transition within a profiling run.
type Stage = progress.Stage

// NewSlogReporter creates a reporter that logs stage transitions.
func NewSlogReporter(logger *slog.Logger) Reporter {
	return progress.NewSlog(logger)
}

// NewMultiReporter fans stages out to several reporters.
func NewMultiReporter(reporters ...Reporter) Reporter {
	return progress.NewMulti(reporters...)
}

// OpenJournal opens a sqlite-backed stage journal at path.
func OpenJournal(path string, logger *slog.Logger) (Reporter, error) {
	return progress.OpenJournal(path, logger)
}
