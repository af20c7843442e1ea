package progress

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// journalSchema holds the DDL for the stage journal table.
const journalSchema = `
CREATE TABLE IF NOT EXISTS profile_stages (
    stage_id INTEGER PRIMARY KEY AUTOINCREMENT,
    target TEXT NOT NULL,
    run INTEGER NOT NULL,
    name TEXT NOT NULL,
    detail TEXT,
    timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_profile_stages_target_time
    ON profile_stages(target, timestamp DESC);
`

// Journal persists stage transitions to a sqlite database so an interrupted
// profiling session leaves a trace of how far each target got. Writes are
// non-blocking: insert errors are logged but never propagate into the pass.
type Journal struct {
	db     *sql.DB
	owned  bool
	logger *slog.Logger
}

// NewJournal wraps an existing database handle. The caller keeps ownership
// of the handle; Close does not close it.
func NewJournal(db *sql.DB, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := db.Exec(journalSchema); err != nil {
		return nil, fmt.Errorf("progress: init journal schema: %w", err)
	}
	return &Journal{db: db, logger: logger}, nil
}

// OpenJournal opens (or creates) a journal database at path. The returned
// journal owns the handle and closes it on Close.
func OpenJournal(path string, logger *slog.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("progress: open journal %s: %w", path, err)
	}
	j, err := NewJournal(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	j.owned = true
	return j, nil
}

func (j *Journal) Stage(ctx context.Context, s Stage) {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO profile_stages (target, run, name, detail, timestamp)
		VALUES (?,?,?,?,?)`,
		s.Target, s.Run, s.Name, s.Detail, s.Timestamp.Unix())
	if err != nil {
		j.logger.Warn("progress: journal write failed", "stage", s.Name, "error", err)
	}
}

func (j *Journal) Close() error {
	if !j.owned {
		return nil
	}
	return j.db.Close()
}

// Stages returns the journaled transitions for one target, oldest first.
// Intended for post-mortem inspection and tests.
func (j *Journal) Stages(ctx context.Context, target string) ([]Stage, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT target, run, name, detail, timestamp
		FROM profile_stages WHERE target = ? ORDER BY stage_id`, target)
	if err != nil {
		return nil, fmt.Errorf("progress: query journal: %w", err)
	}
	defer rows.Close()

	var out []Stage
	for rows.Next() {
		var s Stage
		var ts int64
		var detail sql.NullString
		if err := rows.Scan(&s.Target, &s.Run, &s.Name, &detail, &ts); err != nil {
			return nil, fmt.Errorf("progress: scan journal row: %w", err)
		}
		s.Detail = detail.String
		s.Timestamp = time.Unix(ts, 0)
		out = append(out, s)
	}
	return out, rows.Err()
}
