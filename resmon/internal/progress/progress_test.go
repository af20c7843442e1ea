package progress

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func TestSlogReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewSlog(slog.New(slog.NewJSONHandler(&buf, nil)))

	r.Stage(context.Background(), Stage{
		Target: "react", Run: 1, Name: "baseline", Detail: "3 samples",
	})
	out := buf.String()
	if !strings.Contains(out, "baseline") || !strings.Contains(out, "react") {
		t.Errorf("log output missing stage fields: %s", out)
	}
	if err := r.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

type recordingReporter struct {
	stages   []Stage
	closeErr error
	closed   bool
}

func (r *recordingReporter) Stage(_ context.Context, s Stage) { r.stages = append(r.stages, s) }
func (r *recordingReporter) Close() error {
	r.closed = true
	return r.closeErr
}

func TestMultiFansOut(t *testing.T) {
	a := &recordingReporter{}
	b := &recordingReporter{closeErr: errors.New("sink broke")}
	m := NewMulti(a, b)

	m.Stage(context.Background(), Stage{Name: "launch"})
	m.Stage(context.Background(), Stage{Name: "navigate"})

	if len(a.stages) != 2 || len(b.stages) != 2 {
		t.Fatalf("fan-out counts: a=%d b=%d", len(a.stages), len(b.stages))
	}
	if err := m.Close(); err == nil {
		t.Error("close should surface the first reporter error")
	}
	if !a.closed || !b.closed {
		t.Error("close must reach every reporter")
	}
}

func TestJournalRoundTrip(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	j, err := NewJournal(db, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	ctx := context.Background()
	now := time.Now().Truncate(time.Second)
	j.Stage(ctx, Stage{Target: "vue", Run: 1, Name: "launch", Timestamp: now})
	j.Stage(ctx, Stage{Target: "vue", Run: 1, Name: "baseline", Detail: "calibrating", Timestamp: now})
	j.Stage(ctx, Stage{Target: "svelte", Run: 1, Name: "launch", Timestamp: now})

	got, err := j.Stages(ctx, "vue")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("stages for vue: got %d, want 2", len(got))
	}
	if got[0].Name != "launch" || got[1].Name != "baseline" {
		t.Errorf("order: got %q then %q", got[0].Name, got[1].Name)
	}
	if got[1].Detail != "calibrating" {
		t.Errorf("detail: got %q", got[1].Detail)
	}
	if !got[0].Timestamp.Equal(now) {
		t.Errorf("timestamp: got %v, want %v", got[0].Timestamp, now)
	}
}

func TestJournalWriteFailureIsSwallowed(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	j, err := NewJournal(db, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	if err != nil {
		t.Fatal(err)
	}
	db.Close()

	// Writing after the handle is closed must not panic or propagate.
	j.Stage(context.Background(), Stage{Target: "x", Name: "launch"})
}
