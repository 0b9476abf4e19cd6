package journal_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"pinktranscriber/internal/journal"
	"pinktranscriber/internal/logging"
)

func openJournal(t *testing.T) *journal.Journal {
	t.Helper()
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"), logging.NewNop())
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() {
		if err := j.Close(); err != nil {
			t.Errorf("journal.Close: %v", err)
		}
	})
	return j
}

func TestJournalLifecycle(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()

	queued := time.Now().Add(-2 * time.Second)
	started := queued.Add(time.Second)
	finished := started.Add(500 * time.Millisecond)

	j.RequestQueued("req-1", "/audio/sample.wav", queued)
	j.RequestStarted("req-1", started)
	j.RequestFinished("req-1", nil, finished)

	entries, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	entry := entries[0]
	if entry.ID != "req-1" || entry.SourcePath != "/audio/sample.wav" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.State != journal.StateDone {
		t.Fatalf("state = %s, want done", entry.State)
	}
	if entry.Duration <= 0 || entry.Duration > 2*time.Second {
		t.Fatalf("implausible duration %v", entry.Duration)
	}
}

func TestJournalRecordsFailures(t *testing.T) {
	j := openJournal(t)
	now := time.Now()

	j.RequestQueued("req-err", "/audio/bad.wav", now)
	j.RequestStarted("req-err", now)
	j.RequestFinished("req-err", errors.New("engine exploded"), now)

	entries, err := j.Recent(context.Background(), 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if entries[0].State != journal.StateFailed {
		t.Fatalf("state = %s, want failed", entries[0].State)
	}
	if entries[0].ErrorMessage != "engine exploded" {
		t.Fatalf("error message = %q", entries[0].ErrorMessage)
	}
}

func TestJournalRecentOrdersNewestFirst(t *testing.T) {
	j := openJournal(t)
	base := time.Now().Add(-time.Minute)
	for i := 0; i < 5; i++ {
		j.RequestQueued(
			string(rune('a'+i)),
			"/audio/x.wav",
			base.Add(time.Duration(i)*time.Second),
		)
	}

	entries, err := j.Recent(context.Background(), 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].ID != "e" || entries[2].ID != "c" {
		t.Fatalf("unexpected order: %s, %s, %s", entries[0].ID, entries[1].ID, entries[2].ID)
	}
}

func TestJournalCountByState(t *testing.T) {
	j := openJournal(t)
	now := time.Now()

	j.RequestQueued("q1", "/a.wav", now)
	j.RequestQueued("q2", "/b.wav", now)
	j.RequestStarted("q2", now)
	j.RequestFinished("q2", nil, now.Add(time.Second))
	j.RequestQueued("q3", "/c.wav", now)
	j.RequestStarted("q3", now)
	j.RequestFinished("q3", errors.New("boom"), now)

	stats, err := j.CountByState(context.Background())
	if err != nil {
		t.Fatalf("CountByState: %v", err)
	}
	if stats.Total != 3 || stats.Queued != 1 || stats.Done != 1 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestJournalReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := journal.Open(path, logging.NewNop())
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	j.RequestQueued("persist", "/a.wav", time.Now())
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := journal.Open(path, logging.NewNop())
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer reopened.Close()
	entries, err := reopened.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "persist" {
		t.Fatalf("journal lost data across reopen: %+v", entries)
	}
}
