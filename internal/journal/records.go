package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pinktranscriber/internal/logging"
)

// Request journal states.
const (
	StateQueued  = "queued"
	StateRunning = "running"
	StateDone    = "done"
	StateFailed  = "failed"
)

const observerTimeout = 5 * time.Second

// Entry is one journaled request outcome.
type Entry struct {
	ID           string
	SourcePath   string
	State        string
	ErrorMessage string
	QueuedAt     time.Time
	StartedAt    time.Time
	FinishedAt   time.Time
	Duration     time.Duration
}

// Stats aggregates journal counts for the status and history commands.
type Stats struct {
	Total           int
	Queued          int
	Running         int
	Done            int
	Failed          int
	AverageDuration time.Duration
}

// RequestQueued records a freshly submitted request. Implements
// worker.Observer; failures are logged, never surfaced.
func (j *Journal) RequestQueued(id, path string, at time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), observerTimeout)
	defer cancel()
	err := j.execWithRetry(ctx,
		`INSERT INTO requests (id, source_path, state, queued_at) VALUES (?, ?, ?, ?)`,
		id, path, StateQueued, encodeTime(at))
	j.logWriteFailure("record queued request", id, err)
}

// RequestStarted marks a request as holding the engine.
func (j *Journal) RequestStarted(id string, at time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), observerTimeout)
	defer cancel()
	err := j.execWithRetry(ctx,
		`UPDATE requests SET state = ?, started_at = ? WHERE id = ?`,
		StateRunning, encodeTime(at), id)
	j.logWriteFailure("record started request", id, err)
}

// RequestFinished records the outcome. The transcript itself is never
// stored, only the failure message when there is one.
func (j *Journal) RequestFinished(id string, requestErr error, at time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), observerTimeout)
	defer cancel()

	state := StateDone
	message := ""
	if requestErr != nil {
		state = StateFailed
		message = requestErr.Error()
	}
	err := j.execWithRetry(ctx,
		`UPDATE requests
		 SET state = ?, error_message = ?, finished_at = ?,
		     duration_ms = CASE WHEN started_at IS NOT NULL
		         THEN CAST((julianday(?) - julianday(started_at)) * 86400000 AS INTEGER)
		         ELSE NULL END
		 WHERE id = ?`,
		state, message, encodeTime(at), encodeTime(at), id)
	j.logWriteFailure("record finished request", id, err)
}

func (j *Journal) logWriteFailure(op, id string, err error) {
	if err == nil {
		return
	}
	logging.WarnWithContext(j.logger, "journal write failed; request unaffected", "journal_write_failed",
		logging.String("op", op),
		logging.String(logging.FieldRequestID, id),
		logging.Error(err),
		logging.String(logging.FieldImpact, "history output will be incomplete"),
		logging.String(logging.FieldErrorHint, "check journal file permissions and free disk space"),
	)
}

// Recent returns the newest entries, most recent submission first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, source_path, state, error_message, queued_at, started_at, finished_at, duration_ms
		 FROM requests ORDER BY queued_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var queued string
		var started, finished sql.NullString
		var durationMS sql.NullInt64
		if err := rows.Scan(&entry.ID, &entry.SourcePath, &entry.State, &entry.ErrorMessage,
			&queued, &started, &finished, &durationMS); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		entry.QueuedAt = decodeTime(queued)
		if started.Valid {
			entry.StartedAt = decodeTime(started.String)
		}
		if finished.Valid {
			entry.FinishedAt = decodeTime(finished.String)
		}
		if durationMS.Valid {
			entry.Duration = time.Duration(durationMS.Int64) * time.Millisecond
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CountByState returns aggregate request counts plus the average
// duration of completed work.
func (j *Journal) CountByState(ctx context.Context) (Stats, error) {
	var stats Stats
	rows, err := j.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM requests GROUP BY state`)
	if err != nil {
		return stats, fmt.Errorf("query journal stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return stats, fmt.Errorf("scan journal stats: %w", err)
		}
		stats.Total += count
		switch state {
		case StateQueued:
			stats.Queued = count
		case StateRunning:
			stats.Running = count
		case StateDone:
			stats.Done = count
		case StateFailed:
			stats.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	var avgMS sql.NullFloat64
	err = j.db.QueryRowContext(ctx,
		`SELECT AVG(duration_ms) FROM requests WHERE state = ? AND duration_ms IS NOT NULL`,
		StateDone).Scan(&avgMS)
	if err != nil {
		return stats, fmt.Errorf("query average duration: %w", err)
	}
	if avgMS.Valid {
		stats.AverageDuration = time.Duration(avgMS.Float64) * time.Millisecond
	}
	return stats, nil
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
