// Package events is the append-only log connecting the attempt engine to the
// mistake-aggregation engine. Finalizing an attempt appends an
// AttemptSubmitted record (atomically with the state transition, for the SQL
// store); the profile engine consumes unapplied records at least once and
// marks them applied.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"
)

const TypeAttemptSubmitted = "AttemptSubmitted"

// Tag is the closed mistake-tag schema carried in event payloads.
type Tag struct {
	Topic string `json:"topic"`
	Kind  string `json:"kind"`
}

// AttemptSubmitted is the payload for TypeAttemptSubmitted records. The key
// of the record is the attempt id, which makes profile application idempotent.
type AttemptSubmitted struct {
	AttemptID  string  `json:"attempt_id"`
	StudentID  string  `json:"student_id"`
	QuizID     string  `json:"quiz_id"`
	Percentage float64 `json:"percentage"`
	Tags       []Tag   `json:"tags,omitempty"`
}

// Record is one log entry.
type Record struct {
	Offset    int64
	Type      string
	Key       string // natural key: attempt id
	DataJSON  string
	CreatedAt int64
	Applied   bool
}

// NewAttemptSubmitted builds a Record from the payload.
func NewAttemptSubmitted(p AttemptSubmitted) Record {
	data, _ := json.Marshal(p)
	return Record{
		Type:      TypeAttemptSubmitted,
		Key:       p.AttemptID,
		DataJSON:  string(data),
		CreatedAt: time.Now().Unix(),
	}
}

// Log is the consumer-side view of the event log. Appending happens inside
// the attempt stores so it can share the finalize transaction.
type Log interface {
	Append(ctx context.Context, rec Record) error
	Unapplied(ctx context.Context, typ string, limit int) ([]Record, error)
	MarkApplied(ctx context.Context, offset int64) error
}

// ---- in-memory log ----

type MemoryLog struct {
	mu      sync.Mutex
	records []Record
	next    int64
}

func NewMemoryLog() *MemoryLog { return &MemoryLog{next: 1} }

func (l *MemoryLog) Append(_ context.Context, rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec.Offset = l.next
	l.next++
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().Unix()
	}
	l.records = append(l.records, rec)
	return nil
}

func (l *MemoryLog) Unapplied(_ context.Context, typ string, limit int) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Record
	for _, r := range l.records {
		if r.Applied || r.Type != typ {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (l *MemoryLog) MarkApplied(_ context.Context, offset int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.records {
		if l.records[i].Offset == offset {
			l.records[i].Applied = true
			return nil
		}
	}
	return nil
}

// ---- SQL log ----

type SQLLog struct{ db *sql.DB }

func NewSQLLog(db *sql.DB) *SQLLog { return &SQLLog{db: db} }

func (l *SQLLog) Append(ctx context.Context, rec Record) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, data, created_at, applied) VALUES ($1,$2,$3,$4,FALSE)`,
		rec.Type, rec.Key, rec.DataJSON, rec.CreatedAt)
	return err
}

func (l *SQLLog) Unapplied(ctx context.Context, typ string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT "offset", typ, key, data, created_at FROM event_log
		 WHERE typ=$1 AND applied=FALSE ORDER BY "offset" ASC LIMIT $2`, typ, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Offset, &r.Type, &r.Key, &r.DataJSON, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (l *SQLLog) MarkApplied(ctx context.Context, offset int64) error {
	_, err := l.db.ExecContext(ctx, `UPDATE event_log SET applied=TRUE WHERE "offset"=$1`, offset)
	return err
}
