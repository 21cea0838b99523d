package profile

import (
	"context"
	"database/sql"
	"time"

	"github.com/conceptcatch/conceptcatch/internal/events"
)

// SQLStore backs profiles with three tables: profile_applied (idempotency
// ledger keyed by attempt id), student_stats (running percentage sum and
// attempt count), and student_mistakes ((student, topic, kind) counters).
// Apply runs as one transaction; the idempotency insert goes first so a
// replayed event aborts before touching the aggregates.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) Apply(ctx context.Context, ev events.AttemptSubmitted) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO profile_applied (attempt_id, applied_at) VALUES ($1,$2)
		 ON CONFLICT (attempt_id) DO NOTHING`,
		ev.AttemptID, time.Now().Unix())
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO student_stats (student_id, percentage_sum, total_attempts)
		 VALUES ($1,$2,1)
		 ON CONFLICT (student_id) DO UPDATE SET
		   percentage_sum = student_stats.percentage_sum + $2,
		   total_attempts = student_stats.total_attempts + 1`,
		ev.StudentID, ev.Percentage); err != nil {
		return false, err
	}

	now := time.Now().Unix()
	for _, t := range ev.Tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO student_mistakes (student_id, topic, kind, count, last_occurred)
			 VALUES ($1,$2,$3,1,$4)
			 ON CONFLICT (student_id, topic, kind) DO UPDATE SET
			   count = student_mistakes.count + 1,
			   last_occurred = $4`,
			ev.StudentID, t.Topic, t.Kind, now); err != nil {
			return false, err
		}
	}
	return true, tx.Commit()
}

func (s *SQLStore) Get(ctx context.Context, studentID string, topN int) (Profile, error) {
	var sum float64
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT percentage_sum, total_attempts FROM student_stats WHERE student_id=$1`,
		studentID).Scan(&sum, &total)
	if err == sql.ErrNoRows {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	p := Profile{StudentID: studentID, TotalAttempts: total}
	if total > 0 {
		p.AverageScore = sum / float64(total)
	}

	if topN <= 0 {
		topN = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT topic, kind, count, last_occurred FROM student_mistakes
		 WHERE student_id=$1
		 ORDER BY count DESC, last_occurred DESC, topic ASC LIMIT $2`,
		studentID, topN)
	if err != nil {
		return Profile{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var cm CommonMistake
		if err := rows.Scan(&cm.Topic, &cm.Kind, &cm.Count, &cm.LastOccurred); err != nil {
			return Profile{}, err
		}
		p.CommonMistakes = append(p.CommonMistakes, cm)
	}
	return p, rows.Err()
}
