package attempt

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/conceptcatch/conceptcatch/internal/events"
)

// SQLStore persists attempts with the frozen snapshot, responses and result
// breakdown as JSON columns. A partial unique index on
// (quiz_id, student_id) WHERE state='in_progress' backs the one-active-attempt
// invariant across processes, and Finalize rides a conditional UPDATE so the
// terminal transition is applied exactly once.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

const attemptCols = `id,quiz_id,quiz_version,student_id,state,snapshot_json,time_limit_sec,responses_json,score,max_score,percentage,results_json,started_at,submitted_at,time_taken_sec`

func (s *SQLStore) Create(ctx context.Context, a Attempt) error {
	snap, err := json.Marshal(a.Snapshot)
	if err != nil {
		return err
	}
	resp, _ := json.Marshal(a.Responses)
	_, err = s.db.ExecContext(ctx, `INSERT INTO attempts
		(id,quiz_id,quiz_version,student_id,state,snapshot_json,time_limit_sec,responses_json,score,max_score,percentage,results_json,started_at,time_taken_sec)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,0,0,0,'[]',$9,0)`,
		a.ID, a.QuizID, a.QuizVersion, a.StudentID, string(a.State), string(snap),
		a.TimeLimitSec, string(resp), a.StartedAt)
	if err != nil && isUniqueViolation(err) {
		return ErrActiveExists
	}
	return err
}

func (s *SQLStore) Get(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts WHERE id=$1`, id)
	return scanAttempt(row)
}

func (s *SQLStore) FindActive(ctx context.Context, quizID, studentID string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts
		WHERE quiz_id=$1 AND student_id=$2 AND state=$3
		ORDER BY started_at DESC LIMIT 1`, quizID, studentID, string(StateInProgress))
	return scanAttempt(row)
}

func (s *SQLStore) UpdateResponses(ctx context.Context, id string, responses map[string]string) error {
	a, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if a.State != StateInProgress {
		return ErrInvalidState
	}
	if a.Responses == nil {
		a.Responses = map[string]string{}
	}
	for k, v := range responses {
		a.Responses[k] = v
	}
	buf, _ := json.Marshal(a.Responses)
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET responses_json=$1 WHERE id=$2 AND state=$3`,
		string(buf), id, string(StateInProgress))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInvalidState
	}
	return nil
}

func (s *SQLStore) Finalize(ctx context.Context, a Attempt, rec events.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	resp, _ := json.Marshal(a.Responses)
	results, err := json.Marshal(a.Results)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE attempts
		SET state=$1, responses_json=$2, score=$3, max_score=$4, percentage=$5,
		    results_json=$6, submitted_at=$7, time_taken_sec=$8
		WHERE id=$9 AND state=$10`,
		string(a.State), string(resp), a.Score, a.MaxScore, a.Percentage,
		string(results), a.SubmittedAt, a.TimeTakenSec, a.ID, string(StateInProgress))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// lost the race, or the attempt never existed
		var one int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM attempts WHERE id=$1`, a.ID).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		return ErrAlreadySubmitted
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, data, created_at, applied) VALUES ($1,$2,$3,$4,FALSE)`,
		rec.Type, rec.Key, rec.DataJSON, rec.CreatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) List(ctx context.Context, opts ListOpts) ([]Attempt, error) {
	where := []string{"1=1"}
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if opts.QuizID != "" {
		add("quiz_id", opts.QuizID)
	}
	if opts.StudentID != "" {
		add("student_id", opts.StudentID)
	}
	if opts.State != "" {
		add("state", opts.State)
	}
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, opts.Offset)
	q := `SELECT ` + attemptCols + ` FROM attempts WHERE ` + strings.Join(where, " AND ") +
		fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanAttempt(row rowScanner) (Attempt, error) {
	var a Attempt
	var snap, resp, results string
	var submittedAt sql.NullInt64
	err := row.Scan(&a.ID, &a.QuizID, &a.QuizVersion, &a.StudentID, &a.State, &snap,
		&a.TimeLimitSec, &resp, &a.Score, &a.MaxScore, &a.Percentage, &results,
		&a.StartedAt, &submittedAt, &a.TimeTakenSec)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrNotFound
		}
		return Attempt{}, err
	}
	if submittedAt.Valid {
		a.SubmittedAt = submittedAt.Int64
	}
	if err := json.Unmarshal([]byte(snap), &a.Snapshot); err != nil {
		return Attempt{}, err
	}
	if resp != "" {
		if err := json.Unmarshal([]byte(resp), &a.Responses); err != nil {
			a.Responses = map[string]string{}
		}
	}
	if results != "" {
		_ = json.Unmarshal([]byte(results), &a.Results)
	}
	return a, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || // sqlite
		strings.Contains(msg, "duplicate key") // postgres
}
