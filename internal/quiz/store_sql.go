package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// SQLStore persists quizzes in the quizzes table with the question set as a
// JSON column, the same shape for sqlite and postgres.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) Put(ctx context.Context, z Quiz) error {
	ApplyDefaults(z.Questions)
	if err := Validate(z); err != nil {
		return err
	}
	if z.Version == 0 {
		z.Version = 1
	}
	if z.State == "" {
		z.State = StateDraft
	}
	qj, err := json.Marshal(z.Questions)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	_, err = s.db.ExecContext(ctx, `INSERT INTO quizzes
		(id,owner_id,title,topic,difficulty,question_type,generation_mode,state,version,time_limit_sec,questions_json,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		z.ID, z.OwnerID, z.Title, z.Topic, string(z.Difficulty), string(z.Type), string(z.Mode),
		string(z.State), z.Version, z.TimeLimitSec, string(qj), now, now)
	return err
}

func (s *SQLStore) Get(ctx context.Context, id string) (Quiz, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,owner_id,title,topic,difficulty,question_type,generation_mode,state,version,time_limit_sec,questions_json,created_at,updated_at
		FROM quizzes WHERE id=$1`, id)
	return scanQuiz(row)
}

func (s *SQLStore) ReplaceQuestions(ctx context.Context, id string, qs []Question) (Quiz, error) {
	ApplyDefaults(qs)
	if err := ValidateQuestions(qs); err != nil {
		return Quiz{}, err
	}
	qj, err := json.Marshal(qs)
	if err != nil {
		return Quiz{}, err
	}
	// Published quizzes get a version bump in the same statement, so attempt
	// snapshots taken against the old version stay self-consistent.
	res, err := s.db.ExecContext(ctx, `UPDATE quizzes
		SET questions_json=$1,
		    version=version + CASE WHEN state=$2 THEN 1 ELSE 0 END,
		    updated_at=$3
		WHERE id=$4`,
		string(qj), string(StatePublished), time.Now().Unix(), id)
	if err != nil {
		return Quiz{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Quiz{}, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *SQLStore) Publish(ctx context.Context, id string) (Quiz, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE quizzes SET state=$1, updated_at=$2
		WHERE id=$3 AND state=$4`,
		string(StatePublished), time.Now().Unix(), id, string(StateDraft))
	if err != nil {
		return Quiz{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// distinguish unknown quiz from an illegal transition
		if _, err := s.Get(ctx, id); err != nil {
			return Quiz{}, err
		}
		return Quiz{}, ErrInvalidState
	}
	return s.Get(ctx, id)
}

func (s *SQLStore) ListByOwner(ctx context.Context, ownerID string) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,title,topic,difficulty,state,version,questions_json,created_at
		FROM quizzes WHERE owner_id=$1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var sm Summary
		var qjson string
		if err := rows.Scan(&sm.ID, &sm.Title, &sm.Topic, &sm.Difficulty, &sm.State, &sm.Version, &qjson, &sm.CreatedAt); err != nil {
			return nil, err
		}
		var qs []Question
		if err := json.Unmarshal([]byte(qjson), &qs); err == nil {
			sm.NumQuestions = len(qs)
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanQuiz(row rowScanner) (Quiz, error) {
	var z Quiz
	var qjson string
	err := row.Scan(&z.ID, &z.OwnerID, &z.Title, &z.Topic, &z.Difficulty, &z.Type, &z.Mode,
		&z.State, &z.Version, &z.TimeLimitSec, &qjson, &z.CreatedAt, &z.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, ErrNotFound
		}
		return Quiz{}, err
	}
	if err := json.Unmarshal([]byte(qjson), &z.Questions); err != nil {
		return Quiz{}, err
	}
	return z, nil
}
