// Package attempt implements the quiz attempt lifecycle: issuing attempts
// against a frozen question snapshot, collecting responses, and finalizing
// with deterministic scoring. The engine is the exclusive owner of attempt
// state; all transitions go through it.
package attempt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conceptcatch/conceptcatch/internal/events"
	"github.com/conceptcatch/conceptcatch/internal/quiz"
	"github.com/conceptcatch/conceptcatch/internal/scoring"
)

// ResumePolicy decides what a second start call does while an attempt is
// already in progress for the same (student, quiz) pair.
type ResumePolicy string

const (
	// PolicyResume returns the existing in-progress attempt (idempotent start).
	PolicyResume ResumePolicy = "resume"
	// PolicyReject fails the second start with ErrAttemptInProgress.
	PolicyReject ResumePolicy = "reject"
)

type Engine struct {
	store   Store
	quizzes quiz.Store
	grader  scoring.Grader

	policy     ResumePolicy
	maxRetries int
	retryWait  time.Duration
	notify     func(attemptID string)
	now        func() time.Time

	// serializes response/submit work per attempt id; the store's
	// conditional finalize remains the correctness backstop across processes
	locks sync.Map
}

type Option func(*Engine)

func WithResumePolicy(p ResumePolicy) Option { return func(e *Engine) { e.policy = p } }

// WithStorageRetries bounds internal retries of transient storage failures
// before ErrStorageUnavailable is surfaced.
func WithStorageRetries(n int) Option { return func(e *Engine) { e.maxRetries = n } }

// WithSubmitNotifier registers a callback invoked after every successful
// finalization (used to wake the profile aggregator). Must not block.
func WithSubmitNotifier(fn func(attemptID string)) Option {
	return func(e *Engine) { e.notify = fn }
}

func withClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func NewEngine(store Store, quizzes quiz.Store, grader scoring.Grader, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		quizzes:    quizzes,
		grader:     grader,
		policy:     PolicyResume,
		maxRetries: 3,
		retryWait:  50 * time.Millisecond,
		now:        time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Start creates (or, under the resume policy, returns) an attempt for the
// student on a published quiz, snapshotting the question set at the current
// version.
func (e *Engine) Start(ctx context.Context, quizID, studentID string) (Attempt, error) {
	z, err := e.quizzes.Get(ctx, quizID)
	if err != nil {
		return Attempt{}, err
	}
	if z.State != quiz.StatePublished {
		return Attempt{}, fmt.Errorf("%w: quiz %s is not published", ErrInvalidState, quizID)
	}

	if cur, err := e.findResumable(ctx, quizID, studentID); err == nil {
		if e.policy == PolicyResume {
			return cur, nil
		}
		return Attempt{}, ErrAttemptInProgress
	}

	a := Attempt{
		ID:           uuid.NewString(),
		QuizID:       z.ID,
		QuizVersion:  z.Version,
		StudentID:    studentID,
		State:        StateInProgress,
		Snapshot:     append([]quiz.Question(nil), z.Questions...),
		TimeLimitSec: z.TimeLimitSec,
		Responses:    map[string]string{},
		StartedAt:    e.now().Unix(),
	}
	err = e.withRetry(ctx, func() error { return e.store.Create(ctx, a) })
	if err == nil {
		return a, nil
	}
	if errors.Is(err, ErrActiveExists) {
		// lost a concurrent start race
		if e.policy == PolicyReject {
			return Attempt{}, ErrAttemptInProgress
		}
		return e.withRetryGet(ctx, func() (Attempt, error) {
			return e.store.FindActive(ctx, quizID, studentID)
		})
	}
	return Attempt{}, err
}

// findResumable returns the current in-progress attempt, expiring it first if
// its deadline already passed (an expired attempt never blocks a new start).
func (e *Engine) findResumable(ctx context.Context, quizID, studentID string) (Attempt, error) {
	cur, err := e.store.FindActive(ctx, quizID, studentID)
	if err != nil {
		return Attempt{}, err
	}
	if e.overdue(cur) {
		if _, err := e.expire(ctx, cur); err != nil && !domainErr(err) {
			return Attempt{}, err
		}
		return Attempt{}, ErrNotFound
	}
	return cur, nil
}

// SaveResponse upserts one answer on an in-progress attempt. Last write wins;
// no history is kept.
func (e *Engine) SaveResponse(ctx context.Context, attemptID, questionID, answer string) (Attempt, error) {
	unlock := e.lock(attemptID)
	defer unlock()

	a, err := e.getFresh(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.State != StateInProgress {
		return Attempt{}, fmt.Errorf("%w: attempt is %s", ErrInvalidState, a.State)
	}
	if !snapshotHas(a.Snapshot, questionID) {
		return Attempt{}, fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	err = e.withRetry(ctx, func() error {
		return e.store.UpdateResponses(ctx, attemptID, map[string]string{questionID: answer})
	})
	if err != nil {
		return Attempt{}, err
	}
	if a.Responses == nil {
		a.Responses = map[string]string{}
	}
	a.Responses[questionID] = answer
	return a, nil
}

// Submit merges the final response batch, scores the attempt as a pure
// function of (snapshot, responses), and applies the terminal transition
// exactly once. Repeated or concurrent calls observe ErrAlreadySubmitted.
// A submit that arrives after the time limit finalizes the attempt as
// expired, scored from the responses recorded before the deadline.
func (e *Engine) Submit(ctx context.Context, attemptID string, final map[string]string, timeTakenSec int) (Attempt, error) {
	unlock := e.lock(attemptID)
	defer unlock()

	a, err := e.getLocked(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	switch a.State {
	case StateSubmitted:
		return Attempt{}, ErrAlreadySubmitted
	case StateExpired:
		return Attempt{}, fmt.Errorf("%w: attempt expired", ErrInvalidState)
	}
	if e.overdue(a) {
		return e.expire(ctx, a)
	}

	if a.Responses == nil {
		a.Responses = map[string]string{}
	}
	for k, v := range final {
		if !snapshotHas(a.Snapshot, k) {
			return Attempt{}, fmt.Errorf("%w: %s", ErrUnknownQuestion, k)
		}
		a.Responses[k] = v
	}
	return e.finalize(ctx, a, StateSubmitted, timeTakenSec)
}

// Get returns an attempt, applying the on-access expiry check.
func (e *Engine) Get(ctx context.Context, attemptID string) (Attempt, error) {
	unlock := e.lock(attemptID)
	defer unlock()

	a, err := e.getLocked(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.State == StateInProgress && e.overdue(a) {
		return e.expire(ctx, a)
	}
	return a, nil
}

func (e *Engine) List(ctx context.Context, opts ListOpts) ([]Attempt, error) {
	return e.store.List(ctx, opts)
}

// --- internals ---

// finalize scores and applies the terminal transition with the submitted
// event as a single atomic unit, retrying transient storage errors.
func (e *Engine) finalize(ctx context.Context, a Attempt, terminal State, timeTakenSec int) (Attempt, error) {
	results, score, maxScore, err := e.scoreAll(ctx, a.Snapshot, a.Responses)
	if err != nil {
		return Attempt{}, fmt.Errorf("scoring attempt %s: %w", a.ID, err)
	}
	a.State = terminal
	a.Results = results
	a.Score = score
	a.MaxScore = maxScore
	a.Percentage = percentage(score, maxScore)
	a.SubmittedAt = e.now().Unix()
	a.TimeTakenSec = timeTakenSec

	rec := events.NewAttemptSubmitted(events.AttemptSubmitted{
		AttemptID:  a.ID,
		StudentID:  a.StudentID,
		QuizID:     a.QuizID,
		Percentage: a.Percentage,
		Tags:       a.MistakeTags(),
	})
	if err := e.withRetry(ctx, func() error { return e.store.Finalize(ctx, a, rec) }); err != nil {
		return Attempt{}, err
	}
	e.locks.Delete(a.ID)
	if e.notify != nil {
		e.notify(a.ID)
	}
	return a, nil
}

// expire finalizes an overdue attempt, scored from whatever responses were
// recorded before the deadline. If another process already applied the
// terminal transition, the stored attempt wins.
func (e *Engine) expire(ctx context.Context, a Attempt) (Attempt, error) {
	out, err := e.finalize(ctx, a, StateExpired, a.TimeLimitSec)
	if errors.Is(err, ErrAlreadySubmitted) {
		return e.getLocked(ctx, a.ID)
	}
	return out, err
}

// scoreAll is the pure scoring pass: snapshot order, unanswered questions
// score zero credit, incorrect answers carry a mistake tag derived from the
// question's topic.
func (e *Engine) scoreAll(ctx context.Context, snapshot []quiz.Question, responses map[string]string) ([]QuestionResult, float64, float64, error) {
	results := make([]QuestionResult, 0, len(snapshot))
	var score, maxScore float64
	for _, q := range snapshot {
		answer, answered := responses[q.ID]
		res, err := e.grader.Grade(ctx, q, answer, answered)
		if err != nil {
			return nil, 0, 0, err
		}
		earned := res.Credit * q.Points
		qr := QuestionResult{
			QuestionID:    q.ID,
			Prompt:        q.Prompt,
			StudentAnswer: answer,
			CorrectAnswer: q.CorrectAnswer(),
			IsCorrect:     res.Correct,
			PointsEarned:  earned,
			MaxPoints:     q.Points,
			Explanation:   q.Explanation,
			Feedback:      res.Feedback,
		}
		if !res.Correct {
			qr.MistakeTag = &events.Tag{Topic: topicOf(q), Kind: res.MistakeKind}
		}
		results = append(results, qr)
		score += earned
		maxScore += q.Points
	}
	return results, score, maxScore, nil
}

func percentage(score, maxScore float64) float64 {
	if maxScore <= 0 {
		return 0
	}
	return score / maxScore * 100
}

func topicOf(q quiz.Question) string {
	if q.Topic != "" {
		return q.Topic
	}
	return "General"
}

func (e *Engine) overdue(a Attempt) bool {
	return a.State == StateInProgress && a.TimeLimitSec > 0 &&
		e.now().Unix() > a.StartedAt+int64(a.TimeLimitSec)
}

func snapshotHas(snapshot []quiz.Question, questionID string) bool {
	for _, q := range snapshot {
		if q.ID == questionID {
			return true
		}
	}
	return false
}

func (e *Engine) lock(id string) func() {
	v, _ := e.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (e *Engine) getLocked(ctx context.Context, id string) (Attempt, error) {
	return e.withRetryGet(ctx, func() (Attempt, error) { return e.store.Get(ctx, id) })
}

func (e *Engine) getFresh(ctx context.Context, id string) (Attempt, error) {
	a, err := e.getLocked(ctx, id)
	if err != nil {
		return Attempt{}, err
	}
	if a.State == StateInProgress && e.overdue(a) {
		return e.expire(ctx, a)
	}
	return a, nil
}

// withRetry retries fn on transient storage errors a bounded number of
// times. Domain errors pass through untouched; persistent failures surface
// as ErrStorageUnavailable.
func (e *Engine) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i <= e.maxRetries; i++ {
		err = fn()
		if err == nil || domainErr(err) {
			return err
		}
		if i == e.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.retryWait):
		}
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

func (e *Engine) withRetryGet(ctx context.Context, fn func() (Attempt, error)) (Attempt, error) {
	var a Attempt
	err := e.withRetry(ctx, func() error {
		var err error
		a, err = fn()
		return err
	})
	return a, err
}
