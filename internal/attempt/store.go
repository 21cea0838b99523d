package attempt

import (
	"context"
	"sort"
	"sync"

	"github.com/conceptcatch/conceptcatch/internal/events"
	"github.com/conceptcatch/conceptcatch/internal/quiz"
)

// Store persists attempts. The engine is the only writer; every mutation is
// conditional on the attempt still being in progress, so a finalized attempt
// can never be changed regardless of interleaving.
type Store interface {
	// Create inserts a new in-progress attempt. Fails with ErrActiveExists
	// if the (student, quiz) pair already has one in progress.
	Create(ctx context.Context, a Attempt) error
	Get(ctx context.Context, id string) (Attempt, error)
	// FindActive returns the in-progress attempt for (quiz, student), or
	// ErrNotFound.
	FindActive(ctx context.Context, quizID, studentID string) (Attempt, error)
	// UpdateResponses merges the given responses last-write-wins. Requires
	// the attempt to be in progress (ErrInvalidState otherwise).
	UpdateResponses(ctx context.Context, id string, responses map[string]string) error
	// Finalize applies the terminal transition, score and breakdown as one
	// conditional write (state must still be in_progress) and appends the
	// submitted event atomically with it. Exactly one concurrent caller
	// succeeds; the rest get ErrAlreadySubmitted.
	Finalize(ctx context.Context, a Attempt, rec events.Record) error
	List(ctx context.Context, opts ListOpts) ([]Attempt, error)
}

type memoryStore struct {
	mu       sync.Mutex
	attempts map[string]Attempt
	active   map[string]string // quizID|studentID -> attempt id
	log      *events.MemoryLog
}

// NewInMemoryStore returns a Store backed by process memory, appending
// finalize events to the given log.
func NewInMemoryStore(log *events.MemoryLog) Store {
	return &memoryStore{
		attempts: map[string]Attempt{},
		active:   map[string]string{},
		log:      log,
	}
}

func activeKey(quizID, studentID string) string { return quizID + "|" + studentID }

func (m *memoryStore) Create(_ context.Context, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := activeKey(a.QuizID, a.StudentID)
	if id, ok := m.active[key]; ok {
		if cur, exists := m.attempts[id]; exists && cur.State == StateInProgress {
			return ErrActiveExists
		}
	}
	m.attempts[a.ID] = cloneAttempt(a)
	m.active[key] = a.ID
	return nil
}

func (m *memoryStore) Get(_ context.Context, id string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	return cloneAttempt(a), nil
}

func (m *memoryStore) FindActive(_ context.Context, quizID, studentID string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.active[activeKey(quizID, studentID)]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	a, ok := m.attempts[id]
	if !ok || a.State != StateInProgress {
		return Attempt{}, ErrNotFound
	}
	return cloneAttempt(a), nil
}

func (m *memoryStore) UpdateResponses(_ context.Context, id string, responses map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return ErrNotFound
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
	m.attempts[id] = a
	return nil
}

func (m *memoryStore) Finalize(ctx context.Context, a Attempt, rec events.Record) error {
	m.mu.Lock()
	cur, ok := m.attempts[a.ID]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if cur.State != StateInProgress {
		m.mu.Unlock()
		return ErrAlreadySubmitted
	}
	m.attempts[a.ID] = cloneAttempt(a)
	delete(m.active, activeKey(a.QuizID, a.StudentID))
	m.mu.Unlock()
	return m.log.Append(ctx, rec)
}

func (m *memoryStore) List(_ context.Context, opts ListOpts) ([]Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Attempt
	for _, a := range m.attempts {
		if opts.QuizID != "" && a.QuizID != opts.QuizID {
			continue
		}
		if opts.StudentID != "" && a.StudentID != opts.StudentID {
			continue
		}
		if opts.State != "" && string(a.State) != opts.State {
			continue
		}
		out = append(out, cloneAttempt(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt > out[j].StartedAt })
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func cloneAttempt(a Attempt) Attempt {
	out := a
	if a.Responses != nil {
		out.Responses = make(map[string]string, len(a.Responses))
		for k, v := range a.Responses {
			out.Responses[k] = v
		}
	}
	out.Snapshot = append([]quiz.Question(nil), a.Snapshot...)
	out.Results = append([]QuestionResult(nil), a.Results...)
	return out
}
