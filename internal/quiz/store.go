package quiz

import (
	"context"
	"sync"
	"time"
)

// Store owns the Quiz lifecycle. The attempt engine reads quizzes through it
// but never writes them.
type Store interface {
	// Put persists a new quiz (draft). The quiz must already be validated.
	Put(ctx context.Context, z Quiz) error
	// Get returns the full quiz including answer keys. Callers decide whether
	// to strip answers for the viewer.
	Get(ctx context.Context, id string) (Quiz, error)
	// ReplaceQuestions swaps the question set. Drafts are edited in place;
	// published quizzes get their version bumped so in-flight attempt
	// snapshots stay coherent.
	ReplaceQuestions(ctx context.Context, id string, qs []Question) (Quiz, error)
	// Publish flips draft -> published. Irreversible.
	Publish(ctx context.Context, id string) (Quiz, error)
	// ListByOwner returns summaries of a teacher's quizzes, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]Summary, error)
}

// ApplyDefaults fills per-question defaults (1 point) before validation.
func ApplyDefaults(qs []Question) {
	for i := range qs {
		if qs[i].Points == 0 {
			qs[i].Points = 1
		}
	}
}

type memoryStore struct {
	mu      sync.RWMutex
	quizzes map[string]Quiz
}

// NewInMemoryStore returns a Store backed by process memory. Used in tests
// and single-node dev runs.
func NewInMemoryStore() Store {
	return &memoryStore{quizzes: map[string]Quiz{}}
}

func (m *memoryStore) Put(_ context.Context, z Quiz) error {
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
	now := time.Now().Unix()
	if z.CreatedAt == 0 {
		z.CreatedAt = now
	}
	z.UpdatedAt = now
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quizzes[z.ID] = z
	return nil
}

func (m *memoryStore) Get(_ context.Context, id string) (Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	z, ok := m.quizzes[id]
	if !ok {
		return Quiz{}, ErrNotFound
	}
	return z, nil
}

func (m *memoryStore) ReplaceQuestions(_ context.Context, id string, qs []Question) (Quiz, error) {
	ApplyDefaults(qs)
	if err := ValidateQuestions(qs); err != nil {
		return Quiz{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.quizzes[id]
	if !ok {
		return Quiz{}, ErrNotFound
	}
	if z.State == StatePublished {
		z.Version++
	}
	z.Questions = qs
	z.UpdatedAt = time.Now().Unix()
	m.quizzes[id] = z
	return z, nil
}

func (m *memoryStore) Publish(_ context.Context, id string) (Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.quizzes[id]
	if !ok {
		return Quiz{}, ErrNotFound
	}
	if z.State != StateDraft {
		return Quiz{}, ErrInvalidState
	}
	z.State = StatePublished
	z.UpdatedAt = time.Now().Unix()
	m.quizzes[id] = z
	return z, nil
}

func (m *memoryStore) ListByOwner(_ context.Context, ownerID string) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Summary
	for _, z := range m.quizzes {
		if z.OwnerID != ownerID {
			continue
		}
		out = append(out, Summary{
			ID:           z.ID,
			Title:        z.Title,
			Topic:        z.Topic,
			Difficulty:   z.Difficulty,
			State:        z.State,
			Version:      z.Version,
			NumQuestions: len(z.Questions),
			CreatedAt:    z.CreatedAt,
		})
	}
	sortSummaries(out)
	return out, nil
}

func sortSummaries(s []Summary) {
	// newest first; insertion sort is fine for dashboard-sized lists
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1].CreatedAt < s[j].CreatedAt; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
