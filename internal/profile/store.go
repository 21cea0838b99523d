package profile

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/conceptcatch/conceptcatch/internal/events"
)

// ErrNotFound is returned for a student with no recorded attempts.
var ErrNotFound = errors.New("profile not found")

// Store holds the aggregated profile state. Apply is idempotent on the
// attempt id: reapplying the same event is a no-op, so at-least-once
// delivery from the log never double-counts.
type Store interface {
	// Apply folds one submitted attempt into the student's profile.
	// Returns false when the attempt was applied before.
	Apply(ctx context.Context, ev events.AttemptSubmitted) (bool, error)
	// Get returns the profile with at most topN common mistakes.
	Get(ctx context.Context, studentID string, topN int) (Profile, error)
}

type studentStats struct {
	percentageSum float64
	total         int
	mistakes      map[string]*CommonMistake
}

type memoryStore struct {
	mu      sync.Mutex
	applied map[string]bool // attempt id
	stats   map[string]*studentStats
	now     func() int64
}

func NewInMemoryStore() Store {
	return &memoryStore{
		applied: map[string]bool{},
		stats:   map[string]*studentStats{},
	}
}

func (m *memoryStore) Apply(_ context.Context, ev events.AttemptSubmitted) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applied[ev.AttemptID] {
		return false, nil
	}
	m.applied[ev.AttemptID] = true

	st := m.stats[ev.StudentID]
	if st == nil {
		st = &studentStats{mistakes: map[string]*CommonMistake{}}
		m.stats[ev.StudentID] = st
	}
	st.percentageSum += ev.Percentage
	st.total++
	for _, t := range ev.Tags {
		key := tagKey(t)
		cm := st.mistakes[key]
		if cm == nil {
			cm = &CommonMistake{Topic: t.Topic, Kind: t.Kind}
			st.mistakes[key] = cm
		}
		cm.Count++
		cm.LastOccurred = nowUnix(m.now)
	}
	return true, nil
}

func (m *memoryStore) Get(_ context.Context, studentID string, topN int) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.stats[studentID]
	if st == nil {
		return Profile{}, ErrNotFound
	}
	p := Profile{
		StudentID:     studentID,
		AverageScore:  st.percentageSum / float64(st.total),
		TotalAttempts: st.total,
	}
	for _, cm := range st.mistakes {
		p.CommonMistakes = append(p.CommonMistakes, *cm)
	}
	sortMistakes(p.CommonMistakes)
	p.CommonMistakes = truncate(p.CommonMistakes, topN)
	return p, nil
}

// sortMistakes orders by frequency desc, then recency desc, then topic for a
// stable listing.
func sortMistakes(ms []CommonMistake) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Count != ms[j].Count {
			return ms[i].Count > ms[j].Count
		}
		if ms[i].LastOccurred != ms[j].LastOccurred {
			return ms[i].LastOccurred > ms[j].LastOccurred
		}
		return ms[i].Topic < ms[j].Topic
	})
}

func truncate(ms []CommonMistake, topN int) []CommonMistake {
	if topN > 0 && len(ms) > topN {
		return ms[:topN]
	}
	return ms
}

func nowUnix(clock func() int64) int64 {
	if clock != nil {
		return clock()
	}
	return time.Now().Unix()
}
