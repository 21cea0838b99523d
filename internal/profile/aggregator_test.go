package profile_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conceptcatch/conceptcatch/internal/events"
	"github.com/conceptcatch/conceptcatch/internal/profile"
)

func submitted(attemptID, studentID string, pct float64, tags ...events.Tag) events.Record {
	return events.NewAttemptSubmitted(events.AttemptSubmitted{
		AttemptID:  attemptID,
		StudentID:  studentID,
		QuizID:     "z1",
		Percentage: pct,
		Tags:       tags,
	})
}

func TestSweepComputesRunningAverage(t *testing.T) {
	ctx := context.Background()
	log := events.NewMemoryLog()
	store := profile.NewInMemoryStore()
	agg := profile.NewAggregator(log, store, 0)

	require.NoError(t, log.Append(ctx, submitted("a1", "s1", 100)))
	require.NoError(t, log.Append(ctx, submitted("a2", "s1", 50)))
	require.NoError(t, log.Append(ctx, submitted("a3", "s1", 0)))

	agg.Sweep(ctx)

	p, err := store.Get(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Equal(t, 50.0, p.AverageScore)
	assert.Equal(t, 3, p.TotalAttempts)

	recs, err := log.Unapplied(ctx, events.TypeAttemptSubmitted, 0)
	require.NoError(t, err)
	assert.Empty(t, recs, "sweep marks everything applied")
}

func TestReplayedEventIsNotDoubleCounted(t *testing.T) {
	ctx := context.Background()
	log := events.NewMemoryLog()
	store := profile.NewInMemoryStore()
	agg := profile.NewAggregator(log, store, 0)

	rec := submitted("a1", "s1", 80, events.Tag{Topic: "Algebra", Kind: "conceptual"})
	require.NoError(t, log.Append(ctx, rec))
	agg.Sweep(ctx)

	// same attempt id appended again (at-least-once delivery)
	require.NoError(t, log.Append(ctx, rec))
	agg.Sweep(ctx)

	p, err := store.Get(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, p.TotalAttempts)
	assert.Equal(t, 80.0, p.AverageScore)
	require.Len(t, p.CommonMistakes, 1)
	assert.Equal(t, 1, p.CommonMistakes[0].Count)
}

func TestMistakeAggregationTopN(t *testing.T) {
	ctx := context.Background()
	log := events.NewMemoryLog()
	store := profile.NewInMemoryStore()
	agg := profile.NewAggregator(log, store, 0)

	algebra := events.Tag{Topic: "Algebra", Kind: "conceptual"}
	geometry := events.Tag{Topic: "Geometry", Kind: "careless"}
	calculus := events.Tag{Topic: "Calculus", Kind: "no_response"}

	require.NoError(t, log.Append(ctx, submitted("a1", "s1", 40, algebra, geometry)))
	require.NoError(t, log.Append(ctx, submitted("a2", "s1", 60, algebra, calculus)))
	require.NoError(t, log.Append(ctx, submitted("a3", "s1", 70, algebra)))
	agg.Sweep(ctx)

	p, err := store.Get(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, p.CommonMistakes, 2, "top-N truncation")
	assert.Equal(t, "Algebra", p.CommonMistakes[0].Topic)
	assert.Equal(t, 3, p.CommonMistakes[0].Count)
}

func TestMalformedRecordIsSkippedNotWedged(t *testing.T) {
	ctx := context.Background()
	log := events.NewMemoryLog()
	store := profile.NewInMemoryStore()
	agg := profile.NewAggregator(log, store, 0)

	require.NoError(t, log.Append(ctx, events.Record{
		Type: events.TypeAttemptSubmitted, Key: "bad", DataJSON: "{not json",
	}))
	require.NoError(t, log.Append(ctx, submitted("a1", "s1", 90)))
	agg.Sweep(ctx)

	p, err := store.Get(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, p.TotalAttempts)

	recs, err := log.Unapplied(ctx, events.TypeAttemptSubmitted, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestProfileNotFound(t *testing.T) {
	store := profile.NewInMemoryStore()
	_, err := store.Get(context.Background(), "nobody", 10)
	require.ErrorIs(t, err, profile.ErrNotFound)
}

func TestProfilesAreIsolatedPerStudent(t *testing.T) {
	ctx := context.Background()
	log := events.NewMemoryLog()
	store := profile.NewInMemoryStore()
	agg := profile.NewAggregator(log, store, 0)

	require.NoError(t, log.Append(ctx, submitted("a1", "s1", 100)))
	require.NoError(t, log.Append(ctx, submitted("a2", "s2", 0)))
	agg.Sweep(ctx)

	p1, err := store.Get(ctx, "s1", 10)
	require.NoError(t, err)
	p2, err := store.Get(ctx, "s2", 10)
	require.NoError(t, err)
	assert.Equal(t, 100.0, p1.AverageScore)
	assert.Equal(t, 0.0, p2.AverageScore)
}
