package events_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conceptcatch/conceptcatch/internal/events"
)

func TestMemoryLogAppendAndMarkApplied(t *testing.T) {
	ctx := context.Background()
	log := events.NewMemoryLog()

	rec := events.NewAttemptSubmitted(events.AttemptSubmitted{
		AttemptID: "a1", StudentID: "s1", QuizID: "z1", Percentage: 75,
		Tags: []events.Tag{{Topic: "Algebra", Kind: "conceptual"}},
	})
	require.Equal(t, events.TypeAttemptSubmitted, rec.Type)
	require.Equal(t, "a1", rec.Key)

	require.NoError(t, log.Append(ctx, rec))
	require.NoError(t, log.Append(ctx, events.Record{Type: "Other", Key: "x", DataJSON: "{}"}))

	recs, err := log.Unapplied(ctx, events.TypeAttemptSubmitted, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1, "filtered by type")
	assert.Contains(t, recs[0].DataJSON, `"percentage":75`)

	require.NoError(t, log.MarkApplied(ctx, recs[0].Offset))
	recs, err = log.Unapplied(ctx, events.TypeAttemptSubmitted, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestMemoryLogOffsetsAreMonotonic(t *testing.T) {
	ctx := context.Background()
	log := events.NewMemoryLog()
	for i := 0; i < 3; i++ {
		require.NoError(t, log.Append(ctx, events.Record{Type: "T", Key: "k", DataJSON: "{}"}))
	}
	recs, err := log.Unapplied(ctx, "T", 0)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Less(t, recs[0].Offset, recs[1].Offset)
	assert.Less(t, recs[1].Offset, recs[2].Offset)
}
