package quiz_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conceptcatch/conceptcatch/internal/quiz"
)

func draftQuiz(id, owner string) quiz.Quiz {
	return quiz.Quiz{
		ID:         id,
		OwnerID:    owner,
		Title:      "Networking basics",
		Difficulty: quiz.DifficultyMedium,
		Type:       quiz.TypeMCQ,
		State:      quiz.StateDraft,
		Version:    1,
		Questions:  []quiz.Question{validMCQ("q1")},
	}
}

func TestPublishIsIrreversibleAndDraftOnly(t *testing.T) {
	ctx := context.Background()
	store := quiz.NewInMemoryStore()
	require.NoError(t, store.Put(ctx, draftQuiz("z1", "t1")))

	z, err := store.Publish(ctx, "z1")
	require.NoError(t, err)
	assert.Equal(t, quiz.StatePublished, z.State)

	_, err = store.Publish(ctx, "z1")
	require.ErrorIs(t, err, quiz.ErrInvalidState)

	_, err = store.Publish(ctx, "missing")
	require.ErrorIs(t, err, quiz.ErrNotFound)
}

func TestEditingDraftKeepsVersion(t *testing.T) {
	ctx := context.Background()
	store := quiz.NewInMemoryStore()
	require.NoError(t, store.Put(ctx, draftQuiz("z1", "t1")))

	z, err := store.ReplaceQuestions(ctx, "z1", []quiz.Question{validMCQ("q2")})
	require.NoError(t, err)
	assert.Equal(t, 1, z.Version)
	require.Len(t, z.Questions, 1)
	assert.Equal(t, "q2", z.Questions[0].ID)
}

func TestEditingPublishedBumpsVersion(t *testing.T) {
	ctx := context.Background()
	store := quiz.NewInMemoryStore()
	require.NoError(t, store.Put(ctx, draftQuiz("z1", "t1")))
	_, err := store.Publish(ctx, "z1")
	require.NoError(t, err)

	z, err := store.ReplaceQuestions(ctx, "z1", []quiz.Question{validMCQ("q2")})
	require.NoError(t, err)
	assert.Equal(t, 2, z.Version, "published edits version instead of failing")

	z, err = store.ReplaceQuestions(ctx, "z1", []quiz.Question{validMCQ("q3")})
	require.NoError(t, err)
	assert.Equal(t, 3, z.Version)
}

func TestReplaceQuestionsValidates(t *testing.T) {
	ctx := context.Background()
	store := quiz.NewInMemoryStore()
	require.NoError(t, store.Put(ctx, draftQuiz("z1", "t1")))

	bad := validMCQ("q2")
	bad.Options = []string{"only one"}
	_, err := store.ReplaceQuestions(ctx, "z1", []quiz.Question{bad})
	require.ErrorIs(t, err, quiz.ErrValidation)

	// original question set untouched
	z, err := store.Get(ctx, "z1")
	require.NoError(t, err)
	assert.Equal(t, "q1", z.Questions[0].ID)
}

func TestListByOwnerNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := quiz.NewInMemoryStore()

	a := draftQuiz("z1", "t1")
	a.CreatedAt = 100
	b := draftQuiz("z2", "t1")
	b.CreatedAt = 200
	other := draftQuiz("z3", "t2")
	require.NoError(t, store.Put(ctx, a))
	require.NoError(t, store.Put(ctx, b))
	require.NoError(t, store.Put(ctx, other))

	out, err := store.ListByOwner(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "z2", out[0].ID)
	assert.Equal(t, "z1", out[1].ID)
}

func TestStripAnswers(t *testing.T) {
	z := draftQuiz("z1", "t1")
	z.Questions[0].Explanation = "because"
	out := z.StripAnswers()
	assert.Empty(t, out.Questions[0].Accepted)
	assert.Empty(t, out.Questions[0].Explanation)
	// original untouched
	assert.NotEmpty(t, z.Questions[0].Accepted)
}
