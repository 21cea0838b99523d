package quiz_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conceptcatch/conceptcatch/internal/quiz"
)

func validMCQ(id string) quiz.Question {
	return quiz.Question{
		ID:       id,
		Prompt:   "capital of France?",
		Type:     quiz.TypeMCQ,
		Options:  []string{"Paris", "London"},
		Accepted: []string{"Paris"},
		Points:   1,
	}
}

func TestValidateQuestion(t *testing.T) {
	require.NoError(t, quiz.ValidateQuestion(validMCQ("q1")))

	tests := []struct {
		name   string
		mutate func(*quiz.Question)
	}{
		{"missing id", func(q *quiz.Question) { q.ID = " " }},
		{"missing prompt", func(q *quiz.Question) { q.Prompt = "" }},
		{"no accepted answer", func(q *quiz.Question) { q.Accepted = nil }},
		{"one option only", func(q *quiz.Question) { q.Options = []string{"Paris"} }},
		{"answer not among options", func(q *quiz.Question) { q.Accepted = []string{"Rome"} }},
		{"negative points", func(q *quiz.Question) { q.Points = -1 }},
		{"unknown type", func(q *quiz.Question) { q.Type = "matching" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := validMCQ("q1")
			tc.mutate(&q)
			err := quiz.ValidateQuestion(q)
			require.ErrorIs(t, err, quiz.ErrValidation)
		})
	}
}

func TestValidateQuestionAnswerMatchIsCaseInsensitive(t *testing.T) {
	q := validMCQ("q1")
	q.Accepted = []string{"paris"}
	assert.NoError(t, quiz.ValidateQuestion(q))
}

func TestFreeTextMustNotCarryOptions(t *testing.T) {
	q := quiz.Question{
		ID:       "q1",
		Prompt:   "explain",
		Type:     quiz.TypeEssay,
		Options:  []string{"a", "b"},
		Accepted: []string{"reference answer"},
		Points:   1,
	}
	require.ErrorIs(t, quiz.ValidateQuestion(q), quiz.ErrValidation)

	q.Options = nil
	assert.NoError(t, quiz.ValidateQuestion(q))
}

func TestValidateQuestionsRejectsDuplicateIDs(t *testing.T) {
	err := quiz.ValidateQuestions([]quiz.Question{validMCQ("q1"), validMCQ("q1")})
	require.ErrorIs(t, err, quiz.ErrValidation)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestValidateQuiz(t *testing.T) {
	z := quiz.Quiz{
		ID:         "z1",
		Title:      "Networking basics",
		Difficulty: quiz.DifficultyMedium,
		Type:       quiz.TypeMCQ,
		Questions:  []quiz.Question{validMCQ("q1")},
	}
	require.NoError(t, quiz.Validate(z))

	z.Title = "  "
	require.ErrorIs(t, quiz.Validate(z), quiz.ErrValidation)

	z.Title = "ok"
	z.Difficulty = "impossible"
	require.ErrorIs(t, quiz.Validate(z), quiz.ErrValidation)
}
