package oracle_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conceptcatch/conceptcatch/internal/oracle"
	"github.com/conceptcatch/conceptcatch/internal/quiz"
)

func validQuestions(n int) []quiz.Question {
	out := make([]quiz.Question, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, quiz.Question{
			ID:       string(rune('a' + i)),
			Prompt:   "prompt",
			Type:     quiz.TypeMCQ,
			Options:  []string{"yes", "no"},
			Accepted: []string{"yes"},
			Topic:    "General",
			Points:   1,
		})
	}
	return out
}

func TestValidateSpec(t *testing.T) {
	base := oracle.GenerationSpec{
		Mode:       quiz.ModePrompt,
		Source:     "photosynthesis",
		Count:      5,
		Type:       quiz.TypeMCQ,
		Difficulty: quiz.DifficultyMedium,
	}
	require.NoError(t, oracle.ValidateSpec(base))

	bad := base
	bad.Count = 0
	require.ErrorIs(t, oracle.ValidateSpec(bad), oracle.ErrGenerationFailed)

	bad = base
	bad.Count = 51
	require.ErrorIs(t, oracle.ValidateSpec(bad), oracle.ErrGenerationFailed)

	bad = base
	bad.Source = ""
	require.ErrorIs(t, oracle.ValidateSpec(bad), oracle.ErrGenerationFailed)

	bad = base
	bad.Type = "matching"
	require.ErrorIs(t, oracle.ValidateSpec(bad), oracle.ErrGenerationFailed)

	// mistakes mode with no weak areas is a general review quiz
	mistakes := base
	mistakes.Mode = quiz.ModeMistakes
	mistakes.Source = ""
	assert.NoError(t, oracle.ValidateSpec(mistakes))
}

func TestMockValidatesOutputContract(t *testing.T) {
	m := oracle.NewMock()
	spec := oracle.GenerationSpec{
		Mode: quiz.ModePrompt, Source: "topic", Count: 2,
		Type: quiz.TypeMCQ, Difficulty: quiz.DifficultyEasy,
	}

	// queue empty
	_, err := m.Generate(context.Background(), spec)
	require.ErrorIs(t, err, oracle.ErrGenerationFailed)

	// invariant-violating content is rejected even from the mock
	m.GenerateQueue = []oracle.GenerateReply{{Questions: []quiz.Question{
		{ID: "q1", Prompt: "p", Type: quiz.TypeMCQ, Options: []string{"only"}, Accepted: []string{"only"}},
	}}}
	_, err = m.Generate(context.Background(), spec)
	require.ErrorIs(t, err, oracle.ErrGenerationFailed)

	m.GenerateQueue = []oracle.GenerateReply{{Questions: validQuestions(2)}}
	qs, err := m.Generate(context.Background(), spec)
	require.NoError(t, err)
	assert.Len(t, qs, 2)
	assert.Len(t, m.GenerateCalls, 3)
}

func TestMockJudgeClampsCredit(t *testing.T) {
	m := oracle.NewMock()
	m.JudgeQueue = []oracle.JudgeReply{
		{Judgment: oracle.Judgment{Credit: 1.7}},
		{Judgment: oracle.Judgment{Credit: -0.4}},
	}
	j, err := m.Judge(context.Background(), oracle.JudgeRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, j.Credit)
	assert.True(t, j.Correct, "full credit implies correct")

	j, err = m.Judge(context.Background(), oracle.JudgeRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, j.Credit)
	assert.False(t, j.Correct)
}

// flakyOracle fails n times before delegating to the mock.
type flakyOracle struct {
	inner     oracle.ContentOracle
	failures  int
	callCount int
	err       error
}

func (f *flakyOracle) Generate(ctx context.Context, spec oracle.GenerationSpec) ([]quiz.Question, error) {
	f.callCount++
	if f.callCount <= f.failures {
		return nil, f.err
	}
	return f.inner.Generate(ctx, spec)
}

func (f *flakyOracle) Judge(ctx context.Context, req oracle.JudgeRequest) (oracle.Judgment, error) {
	f.callCount++
	if f.callCount <= f.failures {
		return oracle.Judgment{}, f.err
	}
	return f.inner.Judge(ctx, req)
}

func fastRetry(attempts int) oracle.RetryConfig {
	return oracle.RetryConfig{
		MaxAttempts: attempts,
		InitialWait: time.Millisecond,
		MaxWait:     5 * time.Millisecond,
		Multiplier:  2,
	}
}

func TestRetryRecoversFromTransientFailures(t *testing.T) {
	m := oracle.NewMock()
	m.GenerateQueue = []oracle.GenerateReply{{Questions: validQuestions(1)}}
	flaky := &flakyOracle{inner: m, failures: 2, err: errors.New("connection reset")}

	r := oracle.WithRetry(flaky, fastRetry(3))
	qs, err := r.Generate(context.Background(), oracle.GenerationSpec{
		Mode: quiz.ModePrompt, Source: "t", Count: 1,
		Type: quiz.TypeMCQ, Difficulty: quiz.DifficultyEasy,
	})
	require.NoError(t, err)
	assert.Len(t, qs, 1)
	assert.Equal(t, 3, flaky.callCount)
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	flaky := &flakyOracle{failures: 10, err: errors.New("connection reset")}
	r := oracle.WithRetry(flaky, fastRetry(3))
	_, err := r.Generate(context.Background(), oracle.GenerationSpec{
		Mode: quiz.ModePrompt, Source: "t", Count: 1,
		Type: quiz.TypeMCQ, Difficulty: quiz.DifficultyEasy,
	})
	require.Error(t, err)
	assert.Equal(t, 3, flaky.callCount)
}

func TestRetryDoesNotRetryContractViolations(t *testing.T) {
	flaky := &flakyOracle{failures: 10, err: oracle.ErrGenerationFailed}
	r := oracle.WithRetry(flaky, fastRetry(3))
	_, err := r.Generate(context.Background(), oracle.GenerationSpec{
		Mode: quiz.ModePrompt, Source: "t", Count: 1,
		Type: quiz.TypeMCQ, Difficulty: quiz.DifficultyEasy,
	})
	require.ErrorIs(t, err, oracle.ErrGenerationFailed)
	assert.Equal(t, 1, flaky.callCount, "deterministic failures are not retried")
}
