// Package scoring implements the per-question-type grading policy. Grading is
// a pure function of the question and the final answer, except where judgment
// is delegated to the content oracle (short-answer equivalence, essays).
package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/conceptcatch/conceptcatch/internal/oracle"
	"github.com/conceptcatch/conceptcatch/internal/quiz"
)

// Mistake kinds assigned to incorrect answers.
const (
	KindNoResponse = "no_response"
	KindIncomplete = "incomplete"
	KindConceptual = "conceptual"
)

// Result is the outcome of grading a single question response. Credit is a
// fraction of the question's points; Correct is true only for full credit.
type Result struct {
	Credit      float64
	Correct     bool
	Feedback    string
	MistakeKind string // set when not Correct
}

// Grader routes a response to the strategy for its question type.
type Grader interface {
	Grade(ctx context.Context, q quiz.Question, answer string, answered bool) (Result, error)
}

// Strategy grades one question type.
type Strategy interface {
	Grade(ctx context.Context, q quiz.Question, answer string) (Result, error)
}

type policyGrader struct {
	strategies map[quiz.QuestionType]Strategy
}

type config struct {
	maxEditDistance int
	judge           oracle.ContentOracle
}

type Option func(*config)

// WithMaxEditDistance sets the edit-distance tolerance for short answers.
func WithMaxEditDistance(n int) Option { return func(c *config) { c.maxEditDistance = n } }

// NewGrader installs the built-in strategies. The oracle may be nil, in which
// case short answers grade by text match only and essays fail to grade.
func NewGrader(judge oracle.ContentOracle, opts ...Option) Grader {
	cfg := &config{maxEditDistance: 1, judge: judge}
	for _, o := range opts {
		o(cfg)
	}
	exact := exactMatchStrategy{}
	return &policyGrader{strategies: map[quiz.QuestionType]Strategy{
		quiz.TypeMCQ:         exact,
		quiz.TypeTrueFalse:   exact,
		quiz.TypeShortAnswer: shortAnswerStrategy{maxEdit: cfg.maxEditDistance, judge: cfg.judge},
		quiz.TypeEssay:       essayStrategy{judge: cfg.judge},
	}}
}

func (g *policyGrader) Grade(ctx context.Context, q quiz.Question, answer string, answered bool) (Result, error) {
	if !answered || strings.TrimSpace(answer) == "" {
		// Unanswered scores zero credit; never an error.
		return Result{MistakeKind: KindNoResponse}, nil
	}
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{}, fmt.Errorf("no grading strategy for question type %q", q.Type)
	}
	res, err := s.Grade(ctx, q, answer)
	if err != nil {
		return Result{}, err
	}
	if !res.Correct && res.MistakeKind == "" {
		res.MistakeKind = ClassifyKind(q.Type, answer)
	}
	return res, nil
}

// ClassifyKind is the fallback mistake classification when no richer signal
// is available: empty answers are no_response, very short free-text answers
// are incomplete, everything else is conceptual.
func ClassifyKind(t quiz.QuestionType, answer string) string {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return KindNoResponse
	}
	if (t == quiz.TypeShortAnswer || t == quiz.TypeEssay) && len(strings.Fields(trimmed)) < 3 {
		return KindIncomplete
	}
	return KindConceptual
}

// --- strategies ---

// exactMatchStrategy: mcq and true_false. Case-insensitive,
// whitespace-trimmed match against any accepted answer; binary credit.
type exactMatchStrategy struct{}

func (exactMatchStrategy) Grade(_ context.Context, q quiz.Question, answer string) (Result, error) {
	got := foldTrim(answer)
	for _, k := range q.Accepted {
		if got == foldTrim(k) {
			return Result{Credit: 1, Correct: true}, nil
		}
	}
	return Result{}, nil
}

// shortAnswerStrategy: normalized match first, small edit-distance tolerance,
// then delegated equivalence judgment. Binary credit either way.
type shortAnswerStrategy struct {
	maxEdit int
	judge   oracle.ContentOracle
}

func (s shortAnswerStrategy) Grade(ctx context.Context, q quiz.Question, answer string) (Result, error) {
	got := normalize(answer)
	for _, k := range q.Accepted {
		want := normalize(k)
		if got == want {
			return Result{Credit: 1, Correct: true}, nil
		}
		if s.maxEdit > 0 && levenshtein(got, want) <= s.maxEdit {
			return Result{Credit: 1, Correct: true, Feedback: "accepted as a close match"}, nil
		}
	}
	if s.judge == nil {
		return Result{}, nil
	}
	j, err := s.judge.Judge(ctx, oracle.JudgeRequest{
		Prompt:        q.Prompt,
		Accepted:      q.Accepted,
		StudentAnswer: answer,
		Type:          quiz.TypeShortAnswer,
	})
	if err != nil {
		return Result{}, err
	}
	if j.Correct {
		return Result{Credit: 1, Correct: true, Feedback: j.Feedback}, nil
	}
	return Result{Feedback: j.Feedback, MistakeKind: j.MistakeKind}, nil
}

// essayStrategy: always delegated; fractional credit.
type essayStrategy struct {
	judge oracle.ContentOracle
}

func (s essayStrategy) Grade(ctx context.Context, q quiz.Question, answer string) (Result, error) {
	if s.judge == nil {
		return Result{}, fmt.Errorf("essay grading requires a content oracle")
	}
	j, err := s.judge.Judge(ctx, oracle.JudgeRequest{
		Prompt:        q.Prompt,
		Accepted:      q.Accepted,
		StudentAnswer: answer,
		Type:          quiz.TypeEssay,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{
		Credit:      j.Credit,
		Correct:     j.Correct && j.Credit >= 1,
		Feedback:    j.Feedback,
		MistakeKind: j.MistakeKind,
	}, nil
}

func foldTrim(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
