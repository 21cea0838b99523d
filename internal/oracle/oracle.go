// Package oracle wraps the generative backend used for quiz authoring and
// open-ended answer judgment. The rest of the system treats it as an opaque
// capability: output is validated against the quiz content invariants, and
// nothing else about how it was produced is inspected.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/conceptcatch/conceptcatch/internal/quiz"
)

var (
	// ErrGenerationFailed means the backend failed or returned content that
	// does not satisfy the quiz invariants. Callers must not create a quiz.
	ErrGenerationFailed = errors.New("content generation failed")
	// ErrGenerationTimeout is the deadline-exceeded flavor of the above.
	ErrGenerationTimeout = errors.New("content generation timed out")
	// ErrJudgmentFailed means an answer-judgment call could not be completed.
	ErrJudgmentFailed = errors.New("answer judgment failed")
)

// WeakArea is a student weak spot fed into mistakes-mode generation.
type WeakArea struct {
	Topic     string `json:"topic"`
	Kind      string `json:"kind"`
	Frequency int64  `json:"frequency"`
}

// GenerationSpec describes the quiz to produce.
type GenerationSpec struct {
	Mode       quiz.GenerationMode
	Source     string // topic string (prompt mode) or extracted document text
	Count      int
	Type       quiz.QuestionType
	Difficulty quiz.Difficulty
	WeakAreas  []WeakArea // mistakes mode only
}

// JudgeRequest asks whether a free-text answer deserves credit.
type JudgeRequest struct {
	Prompt        string
	Accepted      []string
	StudentAnswer string
	Type          quiz.QuestionType
}

// Judgment is the oracle's verdict on a free-text answer.
type Judgment struct {
	Credit      float64 `json:"credit"` // fraction in [0,1]
	Correct     bool    `json:"correct"`
	MistakeKind string  `json:"mistake_kind,omitempty"` // conceptual|procedural|careless|misinterpretation
	Feedback    string  `json:"feedback,omitempty"`
}

// ContentOracle is the injected capability used by quiz generation and the
// scoring policy. Implementations: OpenAI-backed client, deterministic Mock.
type ContentOracle interface {
	Generate(ctx context.Context, spec GenerationSpec) ([]quiz.Question, error)
	Judge(ctx context.Context, req JudgeRequest) (Judgment, error)
}

// ValidateSpec rejects malformed generation requests before any backend call.
func ValidateSpec(spec GenerationSpec) error {
	if spec.Count <= 0 || spec.Count > 50 {
		return fmt.Errorf("%w: question count %d out of range", ErrGenerationFailed, spec.Count)
	}
	switch spec.Type {
	case quiz.TypeMCQ, quiz.TypeTrueFalse, quiz.TypeShortAnswer, quiz.TypeEssay:
	default:
		return fmt.Errorf("%w: unknown question type %q", ErrGenerationFailed, spec.Type)
	}
	switch spec.Mode {
	case quiz.ModePrompt, quiz.ModeDocument:
		if spec.Source == "" {
			return fmt.Errorf("%w: source required for %s mode", ErrGenerationFailed, spec.Mode)
		}
	case quiz.ModeMistakes:
		// empty weak areas fall back to a general review quiz; allowed
	default:
		return fmt.Errorf("%w: unknown generation mode %q", ErrGenerationFailed, spec.Mode)
	}
	return nil
}

// checkOutput enforces the output contract: count, per-question invariants.
func checkOutput(spec GenerationSpec, qs []quiz.Question) error {
	if len(qs) == 0 {
		return fmt.Errorf("%w: empty question set", ErrGenerationFailed)
	}
	quiz.ApplyDefaults(qs)
	if err := quiz.ValidateQuestions(qs); err != nil {
		return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return nil
}

func clampCredit(j *Judgment) {
	if j.Credit < 0 {
		j.Credit = 0
	}
	if j.Credit > 1 {
		j.Credit = 1
	}
	if j.Credit >= 1 {
		j.Correct = true
	}
}
