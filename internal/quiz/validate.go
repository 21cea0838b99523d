package quiz

import (
	"fmt"
	"strings"
)

// Validate checks the quiz-level invariants before a quiz is persisted.
func Validate(z Quiz) error {
	if strings.TrimSpace(z.Title) == "" {
		return fmt.Errorf("%w: title required", ErrValidation)
	}
	switch z.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		return fmt.Errorf("%w: unknown difficulty %q", ErrValidation, z.Difficulty)
	}
	return ValidateQuestions(z.Questions)
}

// ValidateQuestions checks every question. Option-backed questions need at
// least two options and the canonical answer must be one of them.
func ValidateQuestions(qs []Question) error {
	seen := make(map[string]struct{}, len(qs))
	for i, q := range qs {
		if err := ValidateQuestion(q); err != nil {
			return fmt.Errorf("question %d (%s): %w", i+1, q.ID, err)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: duplicate question id %q", ErrValidation, q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return nil
}

// ValidateQuestion checks a single question against the content invariants.
func ValidateQuestion(q Question) error {
	if strings.TrimSpace(q.ID) == "" {
		return fmt.Errorf("%w: question id required", ErrValidation)
	}
	if strings.TrimSpace(q.Prompt) == "" {
		return fmt.Errorf("%w: prompt required", ErrValidation)
	}
	if len(q.Accepted) == 0 || strings.TrimSpace(q.Accepted[0]) == "" {
		return fmt.Errorf("%w: accepted answer required", ErrValidation)
	}
	if q.Points < 0 {
		return fmt.Errorf("%w: negative points", ErrValidation)
	}
	switch q.Type {
	case TypeMCQ, TypeTrueFalse:
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: %s question needs at least two options", ErrValidation, q.Type)
		}
		if !containsFold(q.Options, q.Accepted[0]) {
			return fmt.Errorf("%w: correct answer %q not among options", ErrValidation, q.Accepted[0])
		}
	case TypeShortAnswer, TypeEssay:
		if len(q.Options) != 0 {
			return fmt.Errorf("%w: %s question must not carry options", ErrValidation, q.Type)
		}
	default:
		return fmt.Errorf("%w: unknown question type %q", ErrValidation, q.Type)
	}
	return nil
}

func containsFold(opts []string, want string) bool {
	w := strings.TrimSpace(want)
	for _, o := range opts {
		if strings.EqualFold(strings.TrimSpace(o), w) {
			return true
		}
	}
	return false
}
