package oracle

import (
	"fmt"
	"strings"

	"github.com/conceptcatch/conceptcatch/internal/quiz"
)

const generationSystem = `You are a quiz author for an educational platform.
Produce questions as strict JSON: an object with a "questions" array. Each
question has: "id" (q1, q2, ...), "prompt", "type", "options" (array, only for
mcq and true_false), "accepted" (array of acceptable answers, canonical first;
for option-backed questions the canonical answer must be one of the options),
"explanation", and "topic" (a short concept tag such as "Photosynthesis" or
"Binary Search"). Return JSON only, no commentary.`

const judgeSystem = `You are an expert tutor grading one student answer.
Decide how much credit the answer deserves and classify the mistake when it is
not fully correct. Return strict JSON with: "credit" (number 0..1), "correct"
(boolean, true only for full credit), "mistake_kind" (one of "conceptual",
"procedural", "careless", "misinterpretation"; empty when correct), and
"feedback" (one or two student-friendly sentences). Return JSON only.`

func generationPrompt(spec GenerationSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write %d %s questions at %s difficulty.\n",
		spec.Count, questionTypeLabel(spec.Type), spec.Difficulty)
	switch spec.Mode {
	case quiz.ModePrompt:
		fmt.Fprintf(&b, "Topic: %s\n", spec.Source)
	case quiz.ModeDocument:
		fmt.Fprintf(&b, "Base every question strictly on this source text:\n---\n%s\n---\n", spec.Source)
	case quiz.ModeMistakes:
		if len(spec.WeakAreas) == 0 {
			b.WriteString("Topic: General Review\n")
			break
		}
		b.WriteString("This is a targeted practice quiz. The student struggles with:\n")
		for _, w := range spec.WeakAreas {
			fmt.Fprintf(&b, "- %s (%s mistakes, seen %d times)\n", w.Topic, w.Kind, w.Frequency)
		}
		b.WriteString("Weight the questions toward the most frequent weak areas.\n")
	}
	if spec.Type == quiz.TypeTrueFalse {
		b.WriteString(`Options must be exactly ["True","False"].` + "\n")
	}
	return b.String()
}

func judgePrompt(req JudgeRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", req.Prompt)
	if len(req.Accepted) > 0 {
		fmt.Fprintf(&b, "Reference answer(s): %s\n", strings.Join(req.Accepted, " | "))
	}
	fmt.Fprintf(&b, "Student answer: %s\n", req.StudentAnswer)
	if req.Type == quiz.TypeShortAnswer {
		b.WriteString("Grade binary: full credit only if acceptably equivalent to a reference answer.\n")
	} else {
		b.WriteString("Grade qualitatively; partial credit is allowed.\n")
	}
	return b.String()
}

func questionTypeLabel(t quiz.QuestionType) string {
	switch t {
	case quiz.TypeMCQ:
		return "multiple-choice"
	case quiz.TypeTrueFalse:
		return "true/false"
	case quiz.TypeShortAnswer:
		return "short-answer"
	case quiz.TypeEssay:
		return "essay"
	}
	return string(t)
}
