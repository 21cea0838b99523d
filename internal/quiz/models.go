package quiz

// Difficulty of a generated quiz.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// QuestionType selects the scoring strategy for a question.
type QuestionType string

const (
	TypeMCQ         QuestionType = "mcq"
	TypeTrueFalse   QuestionType = "true_false"
	TypeShortAnswer QuestionType = "short_answer"
	TypeEssay       QuestionType = "essay"
)

// State of a quiz. Draft quizzes are editable in place; published quizzes are
// visible to students and any further edit bumps the version.
type State string

const (
	StateDraft     State = "draft"
	StatePublished State = "published"
)

// GenerationMode records how a quiz was produced.
type GenerationMode string

const (
	ModePrompt   GenerationMode = "prompt"
	ModeDocument GenerationMode = "document"
	ModeMistakes GenerationMode = "mistakes"
)

type Question struct {
	ID          string       `json:"id"`
	Prompt      string       `json:"prompt"`
	Type        QuestionType `json:"type"`
	Options     []string     `json:"options,omitempty"`  // mcq/true_false only
	Accepted    []string     `json:"accepted,omitempty"` // acceptable answers; first is canonical
	Explanation string       `json:"explanation,omitempty"`
	Topic       string       `json:"topic,omitempty"` // concept tag for mistake aggregation
	Points      float64      `json:"points"`
}

// CorrectAnswer returns the canonical answer shown in result breakdowns.
func (q Question) CorrectAnswer() string {
	if len(q.Accepted) == 0 {
		return ""
	}
	return q.Accepted[0]
}

type Quiz struct {
	ID           string         `json:"id"`
	OwnerID      string         `json:"owner_id"`
	Title        string         `json:"title"`
	Topic        string         `json:"topic,omitempty"`
	Difficulty   Difficulty     `json:"difficulty"`
	Type         QuestionType   `json:"question_type"`
	Mode         GenerationMode `json:"generation_mode,omitempty"`
	State        State          `json:"state"`
	Version      int            `json:"version"`
	TimeLimitSec int            `json:"time_limit_sec,omitempty"` // 0 = untimed
	Questions    []Question     `json:"questions"`
	CreatedAt    int64          `json:"created_at,omitempty"`
	UpdatedAt    int64          `json:"updated_at,omitempty"`
}

// Summary is the listing view for teacher dashboards.
type Summary struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Topic        string     `json:"topic,omitempty"`
	Difficulty   Difficulty `json:"difficulty"`
	State        State      `json:"state"`
	Version      int        `json:"version"`
	NumQuestions int        `json:"num_questions"`
	CreatedAt    int64      `json:"created_at"`
}

// StripAnswers returns a copy safe to serve to students: accepted answers and
// explanations removed, everything else intact.
func (z Quiz) StripAnswers() Quiz {
	out := z
	out.Questions = StripAnswers(z.Questions)
	return out
}

// StripAnswers removes answer keys and explanations from a question slice.
func StripAnswers(qs []Question) []Question {
	out := make([]Question, len(qs))
	copy(out, qs)
	for i := range out {
		out[i].Accepted = nil
		out[i].Explanation = ""
	}
	return out
}
