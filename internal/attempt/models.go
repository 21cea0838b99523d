package attempt

import (
	"github.com/conceptcatch/conceptcatch/internal/events"
	"github.com/conceptcatch/conceptcatch/internal/quiz"
)

// State of an attempt. The only legal transitions are
// in_progress -> submitted and in_progress -> expired; both are terminal.
type State string

const (
	StateInProgress State = "in_progress"
	StateSubmitted  State = "submitted"
	StateExpired    State = "expired"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == StateSubmitted || s == StateExpired }

// Attempt is one student's timed instance of a quiz. Snapshot is the frozen
// copy of the question set (answer keys included) taken at start time, so
// later quiz edits never affect an attempt in flight.
type Attempt struct {
	ID           string            `json:"id"`
	QuizID       string            `json:"quiz_id"`
	QuizVersion  int               `json:"quiz_version"`
	StudentID    string            `json:"student_id"`
	State        State             `json:"state"`
	Snapshot     []quiz.Question   `json:"-"`
	TimeLimitSec int               `json:"time_limit_sec,omitempty"`
	Responses    map[string]string `json:"responses,omitempty"` // question id -> raw answer
	Score        float64           `json:"score"`
	MaxScore     float64           `json:"max_score"`
	Percentage   float64           `json:"percentage"`
	Results      []QuestionResult  `json:"results,omitempty"` // set at finalization only
	StartedAt    int64             `json:"started_at"`
	SubmittedAt  int64             `json:"submitted_at,omitempty"`
	TimeTakenSec int               `json:"time_taken_sec,omitempty"`
}

// QuestionResult is the per-question breakdown computed at finalization.
type QuestionResult struct {
	QuestionID    string      `json:"question_id"`
	Prompt        string      `json:"prompt"`
	StudentAnswer string      `json:"student_answer"`
	CorrectAnswer string      `json:"correct_answer"`
	IsCorrect     bool        `json:"is_correct"`
	PointsEarned  float64     `json:"points_earned"`
	MaxPoints     float64     `json:"max_points"`
	Explanation   string      `json:"explanation,omitempty"`
	Feedback      string      `json:"feedback,omitempty"`
	MistakeTag    *events.Tag `json:"mistake_tag,omitempty"` // absent when correct
}

// PerformanceLevel buckets a percentage score for feedback display.
func PerformanceLevel(pct float64) string {
	switch {
	case pct >= 90:
		return "excellent"
	case pct >= 80:
		return "good"
	case pct >= 70:
		return "satisfactory"
	case pct >= 60:
		return "needs_improvement"
	default:
		return "poor"
	}
}

// MistakeTags collects the tags of all incorrect results.
func (a Attempt) MistakeTags() []events.Tag {
	var tags []events.Tag
	for _, r := range a.Results {
		if r.MistakeTag != nil {
			tags = append(tags, *r.MistakeTag)
		}
	}
	return tags
}

// ListOpts filters attempt listings.
type ListOpts struct {
	QuizID    string
	StudentID string
	State     string
	Limit     int
	Offset    int
}
