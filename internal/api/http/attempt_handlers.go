package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/conceptcatch/conceptcatch/internal/attempt"
	auth "github.com/conceptcatch/conceptcatch/internal/auth/middleware"
	"github.com/conceptcatch/conceptcatch/internal/quiz"
	"github.com/conceptcatch/conceptcatch/internal/rbac"
)

func stripSnapshot(a attempt.Attempt) []quiz.Question {
	return quiz.StripAnswers(a.Snapshot)
}

// StartAttemptHandler begins (or resumes) an attempt on a published quiz for
// the authenticated student. The quiz id comes from the route when mounted
// under /quizzes/{quizID}/attempts, else from the request body.
func StartAttemptHandler(engine *attempt.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID := chi.URLParam(r, "quizID")
		if quizID == "" {
			var req struct {
				QuizID string `json:"quiz_id"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "bad json", http.StatusBadRequest)
				return
			}
			quizID = req.QuizID
		}
		if quizID == "" {
			http.Error(w, "quiz_id required", http.StatusBadRequest)
			return
		}
		a, err := engine.Start(r.Context(), quizID, auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, attemptView(a))
	}
}

// SaveResponseHandler upserts one answer on an in-progress attempt.
func SaveResponseHandler(engine *attempt.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		var req struct {
			QuestionID string `json:"question_id"`
			Answer     string `json:"answer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.QuestionID == "" {
			http.Error(w, "question_id required", http.StatusBadRequest)
			return
		}
		a, err := engine.Get(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		if a.StudentID != auth.SubjectFromContext(r.Context()) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		a, err = engine.SaveResponse(r.Context(), id, req.QuestionID, req.Answer)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, attemptView(a))
	}
}

// SubmitAttemptHandler finalizes an attempt with an optional last response
// batch. The full scored breakdown comes back in the response.
func SubmitAttemptHandler(engine *attempt.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		var req struct {
			Responses    map[string]string `json:"responses"`
			TimeTakenSec int               `json:"time_taken_sec"`
		}
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "bad json", http.StatusBadRequest)
				return
			}
		}
		a, err := engine.Get(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		if a.StudentID != auth.SubjectFromContext(r.Context()) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		a, err = engine.Submit(r.Context(), id, req.Responses, req.TimeTakenSec)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resultView(a))
	}
}

// GetAttemptHandler serves one attempt: the owning student, or any role with
// attempt:view-all.
func GetAttemptHandler(engine *attempt.Engine, checker *rbac.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := engine.Get(r.Context(), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		sub := auth.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())
		if a.StudentID != sub && !checker.Has(role, "attempt:view-all") {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if a.State.Terminal() {
			writeJSON(w, http.StatusOK, resultView(a))
			return
		}
		writeJSON(w, http.StatusOK, attemptView(a))
	}
}

// ListAttemptsHandler lists attempts. Students are scoped to their own;
// attempt:view-all may filter by any student or quiz.
func ListAttemptsHandler(engine *attempt.Engine, checker *rbac.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())
		opts := attempt.ListOpts{
			QuizID:    r.URL.Query().Get("quiz_id"),
			StudentID: r.URL.Query().Get("student_id"),
			State:     r.URL.Query().Get("state"),
		}
		opts.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
		opts.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
		if !checker.Has(role, "attempt:view-all") {
			opts.StudentID = sub
		}
		out, err := engine.List(r.Context(), opts)
		if err != nil {
			writeErr(w, err)
			return
		}
		views := make([]map[string]any, 0, len(out))
		for _, a := range out {
			views = append(views, summaryView(a))
		}
		writeJSON(w, http.StatusOK, views)
	}
}

// attemptView is the in-flight shape: the snapshot is served with answer
// keys stripped, and no breakdown exists yet.
func attemptView(a attempt.Attempt) map[string]any {
	return map[string]any{
		"id":             a.ID,
		"quiz_id":        a.QuizID,
		"quiz_version":   a.QuizVersion,
		"student_id":     a.StudentID,
		"state":          a.State,
		"questions":      stripSnapshot(a),
		"time_limit_sec": a.TimeLimitSec,
		"responses":      a.Responses,
		"started_at":     a.StartedAt,
	}
}

// resultView is the terminal shape: score, percentage and the per-question
// breakdown including answer keys and mistake tags.
func resultView(a attempt.Attempt) map[string]any {
	return map[string]any{
		"id":                a.ID,
		"quiz_id":           a.QuizID,
		"quiz_version":      a.QuizVersion,
		"student_id":        a.StudentID,
		"state":             a.State,
		"score":             a.Score,
		"max_score":         a.MaxScore,
		"percentage":        a.Percentage,
		"performance_level": attempt.PerformanceLevel(a.Percentage),
		"results":           a.Results,
		"started_at":        a.StartedAt,
		"submitted_at":      a.SubmittedAt,
		"time_taken_sec":    a.TimeTakenSec,
	}
}

func summaryView(a attempt.Attempt) map[string]any {
	return map[string]any{
		"id":           a.ID,
		"quiz_id":      a.QuizID,
		"student_id":   a.StudentID,
		"state":        a.State,
		"percentage":   a.Percentage,
		"started_at":   a.StartedAt,
		"submitted_at": a.SubmittedAt,
	}
}
