package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	auth "github.com/conceptcatch/conceptcatch/internal/auth/middleware"
	"github.com/conceptcatch/conceptcatch/internal/oracle"
	"github.com/conceptcatch/conceptcatch/internal/profile"
	"github.com/conceptcatch/conceptcatch/internal/quiz"
	"github.com/conceptcatch/conceptcatch/internal/rbac"
)

// GenerateQuizHandler creates a draft quiz from generated content.
// Mode "mistakes" pulls the target student's weak areas from the profile
// store; the other modes take the source text from the request.
func GenerateQuizHandler(quizzes quiz.Store, gen oracle.ContentOracle, profiles profile.Store, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title        string `json:"title"`
			Topic        string `json:"topic"`
			Difficulty   string `json:"difficulty"`
			Type         string `json:"question_type"`
			Mode         string `json:"generation_mode"`
			Source       string `json:"source"`
			Count        int    `json:"count"`
			TimeLimitSec int    `json:"time_limit_sec"`
			StudentID    string `json:"student_id"` // mistakes mode
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.Mode == "" {
			req.Mode = string(quiz.ModePrompt)
		}
		if req.Difficulty == "" {
			req.Difficulty = string(quiz.DifficultyMedium)
		}
		spec := oracle.GenerationSpec{
			Mode:       quiz.GenerationMode(req.Mode),
			Source:     req.Source,
			Count:      req.Count,
			Type:       quiz.QuestionType(req.Type),
			Difficulty: quiz.Difficulty(req.Difficulty),
		}
		if spec.Mode == quiz.ModePrompt && spec.Source == "" {
			spec.Source = req.Topic
		}
		if spec.Mode == quiz.ModeMistakes && req.StudentID != "" {
			p, err := profiles.Get(r.Context(), req.StudentID, 10)
			if err != nil && !errors.Is(err, profile.ErrNotFound) {
				writeErr(w, err)
				return
			}
			spec.WeakAreas = p.WeakAreas()
		}
		if err := oracle.ValidateSpec(spec); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		qs, err := gen.Generate(ctx, spec)
		if err != nil {
			writeErr(w, err)
			return
		}

		z := quiz.Quiz{
			ID:           uuid.NewString(),
			OwnerID:      auth.SubjectFromContext(r.Context()),
			Title:        req.Title,
			Topic:        req.Topic,
			Difficulty:   spec.Difficulty,
			Type:         spec.Type,
			Mode:         spec.Mode,
			State:        quiz.StateDraft,
			Version:      1,
			TimeLimitSec: req.TimeLimitSec,
			Questions:    qs,
		}
		if z.Title == "" {
			z.Title = req.Topic
		}
		if err := quizzes.Put(r.Context(), z); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, z)
	}
}

// GetQuizHandler serves a quiz. Answer keys are included only for the owner
// or roles holding quiz:view-full; students always get the stripped view.
func GetQuizHandler(quizzes quiz.Store, checker *rbac.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		z, err := quizzes.Get(r.Context(), chi.URLParam(r, "quizID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		sub := auth.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())
		if z.OwnerID == sub || checker.Has(role, "quiz:view-full") {
			writeJSON(w, http.StatusOK, z)
			return
		}
		if z.State != quiz.StatePublished {
			writeErr(w, quiz.ErrNotFound)
			return
		}
		writeJSON(w, http.StatusOK, z.StripAnswers())
	}
}

// UpdateQuizHandler replaces the question set. Editing a published quiz bumps
// its version; attempts in flight keep their snapshot.
func UpdateQuizHandler(quizzes quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "quizID")
		z, err := quizzes.Get(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		if z.OwnerID != auth.SubjectFromContext(r.Context()) &&
			rbac.RoleFromContext(r.Context()) != "admin" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var req struct {
			Questions []quiz.Question `json:"questions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		out, err := quizzes.ReplaceQuestions(r.Context(), id, req.Questions)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// PublishQuizHandler flips draft -> published. Irreversible.
func PublishQuizHandler(quizzes quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "quizID")
		z, err := quizzes.Get(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		if z.OwnerID != auth.SubjectFromContext(r.Context()) &&
			rbac.RoleFromContext(r.Context()) != "admin" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		out, err := quizzes.Publish(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// ListQuizzesHandler returns the caller's own quizzes, newest first.
func ListQuizzesHandler(quizzes quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := quizzes.ListByOwner(r.Context(), auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeErr(w, err)
			return
		}
		if out == nil {
			out = []quiz.Summary{}
		}
		writeJSON(w, http.StatusOK, out)
	}
}
