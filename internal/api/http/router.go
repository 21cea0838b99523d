package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/conceptcatch/conceptcatch/internal/attempt"
	auth "github.com/conceptcatch/conceptcatch/internal/auth/middleware"
	"github.com/conceptcatch/conceptcatch/internal/oracle"
	"github.com/conceptcatch/conceptcatch/internal/profile"
	"github.com/conceptcatch/conceptcatch/internal/quiz"
	"github.com/conceptcatch/conceptcatch/internal/rbac"
)

// Deps is everything the HTTP surface needs. Ready is consulted by /readyz;
// nil means always ready.
type Deps struct {
	Auth     *auth.AuthService
	Users    auth.UserStore
	Quizzes  quiz.Store
	Engine   *attempt.Engine
	Oracle   oracle.ContentOracle
	Profiles profile.Store

	CORSOrigins   []string
	OracleTimeout time.Duration
	ProfileTopN   int
	Ready         func() error
}

// NewRouter builds the full route tree: public auth + health endpoints, and
// the JWT-protected API with RBAC per route.
func NewRouter(d Deps) chi.Router {
	checker := rbac.NewChecker(nil)
	if d.OracleTimeout <= 0 {
		d.OracleTimeout = 60 * time.Second
	}
	if d.ProfileTopN <= 0 {
		d.ProfileTopN = 10
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	if len(d.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Post("/auth/login", auth.LoginHandler(d.Auth, d.Users))

	// Protected API (JWT → subject+role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))

		// Teacher flow
		pr.With(rbac.Require("quiz:create")).
			Post("/quizzes", GenerateQuizHandler(d.Quizzes, d.Oracle, d.Profiles, d.OracleTimeout))
		pr.With(rbac.Require("quiz:list-own")).
			Get("/quizzes", ListQuizzesHandler(d.Quizzes))
		pr.With(rbac.Require("quiz:view")).
			Get("/quizzes/{quizID}", GetQuizHandler(d.Quizzes, checker))
		pr.With(rbac.Require("quiz:edit")).
			Put("/quizzes/{quizID}", UpdateQuizHandler(d.Quizzes))
		pr.With(rbac.Require("quiz:publish")).
			Post("/quizzes/{quizID}/publish", PublishQuizHandler(d.Quizzes))

		// Student flow
		pr.With(rbac.Require("attempt:create")).
			Post("/quizzes/{quizID}/attempts", StartAttemptHandler(d.Engine))
		pr.With(rbac.Require("attempt:create")).
			Post("/attempts", StartAttemptHandler(d.Engine))
		pr.With(rbac.Require("attempt:save")).
			Post("/attempts/{attemptID}/responses", SaveResponseHandler(d.Engine))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", SubmitAttemptHandler(d.Engine))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", GetAttemptHandler(d.Engine, checker))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts", ListAttemptsHandler(d.Engine, checker))

		pr.With(rbac.RequireAny("profile:view-own", "profile:view-any")).
			Get("/students/{studentID}/profile", GetProfileHandler(d.Profiles, checker, d.ProfileTopN))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(); err != nil {
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	return r
}
