package main

import (
	"context"
	"log"
	"net/http"
	"time"

	api "github.com/conceptcatch/conceptcatch/internal/api/http"
	"github.com/conceptcatch/conceptcatch/internal/attempt"
	auth "github.com/conceptcatch/conceptcatch/internal/auth/middleware"
	"github.com/conceptcatch/conceptcatch/internal/config"
	"github.com/conceptcatch/conceptcatch/internal/db"
	"github.com/conceptcatch/conceptcatch/internal/events"
	"github.com/conceptcatch/conceptcatch/internal/oracle"
	"github.com/conceptcatch/conceptcatch/internal/profile"
	"github.com/conceptcatch/conceptcatch/internal/quiz"
	"github.com/conceptcatch/conceptcatch/internal/scoring"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	quizzes := quiz.NewSQLStore(dbh)
	attempts := attempt.NewSQLStore(dbh)
	evlog := events.NewSQLLog(dbh)
	profiles := profile.NewSQLStore(dbh)

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthSecret, cfg.TokenTTL)
	users := auth.NewSQLUserStore(dbh)
	if cfg.SeedDemoUsers {
		if err := auth.SeedDemoUsers(ctx, users); err != nil {
			log.Fatalf("seed users: %v", err)
		}
	}

	// --- Oracle ---
	var gen oracle.ContentOracle
	if cfg.OpenAIAPIKey != "" {
		oa, err := oracle.NewOpenAIOracle(oracle.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		})
		if err != nil {
			log.Fatalf("oracle: %v", err)
		}
		gen = oracle.WithRetry(oa, oracle.DefaultRetryConfig())
	} else {
		log.Printf("OPENAI_API_KEY unset; using mock oracle (dev only)")
		gen = oracle.NewMock()
	}

	// --- Engines ---
	grader := scoring.NewGrader(gen)
	agg := profile.NewAggregator(evlog, profiles, cfg.SweepInterval)
	engine := attempt.NewEngine(attempts, quizzes, grader,
		attempt.WithResumePolicy(attempt.ResumePolicy(cfg.ResumePolicy)),
		attempt.WithStorageRetries(cfg.StorageRetries),
		attempt.WithSubmitNotifier(agg.Notify),
	)

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	go agg.Run(runCtx)

	r := api.NewRouter(api.Deps{
		Auth:          authSvc,
		Users:         users,
		Quizzes:       quizzes,
		Engine:        engine,
		Oracle:        gen,
		Profiles:      profiles,
		CORSOrigins:   cfg.CORSOrigins,
		OracleTimeout: cfg.OracleTimeout,
		ProfileTopN:   cfg.ProfileTopN,
		Ready:         func() error { return dbh.PingContext(context.Background()) },
	})

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
