package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type Config struct {
	Mode     Mode
	HTTPAddr string

	DBDriver string // sqlite|postgres
	DBDSN    string

	AuthSecret    []byte
	TokenTTL      time.Duration
	SeedDemoUsers bool

	CORSOrigins []string

	// oracle
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	OracleTimeout time.Duration

	// attempt engine
	ResumePolicy   string // resume|reject
	StorageRetries int

	// profile engine
	ProfileTopN   int
	SweepInterval time.Duration
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeDev
	}
	return Config{
		Mode:     mode,
		HTTPAddr: envOr("HTTP_ADDR", ":8080"),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		AuthSecret:    []byte(envOr("AUTH_SECRET", "dev-insecure-secret")),
		TokenTTL:      envDuration("TOKEN_TTL", 12*time.Hour),
		SeedDemoUsers: envBool("SEED_DEMO_USERS", mode == ModeDev),

		CORSOrigins: csvOr("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   envOr("OPENAI_MODEL", ""),
		OpenAIBaseURL: envOr("OPENAI_BASE_URL", ""),
		OracleTimeout: envDuration("ORACLE_TIMEOUT", 60*time.Second),

		ResumePolicy:   envOr("ATTEMPT_RESUME_POLICY", "resume"),
		StorageRetries: envInt("STORAGE_RETRIES", 3),

		ProfileTopN:   envInt("PROFILE_TOP_N", 10),
		SweepInterval: envDuration("PROFILE_SWEEP_INTERVAL", 30*time.Second),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
func envDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
