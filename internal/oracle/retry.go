package oracle

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/conceptcatch/conceptcatch/internal/quiz"
)

// RetryConfig controls the backoff decorator.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialWait: 500 * time.Millisecond, MaxWait: 8 * time.Second, Multiplier: 2}
}

type retryOracle struct {
	inner ContentOracle
	cfg   RetryConfig
}

// WithRetry wraps an oracle with exponential backoff on transient backend
// errors (rate limits, 5xx, network). Contract violations are not retried.
func WithRetry(o ContentOracle, cfg RetryConfig) ContentOracle {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultRetryConfig()
	}
	return &retryOracle{inner: o, cfg: cfg}
}

func (r *retryOracle) Generate(ctx context.Context, spec GenerationSpec) ([]quiz.Question, error) {
	var qs []quiz.Question
	err := r.do(ctx, func() error {
		var err error
		qs, err = r.inner.Generate(ctx, spec)
		return err
	})
	return qs, err
}

func (r *retryOracle) Judge(ctx context.Context, req JudgeRequest) (Judgment, error) {
	var j Judgment
	err := r.do(ctx, func() error {
		var err error
		j, err = r.inner.Judge(ctx, req)
		return err
	})
	return j, err
}

func (r *retryOracle) do(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !transient(err) || attempt == r.cfg.MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.backoff(attempt)):
		}
	}
	return lastErr
}

func (r *retryOracle) backoff(attempt int) time.Duration {
	wait := float64(r.cfg.InitialWait) * math.Pow(r.cfg.Multiplier, float64(attempt))
	if wait > float64(r.cfg.MaxWait) {
		wait = float64(r.cfg.MaxWait)
	}
	// ±20% jitter
	wait += wait * 0.2 * (2*rand.Float64() - 1)
	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}
