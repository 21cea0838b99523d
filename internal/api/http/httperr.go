package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/conceptcatch/conceptcatch/internal/attempt"
	"github.com/conceptcatch/conceptcatch/internal/oracle"
	"github.com/conceptcatch/conceptcatch/internal/profile"
	"github.com/conceptcatch/conceptcatch/internal/quiz"
)

// writeErr maps domain errors onto HTTP statuses. Anything unrecognized is a
// 500 with a generic body so internal detail never leaks.
func writeErr(w http.ResponseWriter, err error) {
	var status int
	var msg string
	switch {
	case errors.Is(err, quiz.ErrNotFound), errors.Is(err, attempt.ErrNotFound),
		errors.Is(err, profile.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, quiz.ErrValidation), errors.Is(err, attempt.ErrUnknownQuestion):
		status, msg = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, quiz.ErrInvalidState), errors.Is(err, attempt.ErrInvalidState),
		errors.Is(err, attempt.ErrAlreadySubmitted), errors.Is(err, attempt.ErrAttemptInProgress):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, oracle.ErrGenerationTimeout):
		status, msg = http.StatusGatewayTimeout, "generation timed out"
	case errors.Is(err, oracle.ErrGenerationFailed), errors.Is(err, oracle.ErrJudgmentFailed):
		status, msg = http.StatusBadGateway, "generation backend failed"
	case errors.Is(err, attempt.ErrStorageUnavailable):
		status, msg = http.StatusServiceUnavailable, "storage unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		status, msg = http.StatusGatewayTimeout, "timed out"
	default:
		status, msg = http.StatusInternalServerError, "internal error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
