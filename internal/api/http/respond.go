package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mind-engage/classquiz/internal/attempt"
	"github.com/mind-engage/classquiz/internal/docstore"
	"github.com/mind-engage/classquiz/internal/grading"
	"github.com/mind-engage/classquiz/internal/profile"
	"github.com/mind-engage/classquiz/internal/quiz"
)

var validate = validator.New()

var errForbidden = errors.New("forbidden")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into v and runs its validate tags.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("bad json: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, attempt.ErrAlreadyAttempted),
		errors.Is(err, attempt.ErrSubmitted),
		errors.Is(err, attempt.ErrLocked),
		errors.Is(err, attempt.ErrAlreadyAnswered),
		errors.Is(err, quiz.ErrNotDraft):
		return http.StatusConflict
	case errors.Is(err, attempt.ErrQuizUnavailable),
		errors.Is(err, attempt.ErrNoSession),
		errors.Is(err, grading.ErrAttemptNotFound),
		errors.Is(err, profile.ErrNotFound),
		errors.Is(err, quiz.ErrQuizNotFound),
		errors.Is(err, docstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, attempt.ErrWrongType),
		errors.Is(err, attempt.ErrOptionRange),
		errors.Is(err, attempt.ErrOutOfRange),
		errors.Is(err, attempt.ErrDirection),
		errors.Is(err, quiz.ErrInvalidSet),
		errors.Is(err, quiz.ErrInvalidQuestion),
		errors.Is(err, profile.ErrInvalidProfile):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps domain errors to a status. Internal errors are logged and
// their text is not sent to the client.
func writeError(w http.ResponseWriter, log *zap.Logger, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "internal error", status)
		return
	}
	http.Error(w, err.Error(), status)
}
