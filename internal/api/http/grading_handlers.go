package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	authmw "github.com/mind-engage/classquiz/internal/auth/middleware"
	"github.com/mind-engage/classquiz/internal/grading"
	"github.com/mind-engage/classquiz/internal/quiz"
	"github.com/mind-engage/classquiz/internal/rbac"
	"github.com/mind-engage/classquiz/internal/results"
	syncx "github.com/mind-engage/classquiz/internal/sync"
)

// EventLister reads the journal of one attempt.
type EventLister interface {
	ListByKey(ctx context.Context, key string) ([]syncx.Event, error)
}

type applyGradesReq struct {
	Marks []float64 `json:"marks"` // one per theory question, in order
}

// ownedAttempt loads an attempt the caller may grade: their own quiz's, or
// any for admins.
func ownedAttempt(r *http.Request, reader *results.Reader, key string) (quiz.AttemptRecord, error) {
	rec, err := reader.Get(r.Context(), key)
	if err != nil {
		return quiz.AttemptRecord{}, err
	}
	if !rbac.OwnerOrAdmin(r.Context(), authmw.SubjectFromContext(r.Context()), rec.TeacherUID) {
		return quiz.AttemptRecord{}, errForbidden
	}
	return rec, nil
}

// POST /grading/{attemptKey}  {"marks": [3, 4.5]}
func ApplyGradesHandler(reader *results.Reader, ledger *grading.Ledger, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(chi.URLParam(r, "attemptKey"))
		var req applyGradesReq
		if err := decode(r, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, err := ownedAttempt(r, reader, key); err != nil {
			writeError(w, log, r, err)
			return
		}
		rec, err := ledger.Grade(r.Context(), key, req.Marks, authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listOf([]quiz.AttemptRecord{rec}).Attempts[0])
	}
}

// GET /grading/{attemptKey}/events
func AttemptEventsHandler(reader *results.Reader, events EventLister, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(chi.URLParam(r, "attemptKey"))
		if _, err := ownedAttempt(r, reader, key); err != nil {
			writeError(w, log, r, err)
			return
		}
		out := []syncx.Event{}
		if events != nil {
			list, err := events.ListByKey(r.Context(), key)
			if err != nil {
				writeError(w, log, r, err)
				return
			}
			if list != nil {
				out = list
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}
