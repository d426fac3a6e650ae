package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mind-engage/classquiz/internal/attempt"
	authmw "github.com/mind-engage/classquiz/internal/auth/middleware"
)

var errNotEnrolled = errors.New("profile has no class, semester or roll")

// candidate resolves the logged-in student and the quiz number in the path.
func candidate(r *http.Request) (attempt.Candidate, int, error) {
	n, err := strconv.Atoi(chi.URLParam(r, "quizNumber"))
	if err != nil || n <= 0 {
		return attempt.Candidate{}, 0, fmt.Errorf("%w: bad quiz number", attempt.ErrQuizUnavailable)
	}
	p, ok := authmw.ProfileFromContext(r.Context())
	if !ok || p.ClassKey == "" || p.SemesterKey == "" || p.Roll == "" {
		return attempt.Candidate{}, 0, fmt.Errorf("%w: %w", errForbidden, errNotEnrolled)
	}
	return attempt.Candidate{
		UID:         p.UID,
		Name:        p.Name,
		ClassKey:    p.ClassKey,
		SemesterKey: p.SemesterKey,
		Roll:        p.Roll,
	}, n, nil
}

// liveSession finds the caller's session, resuming it from the saved
// snapshot when this process does not hold it (e.g. after a restart).
func liveSession(ctx context.Context, svc *attempt.Service, r *http.Request) (*attempt.Session, error) {
	c, n, err := candidate(r)
	if err != nil {
		return nil, err
	}
	if s, err := svc.Session(c.Ref(n).Key()); err == nil {
		return s, nil
	}
	return svc.Start(ctx, c, n)
}

// POST /attempts/{quizNumber}
func StartAttemptHandler(svc *attempt.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, n, err := candidate(r)
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		s, err := svc.Start(r.Context(), c, n)
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s.View())
	}
}

// GET /attempts/{quizNumber}
func GetAttemptHandler(svc *attempt.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := liveSession(r.Context(), svc, r)
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s.View())
	}
}

type answerReq struct {
	Option *int    `json:"option"`
	Text   *string `json:"text"`
}

// POST /attempts/{quizNumber}/answer  {"option": 2} | {"text": "..."}
func AnswerHandler(svc *attempt.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req answerReq
		if err := decode(r, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if (req.Option == nil) == (req.Text == nil) {
			http.Error(w, "exactly one of option or text required", http.StatusBadRequest)
			return
		}
		s, err := liveSession(r.Context(), svc, r)
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		if req.Option != nil {
			err = s.SelectOption(*req.Option)
		} else {
			err = s.EditText(*req.Text)
		}
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s.View())
	}
}

type navigateReq struct {
	Direction int `json:"direction" validate:"oneof=-1 1"`
}

// POST /attempts/{quizNumber}/navigate  {"direction": -1|1}
func NavigateHandler(svc *attempt.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req navigateReq
		if err := decode(r, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s, err := liveSession(r.Context(), svc, r)
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		if err := s.Navigate(req.Direction); err != nil {
			writeError(w, log, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s.View())
	}
}

// POST /attempts/{quizNumber}/leave
// Saves progress and frees the session; the next request resumes it.
func LeaveHandler(svc *attempt.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, n, err := candidate(r)
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		if err := svc.Release(r.Context(), c.Ref(n).Key()); err != nil && !errors.Is(err, attempt.ErrNoSession) {
			writeError(w, log, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// submitResp carries scores only; answer keys stay out of the response.
type submitResp struct {
	AttemptKey  string    `json:"attemptKey"`
	MCQScore    float64   `json:"mcqScore"`
	TheoryMax   float64   `json:"theoryMax"`
	TotalScore  float64   `json:"totalScore"`
	MaxScore    float64   `json:"maxScore"`
	Graded      bool      `json:"graded"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// POST /attempts/{quizNumber}/submit
func SubmitHandler(svc *attempt.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, n, err := candidate(r)
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		key := c.Ref(n).Key()
		if _, err := svc.Session(key); errors.Is(err, attempt.ErrNoSession) {
			// resume first so a restart between answering and submitting
			// does not lose the attempt
			if _, err := svc.Start(r.Context(), c, n); err != nil {
				writeError(w, log, r, err)
				return
			}
		}
		rec, err := svc.Submit(r.Context(), key)
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		writeJSON(w, http.StatusOK, submitResp{
			AttemptKey:  rec.Key(),
			MCQScore:    rec.MCQScore,
			TheoryMax:   rec.TheoryMax,
			TotalScore:  rec.TotalScore,
			MaxScore:    rec.MaxScore,
			Graded:      rec.Graded,
			SubmittedAt: rec.SubmittedAt,
		})
	}
}
