package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	authmw "github.com/mind-engage/classquiz/internal/auth/middleware"
	"github.com/mind-engage/classquiz/internal/quiz"
	"github.com/mind-engage/classquiz/internal/rbac"
	"github.com/mind-engage/classquiz/internal/results"
)

// resultRow is an attempt as listed; answers and the question snapshot are
// only served through the review endpoints.
type resultRow struct {
	AttemptKey  string    `json:"attemptKey"`
	QuizNumber  int       `json:"quizNumber"`
	Roll        string    `json:"roll"`
	Name        string    `json:"name,omitempty"`
	MCQScore    float64   `json:"mcqScore"`
	TheoryScore float64   `json:"theoryScore"`
	TotalScore  float64   `json:"totalScore"`
	MaxScore    float64   `json:"maxScore"`
	Graded      bool      `json:"graded"`
	SubmittedAt time.Time `json:"submittedAt"`
}

type resultList struct {
	Attempts []resultRow     `json:"attempts"`
	Summary  results.Summary `json:"summary"`

	// Set for a single quiz only.
	Questions []results.QuestionStat `json:"questions,omitempty"`
}

func listOf(recs []quiz.AttemptRecord) resultList {
	rows := make([]resultRow, len(recs))
	for i, rec := range recs {
		rows[i] = resultRow{
			AttemptKey:  rec.Key(),
			QuizNumber:  rec.QuizNumber,
			Roll:        rec.Roll,
			Name:        rec.Name,
			MCQScore:    rec.MCQScore,
			TheoryScore: rec.TheoryScore,
			TotalScore:  rec.TotalScore,
			MaxScore:    rec.MaxScore,
			Graded:      rec.Graded,
			SubmittedAt: rec.SubmittedAt,
		}
	}
	return resultList{Attempts: rows, Summary: results.Summarize(recs)}
}

// classFilter reads classKey, semesterKey and quiz from the query. Teachers
// are scoped to their own quizzes; admins may pass teacherUid.
func classFilter(r *http.Request) (results.ClassFilter, bool) {
	q := r.URL.Query()
	f := results.ClassFilter{
		TeacherUID:  authmw.SubjectFromContext(r.Context()),
		ClassKey:    strings.TrimSpace(q.Get("classKey")),
		SemesterKey: strings.TrimSpace(q.Get("semesterKey")),
	}
	if t := strings.TrimSpace(q.Get("teacherUid")); t != "" && rbac.RoleFromContext(r.Context()) == rbac.RoleAdmin {
		f.TeacherUID = t
	}
	if n, err := strconv.Atoi(q.Get("quiz")); err == nil && n > 0 {
		f.QuizNumber = n
	}
	return f, f.ClassKey != "" && f.SemesterKey != ""
}

// GET /results/me
func MyResultsHandler(reader *results.Reader, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := reader.ForStudent(r.Context(), authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listOf(recs))
	}
}

// GET /results/me/{quizNumber}
func MyReviewHandler(reader *results.Reader, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, n, err := candidate(r)
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		rec, err := reader.Get(r.Context(), c.Ref(n).Key())
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		writeJSON(w, http.StatusOK, results.BuildReview(rec))
	}
}

// GET /results/class?classKey=...&semesterKey=...&quiz=3
func ClassResultsHandler(reader *results.Reader, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := classFilter(r)
		if !ok {
			http.Error(w, "classKey and semesterKey required", http.StatusBadRequest)
			return
		}
		recs, err := reader.ForClass(r.Context(), f)
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		out := listOf(recs)
		if f.QuizNumber > 0 {
			out.Questions = results.QuestionStats(recs)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /grading/pending?classKey=...&semesterKey=...
func PendingGradingHandler(reader *results.Reader, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := classFilter(r)
		if !ok {
			http.Error(w, "classKey and semesterKey required", http.StatusBadRequest)
			return
		}
		recs, err := reader.Pending(r.Context(), f)
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listOf(recs).Attempts)
	}
}

// GET /grading/{attemptKey}
func GradingReviewHandler(reader *results.Reader, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := ownedAttempt(r, reader, chi.URLParam(r, "attemptKey"))
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		writeJSON(w, http.StatusOK, results.BuildReview(rec))
	}
}
