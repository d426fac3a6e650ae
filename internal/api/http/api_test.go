package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/classquiz/internal/attempt"
	authmw "github.com/mind-engage/classquiz/internal/auth/middleware"
	"github.com/mind-engage/classquiz/internal/db"
	"github.com/mind-engage/classquiz/internal/docstore"
	"github.com/mind-engage/classquiz/internal/grading"
	"github.com/mind-engage/classquiz/internal/profile"
	"github.com/mind-engage/classquiz/internal/quiz"
	"github.com/mind-engage/classquiz/internal/results"
	syncx "github.com/mind-engage/classquiz/internal/sync"
)

type testAPI struct {
	t   *testing.T
	srv *httptest.Server
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctx := context.Background()
	docs := docstore.NewInMemoryStore()
	profiles := profile.NewStore(docs)
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	for _, p := range []profile.Profile{
		{UID: "t1", Role: profile.RoleTeacher, Name: "Ms T"},
		{UID: "t2", Role: profile.RoleTeacher, Name: "Mr U"},
		{UID: "s7", Role: profile.RoleStudent, Name: "Ali", ClassKey: "bscs", SemesterKey: "fall", Roll: "7"},
	} {
		p.PasswordHash = string(hash)
		require.NoError(t, profiles.Put(ctx, p))
	}

	sqlDB, err := db.Open(ctx, db.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	journal := syncx.NewEventRepo(sqlDB, "test")

	svc := attempt.NewService(docs, attempt.NewGateway(docs, nil, time.Hour), journal, nil)
	r := chi.NewRouter()
	Mount(r, Deps{
		Quizzes:  quiz.NewCatalog(docs),
		Attempts: svc,
		Ledger:   grading.NewLedger(docs, journal, nil),
		Results:  results.NewReader(docs),
		Profiles: profiles,
		Auth:     authmw.NewAuthService("test-secret"),
		Events:   journal,
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testAPI{t: t, srv: srv}
}

func (a *testAPI) login(uid string) string {
	a.t.Helper()
	var out map[string]string
	code := a.do("", http.MethodPost, "/auth/login", map[string]string{"uid": uid, "password": "pw"}, &out)
	require.Equal(a.t, http.StatusOK, code)
	return out["access_token"]
}

func (a *testAPI) do(token, method, path string, body, out any) int {
	a.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, rd)
	require.NoError(a.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.srv.Client().Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(a.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

var twoQuestionQuiz = map[string]any{
	"classKey":    "bscs",
	"semesterKey": "fall",
	"quizNumber":  1,
	"status":      "published",
	"questions": []map[string]any{
		{"type": "mcq", "text": "2+2?", "marks": 1, "options": []string{"3", "4", "5", "6"}, "correct": 2},
		{"type": "theory", "text": "Explain.", "marks": 5},
	},
}

func TestQuizFlow(t *testing.T) {
	api := newTestAPI(t)
	teacher := api.login("t1")
	student := api.login("s7")

	require.Equal(t, http.StatusOK, api.do(teacher, http.MethodPut, "/quizzes", twoQuestionQuiz, nil))
	assert.Equal(t, http.StatusForbidden, api.do(student, http.MethodPut, "/quizzes", twoQuestionQuiz, nil))
	assert.Equal(t, http.StatusForbidden, api.do(api.login("t2"), http.MethodPut, "/quizzes", twoQuestionQuiz, nil), "not the owner")

	var view attempt.View
	require.Equal(t, http.StatusOK, api.do(student, http.MethodPost, "/attempts/1", nil, &view))
	assert.Equal(t, 2, view.Total)
	assert.Equal(t, "Quiz 1", view.Title)
	assert.Equal(t, []string{"3", "4", "5", "6"}, view.Question.Options)

	require.Equal(t, http.StatusOK, api.do(student, http.MethodPost, "/attempts/1/answer", map[string]int{"option": 2}, &view))
	assert.True(t, view.Locked)
	assert.Equal(t, http.StatusConflict, api.do(student, http.MethodPost, "/attempts/1/answer", map[string]int{"option": 3}, nil))
	assert.Equal(t, http.StatusBadRequest, api.do(student, http.MethodPost, "/attempts/1/navigate", map[string]int{"direction": 2}, nil))

	require.Equal(t, http.StatusOK, api.do(student, http.MethodPost, "/attempts/1/navigate", map[string]int{"direction": 1}, &view))
	assert.Equal(t, 1, view.Index)
	require.Equal(t, http.StatusOK, api.do(student, http.MethodPost, "/attempts/1/answer", map[string]string{"text": "Because."}, nil))

	// leaving saves progress; the next request resumes where the student was
	require.Equal(t, http.StatusNoContent, api.do(student, http.MethodPost, "/attempts/1/leave", nil, nil))
	require.Equal(t, http.StatusOK, api.do(student, http.MethodGet, "/attempts/1", nil, &view))
	assert.Equal(t, 1, view.Index)
	assert.Equal(t, "Because.", view.Answer.Text)

	var sub submitResp
	require.Equal(t, http.StatusOK, api.do(student, http.MethodPost, "/attempts/1/submit", nil, &sub))
	assert.Equal(t, "bscs_fall_quiz_1_roll_7", sub.AttemptKey)
	assert.Equal(t, 1.0, sub.MCQScore)
	assert.Equal(t, 5.0, sub.TheoryMax)
	assert.Equal(t, 1.0, sub.TotalScore)
	assert.False(t, sub.Graded)

	assert.Equal(t, http.StatusConflict, api.do(student, http.MethodPost, "/attempts/1/submit", nil, nil))
	assert.Equal(t, http.StatusConflict, api.do(student, http.MethodPost, "/attempts/1", nil, nil))

	var pending []resultRow
	require.Equal(t, http.StatusOK, api.do(teacher, http.MethodGet, "/grading/pending?classKey=bscs&semesterKey=fall", nil, &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, http.StatusForbidden, api.do(student, http.MethodGet, "/grading/pending?classKey=bscs&semesterKey=fall", nil, nil))
	assert.Equal(t, http.StatusForbidden, api.do(api.login("t2"), http.MethodPost, "/grading/"+sub.AttemptKey, map[string]any{"marks": []float64{5}}, nil))

	var graded resultRow
	require.Equal(t, http.StatusOK, api.do(teacher, http.MethodPost, "/grading/"+sub.AttemptKey, map[string]any{"marks": []float64{3}}, &graded))
	assert.Equal(t, 3.0, graded.TheoryScore)
	assert.Equal(t, 4.0, graded.TotalScore)
	assert.True(t, graded.Graded)

	var events []syncx.Event
	require.Equal(t, http.StatusOK, api.do(teacher, http.MethodGet, "/grading/"+sub.AttemptKey+"/events", nil, &events))
	require.Len(t, events, 2)
	assert.Equal(t, syncx.TypeAttemptSubmitted, events[0].Type)
	assert.Equal(t, syncx.TypeAttemptGraded, events[1].Type)
	assert.Equal(t, "test", events[1].SiteID)
	assert.Equal(t, http.StatusForbidden, api.do(student, http.MethodGet, "/grading/"+sub.AttemptKey+"/events", nil, nil))
	assert.Equal(t, http.StatusForbidden, api.do(api.login("t2"), http.MethodGet, "/grading/"+sub.AttemptKey+"/events", nil, nil))

	var class resultList
	require.Equal(t, http.StatusOK, api.do(teacher, http.MethodGet, "/results/class?classKey=bscs&semesterKey=fall&quiz=1", nil, &class))
	require.Len(t, class.Attempts, 1)
	assert.Equal(t, 0, class.Summary.Pending)
	assert.Equal(t, 4.0, class.Summary.Highest)
	require.Len(t, class.Questions, 1, "theory questions are not analysed")
	assert.Equal(t, results.QuestionStat{Index: 0, Text: "2+2?", Correct: 1, Total: 1, Rate: 100}, class.Questions[0])

	var everyQuiz resultList
	require.Equal(t, http.StatusOK, api.do(teacher, http.MethodGet, "/results/class?classKey=bscs&semesterKey=fall", nil, &everyQuiz))
	assert.Empty(t, everyQuiz.Questions)

	var mine resultList
	require.Equal(t, http.StatusOK, api.do(student, http.MethodGet, "/results/me", nil, &mine))
	require.Len(t, mine.Attempts, 1)
	assert.Equal(t, 4.0, mine.Attempts[0].TotalScore)

	var review results.Review
	require.Equal(t, http.StatusOK, api.do(student, http.MethodGet, "/results/me/1", nil, &review))
	require.Len(t, review.Items, 2)
	assert.True(t, *review.Items[0].IsCorrect)
	assert.Equal(t, "Because.", review.Items[1].Response)
}

func TestAttemptRejections(t *testing.T) {
	api := newTestAPI(t)
	teacher := api.login("t1")
	student := api.login("s7")

	assert.Equal(t, http.StatusUnauthorized, api.do("", http.MethodPost, "/attempts/1", nil, nil))
	assert.Equal(t, http.StatusNotFound, api.do(student, http.MethodPost, "/attempts/1", nil, nil), "no such quiz")

	draft := map[string]any{}
	for k, v := range twoQuestionQuiz {
		draft[k] = v
	}
	draft["status"] = "draft"
	require.Equal(t, http.StatusOK, api.do(teacher, http.MethodPut, "/quizzes", draft, nil))
	assert.Equal(t, http.StatusNotFound, api.do(student, http.MethodPost, "/attempts/1", nil, nil), "draft quiz")

	bad := map[string]any{}
	for k, v := range twoQuestionQuiz {
		bad[k] = v
	}
	bad["questions"] = []map[string]any{{"type": "mcq", "text": "?", "marks": 1, "options": []string{"a", "b"}, "correct": 1}}
	assert.Equal(t, http.StatusBadRequest, api.do(teacher, http.MethodPut, "/quizzes", bad, nil))

	assert.Equal(t, http.StatusForbidden, api.do(teacher, http.MethodPost, "/attempts/1", nil, nil), "teachers do not take quizzes")
	assert.Equal(t, http.StatusBadRequest, api.do(student, http.MethodPost, "/attempts/1/answer", map[string]any{}, nil))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusOf(attempt.ErrLocked))
	assert.Equal(t, http.StatusNotFound, statusOf(grading.ErrAttemptNotFound))
	assert.Equal(t, http.StatusBadRequest, statusOf(attempt.ErrDirection))
	assert.Equal(t, http.StatusForbidden, statusOf(errForbidden))
	assert.Equal(t, http.StatusNotFound, statusOf(quiz.ErrQuizNotFound))
	assert.Equal(t, http.StatusConflict, statusOf(quiz.ErrNotDraft))
	assert.Equal(t, http.StatusInternalServerError, statusOf(context.DeadlineExceeded))
}

func TestQuizManagement(t *testing.T) {
	api := newTestAPI(t)
	teacher := api.login("t1")
	student := api.login("s7")

	var saved map[string]string
	require.Equal(t, http.StatusOK, api.do(teacher, http.MethodPut, "/quizzes", twoQuestionQuiz, &saved))
	assert.Equal(t, "Quiz 1", saved["title"])

	draft := map[string]any{}
	for k, v := range twoQuestionQuiz {
		draft[k] = v
	}
	draft["quizNumber"] = 2
	draft["status"] = "draft"
	draft["title"] = "Loops"
	require.Equal(t, http.StatusOK, api.do(teacher, http.MethodPut, "/quizzes", draft, &saved))
	assert.Equal(t, "Loops", saved["title"])

	var sets []quiz.QuestionSet
	require.Equal(t, http.StatusOK, api.do(teacher, http.MethodGet, "/quizzes?classKey=bscs&semesterKey=fall&archived=false", nil, &sets))
	require.Len(t, sets, 2)
	assert.Equal(t, "Quiz 1", sets[0].Title)
	assert.Equal(t, "Loops", sets[1].Title)
	assert.Equal(t, http.StatusBadRequest, api.do(teacher, http.MethodGet, "/quizzes?classKey=bscs", nil, nil))
	assert.Equal(t, http.StatusBadRequest, api.do(teacher, http.MethodGet, "/quizzes?classKey=bscs&semesterKey=fall&archived=maybe", nil, nil))
	assert.Equal(t, http.StatusForbidden, api.do(student, http.MethodGet, "/quizzes?classKey=bscs&semesterKey=fall", nil, nil))

	// archived quizzes cannot be started until restored
	assert.Equal(t, http.StatusForbidden, api.do(api.login("t2"), http.MethodPost, "/quizzes/bscs_fall_quiz_1/archive", nil, nil))
	assert.Equal(t, http.StatusNotFound, api.do(teacher, http.MethodPost, "/quizzes/bscs_fall_quiz_9/archive", nil, nil))
	var set quiz.QuestionSet
	require.Equal(t, http.StatusOK, api.do(teacher, http.MethodPost, "/quizzes/bscs_fall_quiz_1/archive", nil, &set))
	assert.True(t, set.Archived)
	require.NotNil(t, set.ArchivedAt)
	assert.Equal(t, http.StatusNotFound, api.do(student, http.MethodPost, "/attempts/1", nil, nil))

	require.Equal(t, http.StatusOK, api.do(teacher, http.MethodGet, "/quizzes?classKey=bscs&semesterKey=fall&archived=true", nil, &sets))
	require.Len(t, sets, 1)
	assert.Equal(t, 1, sets[0].QuizNumber)

	// re-saving keeps the archive state
	require.Equal(t, http.StatusOK, api.do(teacher, http.MethodPut, "/quizzes", twoQuestionQuiz, nil))
	assert.Equal(t, http.StatusNotFound, api.do(student, http.MethodPost, "/attempts/1", nil, nil))

	require.Equal(t, http.StatusOK, api.do(teacher, http.MethodPost, "/quizzes/bscs_fall_quiz_1/restore", nil, &set))
	assert.False(t, set.Archived)
	require.NotNil(t, set.RestoredAt)
	assert.Equal(t, http.StatusOK, api.do(student, http.MethodPost, "/attempts/1", nil, nil))

	assert.Equal(t, http.StatusConflict, api.do(teacher, http.MethodDelete, "/quizzes/bscs_fall_quiz_1", nil, nil), "published")
	assert.Equal(t, http.StatusForbidden, api.do(api.login("t2"), http.MethodDelete, "/quizzes/bscs_fall_quiz_2", nil, nil))
	assert.Equal(t, http.StatusNoContent, api.do(teacher, http.MethodDelete, "/quizzes/bscs_fall_quiz_2", nil, nil))
	assert.Equal(t, http.StatusNotFound, api.do(teacher, http.MethodDelete, "/quizzes/bscs_fall_quiz_2", nil, nil))
}
