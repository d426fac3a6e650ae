package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	authmw "github.com/mind-engage/classquiz/internal/auth/middleware"
	"github.com/mind-engage/classquiz/internal/quiz"
	"github.com/mind-engage/classquiz/internal/rbac"
)

// ownedQuiz loads a quiz the caller may manage: their own, or any for admins.
func ownedQuiz(r *http.Request, catalog *quiz.Catalog, key string) (quiz.QuestionSet, error) {
	set, err := catalog.Get(r.Context(), key)
	if err != nil {
		return quiz.QuestionSet{}, err
	}
	if !rbac.OwnerOrAdmin(r.Context(), authmw.SubjectFromContext(r.Context()), set.TeacherUID) {
		return quiz.QuestionSet{}, errForbidden
	}
	return set, nil
}

// PUT /quizzes
// Creates or replaces a question set. A teacher may only overwrite sets they
// own; the caller becomes the owner.
func PutQuizHandler(catalog *quiz.Catalog, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var set quiz.QuestionSet
		if err := decode(r, &set); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if set.Status == "" {
			set.Status = quiz.StatusDraft
		}
		if err := set.Validate(); err != nil {
			writeError(w, log, r, err)
			return
		}

		existing, err := ownedQuiz(r, catalog, set.Key())
		switch {
		case err == nil:
			// Archiving is managed through its own endpoints.
			set.Archived = existing.Archived
			set.ArchivedAt = existing.ArchivedAt
			set.RestoredAt = existing.RestoredAt
		case !errors.Is(err, quiz.ErrQuizNotFound):
			writeError(w, log, r, err)
			return
		}
		if set.TeacherUID == "" || rbac.RoleFromContext(r.Context()) != rbac.RoleAdmin {
			set.TeacherUID = authmw.SubjectFromContext(r.Context())
		}

		saved, err := catalog.Save(r.Context(), set)
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		log.Info("quiz saved",
			zap.String("quiz", saved.Key()),
			zap.String("status", string(saved.Status)),
			zap.Int("questions", len(saved.Questions)))
		writeJSON(w, http.StatusOK, map[string]string{"key": saved.Key(), "title": saved.Title})
	}
}

// GET /quizzes?classKey=...&semesterKey=...&archived=true
func ListQuizzesHandler(catalog *quiz.Catalog, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := quiz.ListFilter{
			TeacherUID:  authmw.SubjectFromContext(r.Context()),
			ClassKey:    strings.TrimSpace(q.Get("classKey")),
			SemesterKey: strings.TrimSpace(q.Get("semesterKey")),
		}
		if f.ClassKey == "" || f.SemesterKey == "" {
			http.Error(w, "classKey and semesterKey required", http.StatusBadRequest)
			return
		}
		if rbac.RoleFromContext(r.Context()) == rbac.RoleAdmin {
			f.TeacherUID = strings.TrimSpace(q.Get("teacherUid"))
		}
		if v := q.Get("archived"); v != "" {
			archived, err := strconv.ParseBool(v)
			if err != nil {
				http.Error(w, "archived must be true or false", http.StatusBadRequest)
				return
			}
			f.Archived = &archived
		}

		sets, err := catalog.List(r.Context(), f)
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sets)
	}
}

// POST /quizzes/{quizKey}/archive and /restore
func ArchiveQuizHandler(catalog *quiz.Catalog, archived bool, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(chi.URLParam(r, "quizKey"))
		if _, err := ownedQuiz(r, catalog, key); err != nil {
			writeError(w, log, r, err)
			return
		}
		set, err := catalog.SetArchived(r.Context(), key, archived)
		if err != nil {
			writeError(w, log, r, err)
			return
		}
		log.Info("quiz archive state changed", zap.String("quiz", key), zap.Bool("archived", set.Archived))
		writeJSON(w, http.StatusOK, set)
	}
}

// DELETE /quizzes/{quizKey}
// Only drafts can be deleted; published quizzes are archived instead.
func DeleteQuizHandler(catalog *quiz.Catalog, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(chi.URLParam(r, "quizKey"))
		if _, err := ownedQuiz(r, catalog, key); err != nil {
			writeError(w, log, r, err)
			return
		}
		if err := catalog.DeleteDraft(r.Context(), key); err != nil {
			writeError(w, log, r, err)
			return
		}
		log.Info("draft quiz deleted", zap.String("quiz", key))
		w.WriteHeader(http.StatusNoContent)
	}
}
