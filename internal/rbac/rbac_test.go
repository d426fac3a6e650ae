package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckerDefaults(t *testing.T) {
	c := NewChecker(nil)
	assert.True(t, c.Has("student", PermAttemptTake))
	assert.False(t, c.Has("student", PermGradingWrite))
	assert.True(t, c.Has("teacher", PermGradingWrite), "wildcard suffix")
	assert.True(t, c.Has("teacher", PermGradingRead))
	assert.False(t, c.Has("teacher", PermProfilesWrite))
	assert.True(t, c.Has("admin", PermProfilesWrite))
	assert.False(t, c.Has("guest", PermResultsOwn))
	assert.True(t, c.Any("student", PermQuizWrite, PermResultsOwn))
}

func TestCustomPolicy(t *testing.T) {
	c := NewChecker(map[string][]string{"ta": {"grading:read", "results:*"}})
	assert.True(t, c.Has("ta", PermGradingRead))
	assert.False(t, c.Has("ta", PermGradingWrite))
	assert.True(t, c.Has("ta", PermResultsClass))
	assert.False(t, c.Has("teacher", PermQuizWrite), "policy replaces the defaults")
}

func TestOwnerOrAdmin(t *testing.T) {
	teacher := WithRole(context.Background(), RoleTeacher)
	admin := WithRole(context.Background(), RoleAdmin)
	assert.True(t, OwnerOrAdmin(teacher, "t1", "t1"))
	assert.False(t, OwnerOrAdmin(teacher, "t2", "t1"))
	assert.False(t, OwnerOrAdmin(teacher, "", ""))
	assert.True(t, OwnerOrAdmin(admin, "root", "t1"))
}

func TestRequire(t *testing.T) {
	h := Require(PermQuizWrite)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for role, want := range map[string]int{
		"teacher": http.StatusNoContent,
		"student": http.StatusForbidden,
		"":        http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodPut, "/quizzes", nil)
		req = req.WithContext(WithRole(context.Background(), role))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "role %q", role)
	}
}
