package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicy(t *testing.T) {
	p := NewPolicy(nil)

	assert.True(t, p.Allows("instructor", QuizCreate))
	assert.True(t, p.Allows("instructor", ChatUse))
	assert.True(t, p.Allows("instructor", AttemptSubmit))
	assert.True(t, p.Allows("student", AttemptSubmit))
	assert.True(t, p.Allows("student", QuizView))
	assert.False(t, p.Allows("student", QuizCreate))
	assert.False(t, p.Allows("student", ChatUse))
	assert.False(t, p.Allows("student", StatsViewOwn))
	assert.False(t, p.Allows("nobody", QuizView))
	assert.False(t, p.Allows("", QuizView))
}

func TestWildcardGrants(t *testing.T) {
	p := NewPolicy(map[string][]string{
		"admin":  {"*"},
		"editor": {"quiz:*"},
		"viewer": {"quiz:view"},
	})

	assert.True(t, p.Allows("admin", "anything"))
	assert.True(t, p.Allows("editor", "quiz:delete_own"))
	assert.False(t, p.Allows("editor", "chat:use"))
	assert.False(t, p.Allows("viewer", "quiz:viewer"))
}

func TestRoleContext(t *testing.T) {
	assert.Equal(t, "", RoleFromContext(context.Background()))
	assert.Equal(t, "student", RoleFromContext(WithRole(context.Background(), "student")))
}

func TestRequire(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Require(ChatUse)(ok)

	for role, want := range map[string]int{
		"instructor": http.StatusNoContent,
		"student":    http.StatusForbidden,
		"":           http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodPost, "/chat", nil)
		req = req.WithContext(WithRole(req.Context(), role))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
		if want == http.StatusForbidden {
			assert.JSONEq(t, `{"error":"forbidden"}`, rec.Body.String())
		}
	}
}
