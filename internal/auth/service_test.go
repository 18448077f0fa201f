package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/quizbuilder/internal/db/dbtest"
	"github.com/mind-engage/quizbuilder/internal/rbac"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	h := dbtest.Open(t)
	return NewService(h, NewTokenService("test-secret", 30*time.Minute), 7*24*time.Hour,
		WithBcryptCost(bcrypt.MinCost))
}

func register(t *testing.T, s *Service, email, role string) *TokenPair {
	t.Helper()
	tp, err := s.Register(context.Background(), RegisterRequest{Email: email, Password: "s3cret!pass", Role: role})
	require.NoError(t, err)
	return tp
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	tp := register(t, s, "Prof@Example.com", RoleInstructor)
	assert.Equal(t, "bearer", tp.TokenType)
	assert.Equal(t, "prof@example.com", tp.User.Email)
	assert.Equal(t, ThemeBYU, tp.User.ThemePreference)

	claims, err := s.Tokens().Parse(tp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, tp.User.ID, claims.Sub)
	assert.Equal(t, RoleInstructor, claims.Role)

	_, err = s.Register(ctx, RegisterRequest{Email: "prof@example.com", Password: "s3cret!pass", Role: RoleStudent})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = s.Login(ctx, "prof@example.com", "wrong-pass1!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Login(ctx, "nobody@example.com", "s3cret!pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	lp, err := s.Login(ctx, "PROF@example.com", "s3cret!pass")
	require.NoError(t, err)
	assert.NotEqual(t, tp.RefreshToken, lp.RefreshToken)
}

func TestRegisterValidation(t *testing.T) {
	s := newTestService(t)
	cases := map[string]RegisterRequest{
		"Password must be at least 8 characters long":        {Email: "a@b.co", Password: "a1!", Role: RoleStudent},
		"Password must contain at least 1 number":            {Email: "a@b.co", Password: "abcdefgh!", Role: RoleStudent},
		"Password must contain at least 1 special character": {Email: "a@b.co", Password: "abcdefgh1", Role: RoleStudent},
		"email: not a valid email address":                   {Email: "nope", Password: "abcdefg1!", Role: RoleStudent},
		"role: must be one of instructor, student":           {Email: "a@b.co", Password: "abcdefg1!", Role: "admin"},
	}
	for want, req := range cases {
		_, err := s.Register(context.Background(), req)
		var ve *ValidationError
		require.True(t, errors.As(err, &ve), want)
		assert.Equal(t, want, ve.Msg)
	}
}

func TestRefreshRotatesAndLogoutRevokes(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	tp := register(t, s, "stu@example.com", RoleStudent)

	next, err := s.Refresh(ctx, tp.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, next.AccessToken)

	_, err = s.Refresh(ctx, tp.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, s.Logout(ctx, next.RefreshToken))
	_, err = s.Refresh(ctx, next.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshExpired(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	tp := register(t, s, "stu@example.com", RoleStudent)

	s.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	_, err := s.Refresh(ctx, tp.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestUpdateProfile(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	tp := register(t, s, "stu@example.com", RoleStudent)

	name, theme := "Stu", ThemeUtah
	u, err := s.UpdateProfile(ctx, tp.User.ID, ProfilePatch{DisplayName: &name, ThemePreference: &theme})
	require.NoError(t, err)
	assert.Equal(t, "Stu", *u.DisplayName)
	assert.Equal(t, ThemeUtah, u.ThemePreference)

	bad := "purple"
	_, err = s.UpdateProfile(ctx, tp.User.ID, ProfilePatch{ThemePreference: &bad})
	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))

	_, err = s.UpdateProfile(ctx, "missing", ProfilePatch{DisplayName: &name})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestParseRejectsForeignTokens(t *testing.T) {
	a := NewTokenService("one", time.Minute)
	b := NewTokenService("two", time.Minute)
	tok, err := a.IssueAccess("u1", RoleStudent)
	require.NoError(t, err)

	_, err = b.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	a.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = a.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	s := newTestService(t)
	tp := register(t, s, "prof@example.com", RoleInstructor)

	var gotSub, gotRole string
	h := JWTMiddleware(s.Tokens())(AttachRoleFromDB(s.db)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSub = SubjectFromContext(r.Context())
		gotRole = rbac.RoleFromContext(r.Context())
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tp.AccessToken)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tp.User.ID, gotSub)
	assert.Equal(t, RoleInstructor, gotRole)

	ghost, err := s.Tokens().IssueAccess("ghost", RoleInstructor)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+ghost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
