package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/quizbuilder/internal/db"
)

const (
	RoleInstructor = "instructor"
	RoleStudent    = "student"

	ThemeBYU  = "byu"
	ThemeUtah = "utah"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
)

type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Role            string    `json:"role"`
	DisplayName     *string   `json:"display_name"`
	ThemePreference string    `json:"theme_preference"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type RegisterRequest struct {
	Email       string  `json:"email" validate:"required,email"`
	Password    string  `json:"password" validate:"required,password"`
	Role        string  `json:"role" validate:"required,oneof=instructor student"`
	DisplayName *string `json:"display_name" validate:"omitempty,max=100"`
}

type ProfilePatch struct {
	DisplayName     *string `json:"display_name" validate:"omitempty,max=100"`
	ThemePreference *string `json:"theme_preference" validate:"omitempty,oneof=byu utah"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	User         *User  `json:"user,omitempty"`
}

// Service owns users and refresh tokens.
type Service struct {
	db         *sql.DB
	tokens     *TokenService
	refreshTTL time.Duration
	cost       int
	now        func() time.Time
	log        *slog.Logger
	validate   *validator.Validate
}

type Option func(*Service)

func WithBcryptCost(c int) Option           { return func(s *Service) { s.cost = c } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }
func WithLogger(l *slog.Logger) Option      { return func(s *Service) { s.log = l } }

func NewService(h *sql.DB, tokens *TokenService, refreshTTL time.Duration, opts ...Option) *Service {
	s := &Service{
		db:         h,
		tokens:     tokens,
		refreshTTL: refreshTTL,
		cost:       12,
		now:        time.Now,
		log:        slog.Default(),
		validate:   newValidator(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Tokens() *TokenService { return s.tokens }

// Register creates the user and signs them in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*TokenPair, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.check(req); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	now := s.now().UnixNano()
	err = db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE email = $1`, req.Email).Scan(&one)
		if err == nil {
			return ErrEmailTaken
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO users (id,email,password_hash,role,display_name,theme_preference,created_at,updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			id, req.Email, string(hash), req.Role, req.DisplayName, ThemeBYU, now, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("user registered", "user_id", id, "role", req.Role)
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, u)
}

func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	var (
		id   string
		hash string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email))).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, u)
}

// Refresh exchanges a live refresh token for a new pair. The old refresh
// token stops working.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var userID string
	err := db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		h := hashToken(refreshToken)
		err := tx.QueryRowContext(ctx, `SELECT user_id FROM refresh_tokens WHERE token_hash = $1 AND expires_at > $2`,
			h, s.now().UnixNano()).Scan(&userID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidToken
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, h)
		return err
	})
	if err != nil {
		return nil, err
	}
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, u)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, hashToken(refreshToken))
	return err
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	var (
		u                User
		name             sql.NullString
		created, updated int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, email, role, display_name, theme_preference, created_at, updated_at
		FROM users WHERE id = $1`, id).Scan(&u.ID, &u.Email, &u.Role, &name, &u.ThemePreference, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if name.Valid {
		u.DisplayName = &name.String
	}
	u.CreatedAt = time.Unix(0, created).UTC()
	u.UpdatedAt = time.Unix(0, updated).UTC()
	return &u, nil
}

func (s *Service) UpdateProfile(ctx context.Context, id string, p ProfilePatch) (*User, error) {
	if err := s.check(p); err != nil {
		return nil, err
	}
	sets := []string{"updated_at = $1"}
	args := []any{s.now().UnixNano()}
	if p.DisplayName != nil {
		args = append(args, *p.DisplayName)
		sets = append(sets, fmt.Sprintf("display_name = $%d", len(args)))
	}
	if p.ThemePreference != nil {
		args = append(args, *p.ThemePreference)
		sets = append(sets, fmt.Sprintf("theme_preference = $%d", len(args)))
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args)), args...)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrUserNotFound
	}
	return s.GetUser(ctx, id)
}

func (s *Service) issue(ctx context.Context, u *User) (*TokenPair, error) {
	access, err := s.tokens.IssueAccess(u.ID, u.Role)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, hash, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	now := s.now()
	if _, err := s.db.ExecContext(ctx, `INSERT INTO refresh_tokens (id,user_id,token_hash,expires_at,created_at) VALUES ($1,$2,$3,$4,$5)`,
		uuid.NewString(), u.ID, hash, now.Add(s.refreshTTL).UnixNano(), now.UnixNano()); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer", User: u}, nil
}

func (s *Service) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Msg: err.Error()}
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "password":
		return &ValidationError{Msg: passwordProblem(fmt.Sprint(fe.Value()))}
	case "email":
		return &ValidationError{Msg: "email: not a valid email address"}
	case "oneof":
		return &ValidationError{Msg: fmt.Sprintf("%s: must be one of %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))}
	case "required":
		return &ValidationError{Msg: fe.Field() + ": is required"}
	default:
		return &ValidationError{Msg: fmt.Sprintf("%s: failed %s check", fe.Field(), fe.Tag())}
	}
}

const specialChars = `!@#$%^&*(),.?":{}|<>`

// passwordProblem returns "" for an acceptable password.
func passwordProblem(p string) string {
	switch {
	case len(p) < 8:
		return "Password must be at least 8 characters long"
	case !strings.ContainsAny(p, "0123456789"):
		return "Password must contain at least 1 number"
	case !strings.ContainsAny(p, specialChars):
		return "Password must contain at least 1 special character"
	}
	return ""
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return passwordProblem(fl.Field().String()) == ""
	})
	return v
}
