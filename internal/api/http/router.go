package http

import (
	"database/sql"
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/quizbuilder/internal/analytics"
	"github.com/mind-engage/quizbuilder/internal/assistant"
	"github.com/mind-engage/quizbuilder/internal/attempt"
	"github.com/mind-engage/quizbuilder/internal/auth"
	"github.com/mind-engage/quizbuilder/internal/events"
	"github.com/mind-engage/quizbuilder/internal/quiz"
	"github.com/mind-engage/quizbuilder/internal/rbac"
)

type Deps struct {
	DB        *sql.DB
	Auth      *auth.Service
	Quizzes   *quiz.SQLStore
	Attempts  *attempt.Manager
	Stats     *analytics.Service
	Assistant *assistant.Assistant // nil disables /chat
	Audit     *events.Repo         // defaults to the event log in DB
	Log       *slog.Logger
}

// Mount registers the JSON API on r. Attempt routes share the {id} segment;
// for /start it carries the quiz id.
func Mount(r chi.Router, d Deps) {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	audit := d.Audit
	if audit == nil {
		audit = events.NewRepo(d.DB)
	}

	r.Route("/auth", func(ar chi.Router) {
		ar.Post("/register", RegisterHandler(d.Auth, log))
		ar.Post("/login", LoginHandler(d.Auth, log))
		ar.Post("/refresh", RefreshHandler(d.Auth, log))
		ar.Post("/logout", LogoutHandler(d.Auth, log))
	})

	// JWT -> subject and stored role in context -> RBAC
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth.Tokens()), auth.AttachRoleFromDB(d.DB))

		pr.With(rbac.Require(rbac.UserProfile)).Get("/auth/me", MeHandler(d.Auth, log))
		pr.With(rbac.Require(rbac.UserProfile)).Get("/users/me", MeHandler(d.Auth, log))
		pr.With(rbac.Require(rbac.UserProfile)).Put("/users/me", UpdateMeHandler(d.Auth, log))

		pr.Route("/quizzes", func(qr chi.Router) {
			qr.With(rbac.Require(rbac.QuizView)).Get("/", ListQuizzesHandler(d.Quizzes, log))
			qr.With(rbac.Require(rbac.QuizCreate)).Post("/", CreateQuizHandler(d.Quizzes, log))
			qr.With(rbac.Require(rbac.QuizListOwn)).Get("/my", MyQuizzesHandler(d.Quizzes, log))
			qr.With(rbac.Require(rbac.StatsViewOwn)).Get("/my/stats", MyStatsHandler(d.Stats, log))

			qr.Route("/{quizID}", func(ir chi.Router) {
				ir.With(rbac.Require(rbac.QuizView)).Get("/", GetQuizHandler(d.Quizzes, log))
				ir.With(rbac.Require(rbac.QuizUpdate)).Put("/", UpdateQuizHandler(d.Quizzes, log))
				ir.With(rbac.Require(rbac.QuizDelete)).Delete("/", DeleteQuizHandler(d.Quizzes, log))
				ir.With(rbac.Require(rbac.QuizUpdate)).Post("/questions", AddQuestionsHandler(d.Quizzes, log))
				ir.With(rbac.Require(rbac.QuizUpdate)).Put("/questions/{number}", UpdateQuestionHandler(d.Quizzes, log))
				ir.With(rbac.Require(rbac.StatsViewOwn)).Get("/analytics", QuizAnalyticsHandler(d.Quizzes, d.Stats, log))
			})
		})

		pr.Route("/attempts", func(ar chi.Router) {
			ar.With(rbac.Require(rbac.AttemptView)).Get("/my", MyAttemptsHandler(d.Attempts, log))
			ar.With(rbac.Require(rbac.AttemptStart)).Post("/{id}/start", StartAttemptHandler(d.Attempts, log))
			ar.With(rbac.Require(rbac.AttemptSave)).Put("/{id}", SaveProgressHandler(d.Attempts, log))
			ar.With(rbac.Require(rbac.AttemptSubmit)).Post("/{id}/submit", SubmitAttemptHandler(d.Attempts, log))
			ar.With(rbac.Require(rbac.AttemptView)).Get("/{id}", GetAttemptHandler(d.Attempts, log))
		})

		pr.With(rbac.Require(rbac.ChatUse)).Post("/chat", ChatHandler(d.Assistant, d.Auth, log))
		pr.With(rbac.Require(rbac.ChatUse)).Get("/chat/activity", ChatActivityHandler(audit, log))
	})
}
