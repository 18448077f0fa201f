package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/pflag"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/quizbuilder/internal/analytics"
	api "github.com/mind-engage/quizbuilder/internal/api/http"
	"github.com/mind-engage/quizbuilder/internal/assistant"
	"github.com/mind-engage/quizbuilder/internal/attempt"
	"github.com/mind-engage/quizbuilder/internal/auth"
	"github.com/mind-engage/quizbuilder/internal/config"
	"github.com/mind-engage/quizbuilder/internal/db"
	"github.com/mind-engage/quizbuilder/internal/events"
	"github.com/mind-engage/quizbuilder/internal/logging"
	"github.com/mind-engage/quizbuilder/internal/quiz"
	"github.com/mind-engage/quizbuilder/internal/wiki"
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file to load before reading the environment")
	addr := pflag.String("addr", "", "listen address (overrides HTTP_ADDR)")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}
	log := logging.New(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer dbh.Close()

	// --- Services ---
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL)
	users := auth.NewService(dbh, tokens, cfg.RefreshTokenTTL, auth.WithLogger(log))
	store := quiz.NewSQLStore(dbh)
	stats := analytics.NewService(dbh)
	attempts := attempt.NewManager(dbh, attempt.WithLogger(log))

	audit := events.NewRepo(dbh)

	deps := api.Deps{DB: dbh, Auth: users, Quizzes: store, Attempts: attempts, Stats: stats, Audit: audit, Log: log}
	if cfg.OpenAIAPIKey != "" {
		llm, err := openai.New(openai.WithModel(cfg.OpenAIModel), openai.WithToken(cfg.OpenAIAPIKey))
		if err != nil {
			return fmt.Errorf("llm client: %w", err)
		}
		var ref assistant.Reference
		if cfg.WikiEnabled {
			ref = wiki.New(cfg.WikiBaseURL, cfg.WikiTimeout, wiki.WithLogger(log))
		}
		deps.Assistant = assistant.New(llm, store, stats, assistant.NewGenerator(llm, ref, cfg.LLMTimeout),
			assistant.WithMaxRounds(cfg.MaxToolRounds),
			assistant.WithTimeout(cfg.LLMTimeout),
			assistant.WithAuditLog(audit),
			assistant.WithLogger(log))
	} else {
		log.Warn("OPENAI_API_KEY not set; chat disabled")
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Timeout(requestBudget(cfg)))

	r.Route("/api", func(ar chi.Router) { api.Mount(ar, deps) })
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// requestBudget covers the worst case of a full tool loop.
func requestBudget(cfg config.Config) time.Duration {
	return max(30*time.Second, time.Duration(cfg.MaxToolRounds+1)*cfg.LLMTimeout)
}
