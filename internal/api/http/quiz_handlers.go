package http

import (
	"log/slog"
	nethttp "net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/quizbuilder/internal/analytics"
	"github.com/mind-engage/quizbuilder/internal/auth"
	"github.com/mind-engage/quizbuilder/internal/quiz"
)

// GET /quizzes?search=&tags=a,b&sort=newest&page=1&page_size=10
func ListQuizzesHandler(store *quiz.SQLStore, log *slog.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		q := r.URL.Query()
		f := quiz.Filter{
			Search:   q.Get("search"),
			Sort:     quiz.Sort(strings.TrimSpace(q.Get("sort"))),
			Page:     parseIntDefault(q.Get("page"), 1),
			PageSize: parseIntDefault(q.Get("page_size"), quiz.DefaultPageSize),
		}
		// A zero Filter.PageSize means the default; an explicit page_size=0 does not.
		if f.PageSize < 1 {
			f.PageSize = 1
		}
		if tags := strings.TrimSpace(q.Get("tags")); tags != "" {
			f.Tags = strings.Split(tags, ",")
		}
		page, err := store.List(r.Context(), f, "")
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, page)
	}
}

func MyQuizzesHandler(store *quiz.SQLStore, log *slog.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		items, err := store.ListByInstructor(r.Context(), auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, items)
	}
}

func MyStatsHandler(stats *analytics.Service, log *slog.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		d, err := stats.DashboardStats(r.Context(), auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, d)
	}
}

// GetQuizHandler returns the full quiz to its owner and the student view of
// published quizzes to everyone else.
func GetQuizHandler(store *quiz.SQLStore, log *slog.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		q, err := store.Get(r.Context(), chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		if q.InstructorID == auth.SubjectFromContext(r.Context()) {
			writeJSON(w, nethttp.StatusOK, q)
			return
		}
		if !q.IsPublished {
			writeError(w, log, quiz.ErrNotFound)
			return
		}
		writeJSON(w, nethttp.StatusOK, q.StudentView())
	}
}

func CreateQuizHandler(store *quiz.SQLStore, log *slog.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var d quiz.Draft
		if err := decodeJSON(r, &d, false); err != nil {
			writeMsg(w, nethttp.StatusBadRequest, "bad json")
			return
		}
		q, err := store.Create(r.Context(), d, auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, nethttp.StatusCreated, q)
	}
}

func UpdateQuizHandler(store *quiz.SQLStore, log *slog.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var p quiz.Patch
		if err := decodeJSON(r, &p, false); err != nil {
			writeMsg(w, nethttp.StatusBadRequest, "bad json")
			return
		}
		q, err := store.Update(r.Context(), chi.URLParam(r, "quizID"), p, auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, q)
	}
}

func DeleteQuizHandler(store *quiz.SQLStore, log *slog.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if err := store.Delete(r.Context(), chi.URLParam(r, "quizID"), auth.SubjectFromContext(r.Context())); err != nil {
			writeError(w, log, err)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}

// PUT /quizzes/{quizID}/questions/{number}
func UpdateQuestionHandler(store *quiz.SQLStore, log *slog.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		n := parseIntDefault(chi.URLParam(r, "number"), 0)
		if n < 1 {
			writeMsg(w, nethttp.StatusBadRequest, "question number must be a positive integer")
			return
		}
		var p quiz.QuestionPatch
		if err := decodeJSON(r, &p, false); err != nil {
			writeMsg(w, nethttp.StatusBadRequest, "bad json")
			return
		}
		q, err := store.UpdateQuestion(r.Context(), chi.URLParam(r, "quizID"), n, auth.SubjectFromContext(r.Context()), p)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, q)
	}
}

func AddQuestionsHandler(store *quiz.SQLStore, log *slog.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req struct {
			Questions []quiz.QuestionDraft `json:"questions"`
		}
		if err := decodeJSON(r, &req, false); err != nil {
			writeMsg(w, nethttp.StatusBadRequest, "bad json")
			return
		}
		added, err := store.AddQuestions(r.Context(), chi.URLParam(r, "quizID"), auth.SubjectFromContext(r.Context()), req.Questions)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, nethttp.StatusCreated, added)
	}
}

// QuizAnalyticsHandler is owner-only: 404 when the quiz is absent, 403 when
// it belongs to someone else.
func QuizAnalyticsHandler(store *quiz.SQLStore, stats *analytics.Service, log *slog.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id := chi.URLParam(r, "quizID")
		q, err := store.Get(r.Context(), id)
		if err != nil {
			writeError(w, log, err)
			return
		}
		if q.InstructorID != auth.SubjectFromContext(r.Context()) {
			writeMsg(w, nethttp.StatusForbidden, "forbidden")
			return
		}
		st, err := stats.QuizAnalytics(r.Context(), id)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, st)
	}
}
