package http

import (
	"log/slog"
	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/quizbuilder/internal/attempt"
	"github.com/mind-engage/quizbuilder/internal/auth"
)

type answersRequest struct {
	Answers []attempt.Answer `json:"answers"`
}

// POST /attempts/{id}/start takes a quiz id and resumes an open attempt when there is one.
func StartAttemptHandler(m *attempt.Manager, log *slog.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		a, err := m.Start(r.Context(), chi.URLParam(r, "id"), auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, a)
	}
}

func SaveProgressHandler(m *attempt.Manager, log *slog.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req answersRequest
		if err := decodeJSON(r, &req, false); err != nil {
			writeMsg(w, nethttp.StatusBadRequest, "bad json")
			return
		}
		a, err := m.SaveProgress(r.Context(), chi.URLParam(r, "id"), auth.SubjectFromContext(r.Context()), req.Answers)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, a)
	}
}

// SubmitAttemptHandler accepts an optional final set of answers.
func SubmitAttemptHandler(m *attempt.Manager, log *slog.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req answersRequest
		if err := decodeJSON(r, &req, true); err != nil {
			writeMsg(w, nethttp.StatusBadRequest, "bad json")
			return
		}
		res, err := m.Submit(r.Context(), chi.URLParam(r, "id"), auth.SubjectFromContext(r.Context()), req.Answers)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, res)
	}
}

func MyAttemptsHandler(m *attempt.Manager, log *slog.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		list, err := m.ListForUser(r.Context(), auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, list)
	}
}

func GetAttemptHandler(m *attempt.Manager, log *slog.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		res, err := m.Get(r.Context(), chi.URLParam(r, "id"), auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, res)
	}
}
