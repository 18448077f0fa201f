package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	nethttp "net/http"
	"strconv"

	"github.com/mind-engage/quizbuilder/internal/assistant"
	"github.com/mind-engage/quizbuilder/internal/attempt"
	"github.com/mind-engage/quizbuilder/internal/auth"
	"github.com/mind-engage/quizbuilder/internal/quiz"
)

const roundLimitMsg = "Sorry, I couldn't complete the request."

func writeJSON(w nethttp.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMsg(w nethttp.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeError maps domain errors to statuses. Anything unrecognised is logged
// and reported as a bare 500.
func writeError(w nethttp.ResponseWriter, log *slog.Logger, err error) {
	var (
		qv *quiz.ValidationError
		av *auth.ValidationError
	)
	switch {
	case errors.As(err, &qv):
		writeMsg(w, nethttp.StatusUnprocessableEntity, qv.Error())
	case errors.As(err, &av):
		writeMsg(w, nethttp.StatusUnprocessableEntity, av.Error())
	case errors.Is(err, attempt.ErrInvalidAnswer):
		writeMsg(w, nethttp.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, quiz.ErrNotFound),
		errors.Is(err, quiz.ErrQuestionNotFound),
		errors.Is(err, attempt.ErrNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		writeMsg(w, nethttp.StatusNotFound, err.Error())
	case errors.Is(err, quiz.ErrQuestionsLocked), errors.Is(err, auth.ErrEmailTaken):
		writeMsg(w, nethttp.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeMsg(w, nethttp.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrInvalidToken):
		writeMsg(w, nethttp.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, assistant.ErrRoundLimit):
		log.Warn("chat aborted", "err", err)
		writeMsg(w, nethttp.StatusBadGateway, roundLimitMsg)
	case errors.Is(err, assistant.ErrUpstream):
		log.Error("chat upstream failure", "err", err)
		writeMsg(w, nethttp.StatusInternalServerError, "AI service error")
	default:
		log.Error("request failed", "err", err)
		writeMsg(w, nethttp.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads a JSON body into dst. An empty body is accepted when
// allowEmpty is set.
func decodeJSON(r *nethttp.Request, dst any, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) && allowEmpty {
		return nil
	}
	return err
}

func parseIntDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
