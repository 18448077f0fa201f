package http

import (
	"log/slog"
	nethttp "net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mind-engage/quizbuilder/internal/assistant"
	"github.com/mind-engage/quizbuilder/internal/auth"
	"github.com/mind-engage/quizbuilder/internal/events"
)

type chatRequest struct {
	Message             string           `json:"message" validate:"required,max=4000"`
	ConversationHistory []assistant.Turn `json:"conversation_history" validate:"max=50,dive"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ChatHandler runs one assistant exchange for the signed-in instructor. The
// persona follows the user's stored theme.
func ChatHandler(a *assistant.Assistant, users *auth.Service, log *slog.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if a == nil {
			writeMsg(w, nethttp.StatusServiceUnavailable, "AI service not configured")
			return
		}
		var req chatRequest
		if err := decodeJSON(r, &req, false); err != nil {
			writeMsg(w, nethttp.StatusBadRequest, "bad json")
			return
		}
		req.Message = strings.TrimSpace(req.Message)
		if err := validate.Struct(req); err != nil {
			writeMsg(w, nethttp.StatusUnprocessableEntity, "message is required; history roles must be user or assistant")
			return
		}
		u, err := users.GetUser(r.Context(), auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, log, err)
			return
		}
		reply, err := a.Chat(r.Context(), assistant.Caller{UserID: u.ID, Theme: u.ThemePreference}, req.Message, req.ConversationHistory)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, reply)
	}
}

// GET /api/chat/activity
// ChatActivityHandler lists the caller's assistant tool calls, oldest first.
func ChatActivityHandler(audit *events.Repo, log *slog.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		evs, err := audit.List(r.Context(), events.TypeAssistantTool, auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, log, err)
			return
		}
		if evs == nil {
			evs = []events.Event{}
		}
		writeJSON(w, nethttp.StatusOK, evs)
	}
}
