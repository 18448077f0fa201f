package http

import (
	"log/slog"
	nethttp "net/http"

	"github.com/mind-engage/quizbuilder/internal/auth"
)

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func RegisterHandler(svc *auth.Service, log *slog.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req auth.RegisterRequest
		if err := decodeJSON(r, &req, false); err != nil {
			writeMsg(w, nethttp.StatusBadRequest, "bad json")
			return
		}
		pair, err := svc.Register(r.Context(), req)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, nethttp.StatusCreated, pair)
	}
}

func LoginHandler(svc *auth.Service, log *slog.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeJSON(r, &req, false); err != nil {
			writeMsg(w, nethttp.StatusBadRequest, "bad json")
			return
		}
		pair, err := svc.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, pair)
	}
}

func RefreshHandler(svc *auth.Service, log *slog.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req refreshRequest
		if err := decodeJSON(r, &req, false); err != nil || req.RefreshToken == "" {
			writeMsg(w, nethttp.StatusBadRequest, "refresh_token required")
			return
		}
		pair, err := svc.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, pair)
	}
}

func LogoutHandler(svc *auth.Service, log *slog.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req refreshRequest
		if err := decodeJSON(r, &req, false); err != nil || req.RefreshToken == "" {
			writeMsg(w, nethttp.StatusBadRequest, "refresh_token required")
			return
		}
		if err := svc.Logout(r.Context(), req.RefreshToken); err != nil {
			writeError(w, log, err)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}

func MeHandler(svc *auth.Service, log *slog.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		u, err := svc.GetUser(r.Context(), auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, u)
	}
}

func UpdateMeHandler(svc *auth.Service, log *slog.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var p auth.ProfilePatch
		if err := decodeJSON(r, &p, false); err != nil {
			writeMsg(w, nethttp.StatusBadRequest, "bad json")
			return
		}
		u, err := svc.UpdateProfile(r.Context(), auth.SubjectFromContext(r.Context()), p)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, u)
	}
}
