package handler

import (
	"context"
	"net/http"

	"github.com/taskboard-api/internal/application/session"
	"github.com/taskboard-api/internal/infrastructure/google"
	"github.com/taskboard-api/internal/transport/http/middleware"
)

// googleAuth trades a browser authorization code for a verified Google identity.
type googleAuth interface {
	Exchange(ctx context.Context, code string) (*google.Identity, error)
}

// SessionHandler handles session endpoints.
type SessionHandler struct {
	svc    session.Service
	google googleAuth
}

func NewSessionHandler(svc session.Service, google googleAuth) *SessionHandler {
	return &SessionHandler{svc: svc, google: google}
}

func clientMeta(r *http.Request) session.Meta {
	return session.Meta{UserAgent: r.UserAgent(), IP: middleware.ClientIP(r)}
}

func writeLogin(w http.ResponseWriter, status int, result *session.LoginResult) {
	writeJSON(w, status, AuthEnvelope{
		AccessToken:  result.Bearer,
		RefreshToken: result.RefreshToken,
		Session:      toSafeSession(result.Session),
		User:         toSafeUser(result.Session.User),
	})
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req session.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.svc.Login(r.Context(), req, clientMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeLogin(w, http.StatusOK, result)
}

type googleCodeRequest struct {
	Code string `json:"code" validate:"required"`
}

// GoogleLogin signs in with a Google account already linked to a user.
func (h *SessionHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req googleCodeRequest
	if !decode(w, r, &req) {
		return
	}
	identity, err := h.google.Exchange(r.Context(), req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	result, err := h.svc.GoogleLogin(r.Context(), identity.Sub, clientMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeLogin(w, http.StatusOK, result)
}

func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}
	if !decode(w, r, &req) {
		return
	}
	bearer, newToken, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{AccessToken: bearer, RefreshToken: newToken})
}

func (h *SessionHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sess, err := h.svc.GetCurrent(r.Context(), claims.SessionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionEnvelope{Session: toSafeSession(sess), User: toSafeUser(sess.User)})
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.Logout(r.Context(), claims.SessionID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "logged out"})
}
