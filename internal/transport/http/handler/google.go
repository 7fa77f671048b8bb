package handler

import (
	"net/http"

	"github.com/taskboard-api/internal/application/confirmation"
	"github.com/taskboard-api/internal/application/user"
	"github.com/taskboard-api/internal/domain"
)

// GoogleHandler links and unlinks Google accounts.
type GoogleHandler struct {
	svc    user.Service
	google googleAuth
}

func NewGoogleHandler(svc user.Service, google googleAuth) *GoogleHandler {
	return &GoogleHandler{svc: svc, google: google}
}

func (h *GoogleHandler) Connect(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req googleCodeRequest
	if !decode(w, r, &req) {
		return
	}
	identity, err := h.google.Exchange(r.Context(), req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	res, err := h.svc.ConnectGoogle(r.Context(), uid, user.GoogleAccount{
		Sub:           identity.Sub,
		Email:         identity.Email,
		EmailVerified: identity.EmailVerified,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeStart(w, res)
}

func (h *GoogleHandler) ConfirmConnect(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req domain.ConfirmationRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.svc.ConfirmConnectGoogle(r.Context(), uid, req.ConfirmationCode)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSafeUser(u))
}

func (h *GoogleHandler) RequestDisable(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	if err := h.svc.RequestDisableGoogle(r.Context(), uid); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StartEnvelope{
		Status: string(confirmation.OutcomeCodeSent),
		Action: string(domain.ActionDisableGoogle),
	})
}

func (h *GoogleHandler) Disable(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req domain.ConfirmationRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.svc.ConfirmDisableGoogle(r.Context(), uid, req.ConfirmationCode)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSafeUser(u))
}
