package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskboard-api/internal/application/user"
	"github.com/taskboard-api/internal/domain"
)

// ConfirmationHandler resends or cancels the caller's pending actions.
type ConfirmationHandler struct {
	svc user.Service
}

func NewConfirmationHandler(svc user.Service) *ConfirmationHandler {
	return &ConfirmationHandler{svc: svc}
}

func (h *ConfirmationHandler) Resend(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	action, err := domain.ParseActionType(chi.URLParam(r, "action"))
	if err == nil {
		err = h.svc.Resend(r.Context(), uid, action)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "code resent"})
}

func (h *ConfirmationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	action, err := domain.ParseActionType(chi.URLParam(r, "action"))
	if err == nil {
		err = h.svc.Cancel(r.Context(), uid, action)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
