package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/taskboard-api/internal/application/confirmation"
	"github.com/taskboard-api/internal/application/user"
	"github.com/taskboard-api/internal/config"
	"github.com/taskboard-api/internal/domain"
	"github.com/taskboard-api/internal/transport/http/middleware"
)

// UserHandler handles registration, profile and confirmed account changes.
type UserHandler struct {
	svc    user.Service
	cookie config.Cookie
}

func NewUserHandler(svc user.Service, cookie config.Cookie) *UserHandler {
	return &UserHandler{svc: svc, cookie: cookie}
}

func writeStart(w http.ResponseWriter, res *confirmation.StartResult) {
	writeJSON(w, http.StatusOK, StartEnvelope{
		Status: string(res.Outcome),
		Action: string(res.Action),
		User:   toSafeUser(res.User),
	})
}

func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return claims.UserID, true
}

func (h *UserHandler) setRegistrationCookie(w http.ResponseWriter, key string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.RegistrationName,
		Value:    key,
		Path:     "/api/users",
		MaxAge:   int(h.cookie.RegistrationTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *UserHandler) clearRegistrationCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.RegistrationName,
		Value:    "",
		Path:     "/api/users",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *UserHandler) registrationKey(r *http.Request) (string, error) {
	c, err := r.Cookie(h.cookie.RegistrationName)
	if err != nil || c.Value == "" {
		return "", fmt.Errorf("registration cookie missing: %w", domain.ErrPendingActionMissing)
	}
	return c.Value, nil
}

// StartRegistration validates the draft, mails a code and sets the registration cookie.
func (h *UserHandler) StartRegistration(w http.ResponseWriter, r *http.Request) {
	var req domain.RegistrationRequest
	if !decode(w, r, &req) {
		return
	}
	key, err := h.svc.BeginRegistration(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.setRegistrationCookie(w, key)
	writeJSON(w, http.StatusOK, StartEnvelope{
		Status: string(confirmation.OutcomeCodeSent),
		Action: string(domain.ActionRegistration),
	})
}

func (h *UserHandler) ResendRegistration(w http.ResponseWriter, r *http.Request) {
	key, err := h.registrationKey(r)
	if err == nil {
		err = h.svc.ResendRegistration(r.Context(), key)
	}
	if err != nil {
		if errors.Is(err, domain.ErrPendingActionMissing) {
			h.clearRegistrationCookie(w)
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "code resent"})
}

// Register confirms the registration code, creates the user and opens a session.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.ConfirmationRequest
	if !decode(w, r, &req) {
		return
	}
	key, err := h.registrationKey(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	result, err := h.svc.CompleteRegistration(r.Context(), key, req.ConfirmationCode, clientMeta(r))
	if err != nil {
		var invalid *domain.CodeInvalidError
		if !errors.As(err, &invalid) || invalid.Reason != domain.CodeMismatch {
			h.clearRegistrationCookie(w)
		}
		writeServiceError(w, r, err)
		return
	}
	h.clearRegistrationCookie(w)
	writeLogin(w, http.StatusCreated, result)
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	u, err := h.svc.Me(r.Context(), uid)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSafeUser(u))
}

func (h *UserHandler) StartEmailChange(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req domain.EmailChangeRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.StartEmailChange(r.Context(), uid, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeStart(w, res)
}

// ConfirmEmailChange applies a pending email/login change.
func (h *UserHandler) ConfirmEmailChange(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req domain.ConfirmationRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.svc.ConfirmEmailChange(r.Context(), uid, req.ConfirmationCode)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSafeUser(u))
}

func (h *UserHandler) RequestDeletion(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	if err := h.svc.RequestDeletion(r.Context(), uid); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StartEnvelope{
		Status: string(confirmation.OutcomeCodeSent),
		Action: string(domain.ActionAccountDeletion),
	})
}

func (h *UserHandler) ConfirmDeletion(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req domain.ConfirmationRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.ConfirmDeletion(r.Context(), uid, req.ConfirmationCode); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "account deleted"})
}
