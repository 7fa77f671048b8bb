package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/taskboard-api/internal/domain"
	"github.com/taskboard-api/internal/pkg/validate"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Field     string `json:"field,omitempty"`
}

// AuthEnvelope wraps login/register responses.
type AuthEnvelope struct {
	AccessToken  string       `json:"access_token,omitempty"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	Session      *SafeSession `json:"session,omitempty"`
	User         *SafeUser    `json:"user,omitempty"`
}

// SessionEnvelope wraps current-session responses.
type SessionEnvelope struct {
	Session *SafeSession `json:"session,omitempty"`
	User    *SafeUser    `json:"user,omitempty"`
}

// StartEnvelope answers a confirmation start. Status is code_sent or applied.
type StartEnvelope struct {
	Status string    `json:"status"`
	Action string    `json:"action"`
	User   *SafeUser `json:"user,omitempty"`
}

type BoardsEnvelope struct {
	Boards      []domain.Board `json:"boards"`
	TotalBoards int            `json:"totalBoards"`
}

type BoardEnvelope struct {
	UpdatedBoard *domain.Board `json:"updatedBoard"`
}

// SafeUser is the public projection of a user.
type SafeUser struct {
	ID                 string    `json:"id"`
	Login              string    `json:"login"`
	Email              string    `json:"email"`
	GoogleLinked       bool      `json:"google_linked"`
	GoogleOAuthEnabled bool      `json:"google_oauth_enabled"`
	CreatedAt          time.Time `json:"created"`
}

type SafeSession struct {
	ID        string    `json:"id"`
	UserAgent string    `json:"user_agent,omitempty"`
	IP        string    `json:"ip,omitempty"`
	CreatedAt time.Time `json:"created"`
}

func toSafeUser(u *domain.User) *SafeUser {
	if u == nil {
		return nil
	}
	return &SafeUser{
		ID:                 u.UserID,
		Login:              u.Login,
		Email:              u.Email,
		GoogleLinked:       u.HasGoogle(),
		GoogleOAuthEnabled: u.GoogleOAuthEnabled,
		CreatedAt:          u.CreatedAt,
	}
}

func toSafeSession(s *domain.Session) *SafeSession {
	if s == nil {
		return nil
	}
	return &SafeSession{ID: s.SessionID, UserAgent: s.UserAgent, IP: s.IP, CreatedAt: s.CreatedAt}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// decode reads a JSON body into dst and runs its validate tags.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, MessageEnvelope{Error: "invalid request body", ErrorCode: "bad_request"})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, MessageEnvelope{Error: err.Error(), ErrorCode: "validation"})
		return false
	}
	return true
}

// writeServiceError maps a service error to its HTTP status and error code.
// Unknown errors are logged and answered with a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	env := MessageEnvelope{Error: err.Error()}
	var status int

	var conflict *domain.ConflictError
	var invalid *domain.CodeInvalidError
	switch {
	case errors.As(err, &conflict):
		status, env.ErrorCode, env.Field = http.StatusConflict, "conflict", conflict.Field
	case errors.As(err, &invalid):
		status, env.ErrorCode = http.StatusBadRequest, "code_"+string(invalid.Reason)
	case errors.Is(err, domain.ErrBadRequest):
		status, env.ErrorCode = http.StatusBadRequest, "bad_request"
	case errors.Is(err, domain.ErrPendingActionMissing):
		status, env.ErrorCode = http.StatusGone, "pending_action_missing"
	case errors.Is(err, domain.ErrUnauthorized):
		status, env.ErrorCode = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		status, env.ErrorCode = http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		status, env.ErrorCode = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrConflict):
		status, env.ErrorCode = http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrDelivery):
		status, env.ErrorCode = http.StatusBadGateway, "delivery_failed"
		env.Error = "could not deliver the confirmation code"
	default:
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		status, env.ErrorCode = http.StatusInternalServerError, "internal"
		env.Error = "internal server error"
	}
	writeJSON(w, status, env)
}
