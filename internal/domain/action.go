package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskboard-api/internal/pkg/normalize"
)

// ActionType names a flow that must be confirmed with a one-time code.
type ActionType string

const (
	ActionRegistration    ActionType = "registration"
	ActionEmailChange     ActionType = "emailChange"
	ActionDisableGoogle   ActionType = "disableGoogle"
	ActionConnectGoogle   ActionType = "connectGoogle"
	ActionAccountDeletion ActionType = "accountDeletion"
)

var actionTypes = []ActionType{
	ActionRegistration,
	ActionEmailChange,
	ActionDisableGoogle,
	ActionConnectGoogle,
	ActionAccountDeletion,
}

// ParseActionType returns the action named s.
func ParseActionType(s string) (ActionType, error) {
	for _, a := range actionTypes {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q: %w", s, ErrBadRequest)
}

// Payload is the not-yet-committed data of a pending action.
// Each ActionType has exactly one Payload variant.
type Payload interface {
	Action() ActionType
}

// RegistrationPayload is a registration draft. PasswordHash is already bcrypt-hashed.
type RegistrationPayload struct {
	Email        string `json:"email"`
	Login        string `json:"login"`
	PasswordHash string `json:"password_hash"`
}

func (RegistrationPayload) Action() ActionType { return ActionRegistration }

// NewRegistrationPayload normalizes email and login and rejects incomplete drafts.
func NewRegistrationPayload(email, login, passwordHash string) (RegistrationPayload, error) {
	p := RegistrationPayload{
		Email:        normalize.Email(email),
		Login:        normalize.Login(login),
		PasswordHash: passwordHash,
	}
	if p.Email == "" {
		return RegistrationPayload{}, fmt.Errorf("invalid email: %w", ErrBadRequest)
	}
	if p.Login == "" {
		return RegistrationPayload{}, fmt.Errorf("login required: %w", ErrBadRequest)
	}
	if p.PasswordHash == "" {
		return RegistrationPayload{}, fmt.Errorf("password hash required: %w", ErrBadRequest)
	}
	return p, nil
}

// EmailChangePayload carries the new email and/or login. Empty means unchanged.
type EmailChangePayload struct {
	NewEmail string `json:"new_email,omitempty"`
	NewLogin string `json:"new_login,omitempty"`
}

func (EmailChangePayload) Action() ActionType { return ActionEmailChange }

func NewEmailChangePayload(email, login *string) (EmailChangePayload, error) {
	var p EmailChangePayload
	if email != nil {
		p.NewEmail = normalize.Email(*email)
		if p.NewEmail == "" {
			return EmailChangePayload{}, fmt.Errorf("invalid email: %w", ErrBadRequest)
		}
	}
	if login != nil {
		p.NewLogin = normalize.Login(*login)
	}
	if p.NewEmail == "" && p.NewLogin == "" {
		return EmailChangePayload{}, fmt.Errorf("nothing to update: %w", ErrBadRequest)
	}
	return p, nil
}

// ConnectGooglePayload links a Google subject whose email differs from the account email.
type ConnectGooglePayload struct {
	GoogleSub   string `json:"google_sub"`
	GoogleEmail string `json:"google_email"`
}

func (ConnectGooglePayload) Action() ActionType { return ActionConnectGoogle }

func NewConnectGooglePayload(sub, email string) (ConnectGooglePayload, error) {
	p := ConnectGooglePayload{GoogleSub: sub, GoogleEmail: normalize.Email(email)}
	if p.GoogleSub == "" {
		return ConnectGooglePayload{}, fmt.Errorf("google subject required: %w", ErrBadRequest)
	}
	if p.GoogleEmail == "" {
		return ConnectGooglePayload{}, fmt.Errorf("invalid google email: %w", ErrBadRequest)
	}
	return p, nil
}

type DisableGooglePayload struct{}

func (DisableGooglePayload) Action() ActionType { return ActionDisableGoogle }

type AccountDeletionPayload struct{}

func (AccountDeletionPayload) Action() ActionType { return ActionAccountDeletion }

// PendingAction is a payload held in a TempDataStore.
type PendingAction struct {
	UserKey   string
	Payload   Payload
	CreatedAt time.Time
}

// ConfirmationCode is a one-time code held in a ConfirmationCodeStore.
type ConfirmationCode struct {
	UserKey   string
	Action    ActionType
	Code      string
	CreatedAt time.Time
}

// MarshalPayload encodes a payload for stores that keep bytes.
func MarshalPayload(p Payload) ([]byte, error) {
	return json.Marshal(p)
}

// UnmarshalPayload decodes data into the variant belonging to action.
func UnmarshalPayload(action ActionType, data []byte) (Payload, error) {
	switch action {
	case ActionRegistration:
		var p RegistrationPayload
		err := json.Unmarshal(data, &p)
		return p, err
	case ActionEmailChange:
		var p EmailChangePayload
		err := json.Unmarshal(data, &p)
		return p, err
	case ActionConnectGoogle:
		var p ConnectGooglePayload
		err := json.Unmarshal(data, &p)
		return p, err
	case ActionDisableGoogle:
		return DisableGooglePayload{}, nil
	case ActionAccountDeletion:
		return AccountDeletionPayload{}, nil
	}
	return nil, fmt.Errorf("unknown action %q: %w", action, ErrBadRequest)
}
