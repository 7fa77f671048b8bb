package user

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/taskboard-api/internal/application/confirmation"
	"github.com/taskboard-api/internal/application/session"
	"github.com/taskboard-api/internal/domain"
	"github.com/taskboard-api/internal/pkg/id"
)

type Service interface {
	BeginRegistration(ctx context.Context, req domain.RegistrationRequest) (registrationKey string, err error)
	ResendRegistration(ctx context.Context, registrationKey string) error
	CompleteRegistration(ctx context.Context, registrationKey, code string, meta session.Meta) (*session.LoginResult, error)

	Me(ctx context.Context, userID string) (*domain.User, error)
	ByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error)

	StartEmailChange(ctx context.Context, userID string, req domain.EmailChangeRequest) (*confirmation.StartResult, error)
	ConfirmEmailChange(ctx context.Context, userID, code string) (*domain.User, error)

	RequestDeletion(ctx context.Context, userID string) error
	ConfirmDeletion(ctx context.Context, userID, code string) error

	ConnectGoogle(ctx context.Context, userID string, google GoogleAccount) (*confirmation.StartResult, error)
	ConfirmConnectGoogle(ctx context.Context, userID, code string) (*domain.User, error)
	RequestDisableGoogle(ctx context.Context, userID string) error
	ConfirmDisableGoogle(ctx context.Context, userID, code string) (*domain.User, error)

	Resend(ctx context.Context, userID string, action domain.ActionType) error
	Cancel(ctx context.Context, userID string, action domain.ActionType) error
}

// GoogleAccount is a verified Google identity offered for linking.
type GoogleAccount struct {
	Sub           string
	Email         string
	EmailVerified bool
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error)
}

type sessionOpener interface {
	Open(ctx context.Context, u *domain.User, meta session.Meta) (*session.LoginResult, error)
}

type ServiceDeps struct {
	UserRepo     userStore
	Confirmation confirmation.Service
	Sessions     sessionOpener
	BcryptCost   int
}

type service struct {
	repo       userStore
	confirm    confirmation.Service
	sessions   sessionOpener
	bcryptCost int
}

func NewService(deps ServiceDeps) Service {
	cost := deps.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &service{
		repo:       deps.UserRepo,
		confirm:    deps.Confirmation,
		sessions:   deps.Sessions,
		bcryptCost: cost,
	}
}

func (s *service) BeginRegistration(ctx context.Context, req domain.RegistrationRequest) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	payload, err := domain.NewRegistrationPayload(req.Email, req.Login, string(hash))
	if err != nil {
		return "", err
	}
	// The registration key becomes the user id once confirmed.
	key := id.NewUUID()
	if _, err := s.confirm.Start(ctx, key, payload); err != nil {
		return "", err
	}
	return key, nil
}

func (s *service) ResendRegistration(ctx context.Context, registrationKey string) error {
	if !id.IsUUID(registrationKey) {
		return fmt.Errorf("registration: %w", domain.ErrPendingActionMissing)
	}
	return s.confirm.Resend(ctx, domain.ActionRegistration, registrationKey)
}

func (s *service) CompleteRegistration(ctx context.Context, registrationKey, code string, meta session.Meta) (*session.LoginResult, error) {
	if !id.IsUUID(registrationKey) {
		return nil, fmt.Errorf("registration: %w", domain.ErrPendingActionMissing)
	}
	u, err := s.confirm.Confirm(ctx, domain.ActionRegistration, registrationKey, code)
	if err != nil {
		return nil, err
	}
	return s.sessions.Open(ctx, u, meta)
}

func (s *service) Me(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.IsDeleted {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return u, nil
}

func (s *service) ByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	if telegramID == 0 {
		return nil, fmt.Errorf("telegram id required: %w", domain.ErrBadRequest)
	}
	return s.repo.GetByTelegramID(ctx, telegramID)
}

func (s *service) StartEmailChange(ctx context.Context, userID string, req domain.EmailChangeRequest) (*confirmation.StartResult, error) {
	payload, err := domain.NewEmailChangePayload(req.Email, req.Login)
	if err != nil {
		return nil, err
	}
	return s.confirm.Start(ctx, userID, payload)
}

func (s *service) ConfirmEmailChange(ctx context.Context, userID, code string) (*domain.User, error) {
	return s.confirm.Confirm(ctx, domain.ActionEmailChange, userID, code)
}

func (s *service) RequestDeletion(ctx context.Context, userID string) error {
	_, err := s.confirm.Start(ctx, userID, domain.AccountDeletionPayload{})
	return err
}

func (s *service) ConfirmDeletion(ctx context.Context, userID, code string) error {
	_, err := s.confirm.Confirm(ctx, domain.ActionAccountDeletion, userID, code)
	return err
}

func (s *service) ConnectGoogle(ctx context.Context, userID string, g GoogleAccount) (*confirmation.StartResult, error) {
	if !g.EmailVerified {
		return nil, fmt.Errorf("google email not verified: %w", domain.ErrUnauthorized)
	}
	payload, err := domain.NewConnectGooglePayload(g.Sub, g.Email)
	if err != nil {
		return nil, err
	}
	return s.confirm.Start(ctx, userID, payload)
}

func (s *service) ConfirmConnectGoogle(ctx context.Context, userID, code string) (*domain.User, error) {
	return s.confirm.Confirm(ctx, domain.ActionConnectGoogle, userID, code)
}

func (s *service) RequestDisableGoogle(ctx context.Context, userID string) error {
	_, err := s.confirm.Start(ctx, userID, domain.DisableGooglePayload{})
	return err
}

func (s *service) ConfirmDisableGoogle(ctx context.Context, userID, code string) (*domain.User, error) {
	return s.confirm.Confirm(ctx, domain.ActionDisableGoogle, userID, code)
}

// Resend and Cancel act on the caller's own pending actions. Registration is
// keyed by its cookie and goes through ResendRegistration instead.
func (s *service) Resend(ctx context.Context, userID string, action domain.ActionType) error {
	if err := ownAction(action); err != nil {
		return err
	}
	return s.confirm.Resend(ctx, action, userID)
}

func (s *service) Cancel(ctx context.Context, userID string, action domain.ActionType) error {
	if err := ownAction(action); err != nil {
		return err
	}
	return s.confirm.Cancel(ctx, action, userID)
}

var errRegistrationByUser = errors.New("registration is not bound to an account")

func ownAction(action domain.ActionType) error {
	if action == domain.ActionRegistration {
		return fmt.Errorf("%v: %w", errRegistrationByUser, domain.ErrBadRequest)
	}
	return nil
}
