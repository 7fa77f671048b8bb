package confirmation

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/taskboard-api/internal/domain"
	"github.com/taskboard-api/internal/pkg/normalize"
)

// Outcome tells the caller what Start did.
type Outcome string

const (
	// OutcomeCodeSent means a code was delivered and Confirm must follow.
	OutcomeCodeSent Outcome = "code_sent"
	// OutcomeApplied means the change needed no confirmation and is already stored.
	OutcomeApplied Outcome = "applied"
)

type StartResult struct {
	Outcome Outcome
	Action  domain.ActionType
	Key     string
	User    *domain.User // set when Outcome is OutcomeApplied
}

type Service interface {
	Start(ctx context.Context, userKey string, payload domain.Payload) (*StartResult, error)
	Confirm(ctx context.Context, action domain.ActionType, userKey, code string) (*domain.User, error)
	Resend(ctx context.Context, action domain.ActionType, userKey string) error
	Cancel(ctx context.Context, action domain.ActionType, userKey string) error
}

type tempDataStore interface {
	Set(ctx context.Context, action domain.ActionType, userKey string, payload domain.Payload) error
	Get(ctx context.Context, action domain.ActionType, userKey string) (domain.Payload, bool, error)
	Delete(ctx context.Context, action domain.ActionType, userKey string) error
}

type codeStore interface {
	GenerateAndStore(ctx context.Context, userKey string, action domain.ActionType) (string, error)
	ValidateAndConsume(ctx context.Context, userKey string, action domain.ActionType, supplied string) error
	Peek(ctx context.Context, userKey string, action domain.ActionType) (string, bool, error)
	Delete(ctx context.Context, userKey string, action domain.ActionType) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	FindByEmailOrLogin(ctx context.Context, email, login string) (*domain.User, error)
	GetByGoogleSub(ctx context.Context, sub string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID string, upd domain.UserUpdate) (*domain.User, error)
	SoftDelete(ctx context.Context, userID string) error
}

type sessionStore interface {
	SoftDeleteByUser(ctx context.Context, userID string) error
}

// CodeSender delivers a confirmation code out of band.
type CodeSender interface {
	SendCode(ctx context.Context, to string, action domain.ActionType, code string) error
}

type ServiceDeps struct {
	TempData        tempDataStore
	Codes           codeStore
	Users           userStore
	Sessions        sessionStore
	Sender          CodeSender
	DeliveryTimeout time.Duration
	Logger          *slog.Logger
	Now             func() time.Time
}

const lockStripes = 64

type service struct {
	temp            tempDataStore
	codes           codeStore
	users           userStore
	sessions        sessionStore
	sender          CodeSender
	deliveryTimeout time.Duration
	log             *slog.Logger
	now             func() time.Time
	locks           [lockStripes]sync.Mutex
}

func NewService(deps ServiceDeps) Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.DeliveryTimeout <= 0 {
		deps.DeliveryTimeout = 10 * time.Second
	}
	return &service{
		temp:            deps.TempData,
		codes:           deps.Codes,
		users:           deps.Users,
		sessions:        deps.Sessions,
		sender:          deps.Sender,
		deliveryTimeout: deps.DeliveryTimeout,
		log:             deps.Logger,
		now:             deps.Now,
	}
}

// lockFor serializes start, confirm, resend and cancel for one (action, userKey).
func (s *service) lockFor(action domain.ActionType, userKey string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(action))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(userKey))
	return &s.locks[h.Sum32()%lockStripes]
}

func (s *service) Start(ctx context.Context, userKey string, payload domain.Payload) (*StartResult, error) {
	if payload == nil {
		return nil, fmt.Errorf("payload required: %w", domain.ErrBadRequest)
	}
	if userKey == "" {
		return nil, fmt.Errorf("user key required: %w", domain.ErrBadRequest)
	}
	action := payload.Action()

	mu := s.lockFor(action, userKey)
	mu.Lock()
	defer mu.Unlock()

	dest, applied, err := s.prepare(ctx, userKey, payload)
	if err != nil {
		return nil, err
	}
	if applied != nil {
		// An earlier start of the same action must not stay confirmable.
		s.discard(ctx, action, userKey)
		s.log.Info("change applied without confirmation", "action", action, "user_key", userKey)
		return &StartResult{Outcome: OutcomeApplied, Action: action, Key: userKey, User: applied}, nil
	}

	if err := s.temp.Set(ctx, action, userKey, payload); err != nil {
		return nil, fmt.Errorf("store pending %s: %w", action, err)
	}
	code, err := s.codes.GenerateAndStore(ctx, userKey, action)
	if err != nil {
		s.discard(ctx, action, userKey)
		return nil, fmt.Errorf("issue code for %s: %w", action, err)
	}
	if err := s.deliver(ctx, dest, action, code); err != nil {
		s.discard(ctx, action, userKey)
		s.log.Warn("confirmation delivery failed", "action", action, "user_key", userKey, "err", err)
		return nil, err
	}

	s.log.Info("confirmation code sent", "action", action, "user_key", userKey)
	return &StartResult{Outcome: OutcomeCodeSent, Action: action, Key: userKey}, nil
}

func (s *service) Confirm(ctx context.Context, action domain.ActionType, userKey, code string) (*domain.User, error) {
	mu := s.lockFor(action, userKey)
	mu.Lock()
	defer mu.Unlock()

	if err := s.codes.ValidateAndConsume(ctx, userKey, action, code); err != nil {
		s.log.Info("confirmation rejected", "action", action, "user_key", userKey, "err", err)
		return nil, err
	}
	payload, ok, err := s.temp.Get(ctx, action, userKey)
	if err != nil {
		return nil, fmt.Errorf("load pending %s: %w", action, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", action, domain.ErrPendingActionMissing)
	}

	u, err := s.apply(ctx, userKey, payload)
	// The code is spent either way, so the draft goes too and a failed apply restarts from Start.
	if delErr := s.temp.Delete(ctx, action, userKey); delErr != nil {
		s.log.Warn("failed to delete pending action", "action", action, "user_key", userKey, "err", delErr)
	}
	if err != nil {
		s.log.Error("confirmed action not applied", "action", action, "user_key", userKey, "err", err)
		return nil, fmt.Errorf("apply %s: %w", action, err)
	}

	s.log.Info("action confirmed", "action", action, "user_key", userKey)
	return u, nil
}

// Resend re-delivers the live code without issuing a new one.
func (s *service) Resend(ctx context.Context, action domain.ActionType, userKey string) error {
	mu := s.lockFor(action, userKey)
	mu.Lock()
	defer mu.Unlock()

	payload, ok, err := s.temp.Get(ctx, action, userKey)
	if err != nil {
		return fmt.Errorf("load pending %s: %w", action, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", action, domain.ErrPendingActionMissing)
	}
	code, ok, err := s.codes.Peek(ctx, userKey, action)
	if err != nil {
		return fmt.Errorf("load code for %s: %w", action, err)
	}
	if !ok {
		s.discard(ctx, action, userKey)
		return fmt.Errorf("%s code expired: %w", action, domain.ErrPendingActionMissing)
	}
	dest, err := s.destination(ctx, userKey, payload)
	if err != nil {
		return err
	}
	if err := s.deliver(ctx, dest, action, code); err != nil {
		s.log.Warn("confirmation resend failed", "action", action, "user_key", userKey, "err", err)
		return err
	}
	s.log.Info("confirmation code resent", "action", action, "user_key", userKey)
	return nil
}

// Cancel drops the pending action and its code.
func (s *service) Cancel(ctx context.Context, action domain.ActionType, userKey string) error {
	mu := s.lockFor(action, userKey)
	mu.Lock()
	defer mu.Unlock()

	if err := s.codes.Delete(ctx, userKey, action); err != nil {
		return fmt.Errorf("delete code for %s: %w", action, err)
	}
	if err := s.temp.Delete(ctx, action, userKey); err != nil {
		return fmt.Errorf("delete pending %s: %w", action, err)
	}
	return nil
}

func (s *service) deliver(ctx context.Context, to string, action domain.ActionType, code string) error {
	sendCtx, cancel := context.WithTimeout(ctx, s.deliveryTimeout)
	defer cancel()
	if err := s.sender.SendCode(sendCtx, to, action, code); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDelivery, err)
	}
	return nil
}

func (s *service) discard(ctx context.Context, action domain.ActionType, userKey string) {
	if err := s.codes.Delete(ctx, userKey, action); err != nil {
		s.log.Warn("failed to delete confirmation code", "action", action, "user_key", userKey, "err", err)
	}
	if err := s.temp.Delete(ctx, action, userKey); err != nil {
		s.log.Warn("failed to delete pending action", "action", action, "user_key", userKey, "err", err)
	}
}

// prepare runs the conflict checks for payload and returns either the delivery
// address for the code or, for changes that need no confirmation, the updated user.
func (s *service) prepare(ctx context.Context, userKey string, payload domain.Payload) (string, *domain.User, error) {
	if p, ok := payload.(domain.RegistrationPayload); ok {
		if err := s.checkUnique(ctx, "", p.Email, p.Login); err != nil {
			return "", nil, err
		}
		return p.Email, nil, nil
	}

	u, err := s.activeUser(ctx, userKey)
	if err != nil {
		return "", nil, err
	}

	switch p := payload.(type) {
	case domain.EmailChangePayload:
		if err := s.checkUnique(ctx, u.UserID, p.NewEmail, p.NewLogin); err != nil {
			return "", nil, err
		}
		if p.NewEmail == "" || p.NewEmail == normalize.Email(u.Email) {
			applied, err := s.applyLoginOnly(ctx, u, p.NewLogin)
			return "", applied, err
		}
		return p.NewEmail, nil, nil

	case domain.ConnectGooglePayload:
		if u.HasGoogle() && u.GoogleSub != p.GoogleSub {
			return "", nil, fmt.Errorf("another google account is linked: %w", &domain.ConflictError{Field: domain.FieldGoogleSub})
		}
		if err := s.checkGoogleSubFree(ctx, u.UserID, p.GoogleSub); err != nil {
			return "", nil, err
		}
		if p.GoogleEmail == normalize.Email(u.Email) {
			applied, err := s.linkGoogle(ctx, u.UserID, p.GoogleSub)
			return "", applied, err
		}
		return p.GoogleEmail, nil, nil

	case domain.DisableGooglePayload:
		if !u.HasGoogle() {
			return "", nil, fmt.Errorf("google account not linked: %w", domain.ErrBadRequest)
		}
		return u.Email, nil, nil

	case domain.AccountDeletionPayload:
		return u.Email, nil, nil
	}
	return "", nil, fmt.Errorf("unsupported action %s: %w", payload.Action(), domain.ErrBadRequest)
}

// destination resolves where the code of an already started action goes.
func (s *service) destination(ctx context.Context, userKey string, payload domain.Payload) (string, error) {
	switch p := payload.(type) {
	case domain.RegistrationPayload:
		return p.Email, nil
	case domain.EmailChangePayload:
		return p.NewEmail, nil
	case domain.ConnectGooglePayload:
		return p.GoogleEmail, nil
	}
	u, err := s.activeUser(ctx, userKey)
	if err != nil {
		return "", err
	}
	return u.Email, nil
}

func (s *service) apply(ctx context.Context, userKey string, payload domain.Payload) (*domain.User, error) {
	switch p := payload.(type) {
	case domain.RegistrationPayload:
		now := s.now().UTC()
		u := &domain.User{
			UserID:       userKey,
			Login:        p.Login,
			LoginKey:     normalize.LoginKey(p.Login),
			Email:        p.Email,
			PasswordHash: p.PasswordHash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.users.Create(ctx, u); err != nil {
			return nil, err
		}
		return u, nil

	case domain.EmailChangePayload:
		if _, err := s.activeUser(ctx, userKey); err != nil {
			return nil, err
		}
		var upd domain.UserUpdate
		if p.NewEmail != "" {
			upd.Email = &p.NewEmail
		}
		if p.NewLogin != "" {
			upd.Login = &p.NewLogin
		}
		return s.users.Update(ctx, userKey, upd)

	case domain.ConnectGooglePayload:
		if _, err := s.activeUser(ctx, userKey); err != nil {
			return nil, err
		}
		return s.linkGoogle(ctx, userKey, p.GoogleSub)

	case domain.DisableGooglePayload:
		if _, err := s.activeUser(ctx, userKey); err != nil {
			return nil, err
		}
		empty, disabled := "", false
		return s.users.Update(ctx, userKey, domain.UserUpdate{GoogleSub: &empty, GoogleOAuthEnabled: &disabled})

	case domain.AccountDeletionPayload:
		if _, err := s.activeUser(ctx, userKey); err != nil {
			return nil, err
		}
		if err := s.users.SoftDelete(ctx, userKey); err != nil {
			return nil, err
		}
		// The account is already gone and its sessions fail GetCurrent and Refresh, so a
		// revoke failure is logged rather than reported.
		if err := s.sessions.SoftDeleteByUser(ctx, userKey); err != nil {
			s.log.Error("revoke sessions after account deletion", "user_key", userKey, "err", err)
		}
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported action %s: %w", payload.Action(), domain.ErrBadRequest)
}

func (s *service) applyLoginOnly(ctx context.Context, u *domain.User, login string) (*domain.User, error) {
	if login == "" || login == u.Login {
		return u, nil
	}
	return s.users.Update(ctx, u.UserID, domain.UserUpdate{Login: &login})
}

func (s *service) linkGoogle(ctx context.Context, userID, sub string) (*domain.User, error) {
	enabled := true
	return s.users.Update(ctx, userID, domain.UserUpdate{GoogleSub: &sub, GoogleOAuthEnabled: &enabled})
}

func (s *service) activeUser(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.users.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && u.IsDeleted) {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// checkUnique rejects an email or login held by a user other than selfID.
func (s *service) checkUnique(ctx context.Context, selfID, email, login string) error {
	if email != "" {
		if err := s.checkFree(ctx, selfID, email, "", domain.FieldEmail); err != nil {
			return err
		}
	}
	if login != "" {
		if err := s.checkFree(ctx, selfID, "", login, domain.FieldLogin); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) checkFree(ctx context.Context, selfID, email, login, field string) error {
	other, err := s.users.FindByEmailOrLogin(ctx, email, login)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup %s: %w", field, err)
	}
	if other.UserID != selfID {
		return &domain.ConflictError{Field: field}
	}
	return nil
}

func (s *service) checkGoogleSubFree(ctx context.Context, selfID, sub string) error {
	other, err := s.users.GetByGoogleSub(ctx, sub)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup google account: %w", err)
	}
	if other.UserID != selfID {
		return fmt.Errorf("google account linked to another user: %w", &domain.ConflictError{Field: domain.FieldGoogleSub})
	}
	return nil
}
