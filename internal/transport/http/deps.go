package http

import (
	"context"
	"log/slog"

	"github.com/taskboard-api/internal/application/confirmation"
	"github.com/taskboard-api/internal/domain"
	"github.com/taskboard-api/internal/infrastructure/google"
	jwtinfra "github.com/taskboard-api/internal/infrastructure/jwt"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	FindByEmailOrLogin(ctx context.Context, email, login string) (*domain.User, error)
	GetByGoogleSub(ctx context.Context, sub string) (*domain.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID string, upd domain.UserUpdate) (*domain.User, error)
	SoftDelete(ctx context.Context, userID string) error
}

// SessionRepository is the minimal interface the router requires from a session store.
type SessionRepository interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	GetByRefreshToken(ctx context.Context, token string) (*domain.Session, error)
	RotateRefreshToken(ctx context.Context, sessionID, newToken string, newExpiry int64) error
	Disable(ctx context.Context, sessionID string) error
	SoftDeleteByUser(ctx context.Context, userID string) error
}

// BoardRepository is the minimal interface the router requires from a board store.
type BoardRepository interface {
	ListByUser(ctx context.Context, userID string) ([]domain.Board, error)
	CountTasks(ctx context.Context, boardID string) (int, error)
	Update(ctx context.Context, userID, boardID string, fields domain.BoardFields) (*domain.Board, error)
}

// TempDataStore holds pending action payloads until they are confirmed.
type TempDataStore interface {
	Set(ctx context.Context, action domain.ActionType, userKey string, payload domain.Payload) error
	Get(ctx context.Context, action domain.ActionType, userKey string) (domain.Payload, bool, error)
	Delete(ctx context.Context, action domain.ActionType, userKey string) error
}

// CodeStore issues and consumes one-time confirmation codes.
type CodeStore interface {
	GenerateAndStore(ctx context.Context, userKey string, action domain.ActionType) (string, error)
	ValidateAndConsume(ctx context.Context, userKey string, action domain.ActionType, supplied string) error
	Peek(ctx context.Context, userKey string, action domain.ActionType) (string, bool, error)
	Delete(ctx context.Context, userKey string, action domain.ActionType) error
}

type TokenProvider interface {
	Sign(userID, sessionID string) (string, error)
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

type GoogleAuth interface {
	Exchange(ctx context.Context, code string) (*google.Identity, error)
}

type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo    UserRepository
	SessionRepo SessionRepository
	BoardRepo   BoardRepository
	TempData    TempDataStore
	Codes       CodeStore
	CodeSender  confirmation.CodeSender
	JWTProvider TokenProvider
	Google      GoogleAuth
	Telegram    Messenger
	Logger      *slog.Logger
}
