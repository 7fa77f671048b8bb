package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/taskboard-api/internal/domain"
)

const (
	CommandProfile = "profile"

	replyNotLinked = "Your Telegram account is not linked to a TaskBoard account."
	replyUnknown   = "Unknown command. Try /profile."
)

type Service interface {
	// HandleCommand answers a bot command sent by telegramID in chatID.
	// Commands the bot does not know get a short hint.
	HandleCommand(ctx context.Context, telegramID, chatID int64, command string) error
}

type userStore interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error)
}

type messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type ServiceDeps struct {
	UserRepo  userStore
	Messenger messenger
	Logger    *slog.Logger
}

type service struct {
	users userStore
	out   messenger
	log   *slog.Logger
}

func NewService(deps ServiceDeps) Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &service{users: deps.UserRepo, out: deps.Messenger, log: deps.Logger}
}

func (s *service) HandleCommand(ctx context.Context, telegramID, chatID int64, command string) error {
	var text string
	switch command {
	case CommandProfile:
		var err error
		text, err = s.profile(ctx, telegramID)
		if err != nil {
			return err
		}
	default:
		text = replyUnknown
	}
	if err := s.out.SendMessage(ctx, chatID, text); err != nil {
		return fmt.Errorf("reply to %s: %w", command, err)
	}
	s.log.Info("telegram command handled", "command", command, "telegram_id", telegramID)
	return nil
}

func (s *service) profile(ctx context.Context, telegramID int64) (string, error) {
	u, err := s.users.GetByTelegramID(ctx, telegramID)
	if errors.Is(err, domain.ErrNotFound) {
		return replyNotLinked, nil
	}
	if err != nil {
		return "", err
	}
	if u.IsDeleted {
		return replyNotLinked, nil
	}
	return FormatProfile(u), nil
}

// FormatProfile renders the safe projection of a user as a chat message.
func FormatProfile(u *domain.User) string {
	google := "not linked"
	if u.HasGoogle() {
		google = "linked"
		if !u.GoogleOAuthEnabled {
			google = "linked, sign-in disabled"
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Login: %s\n", u.Login)
	fmt.Fprintf(&b, "Email: %s\n", u.Email)
	fmt.Fprintf(&b, "Google: %s\n", google)
	fmt.Fprintf(&b, "Member since: %s", u.CreatedAt.Format("2006-01-02"))
	return b.String()
}
