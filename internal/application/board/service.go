package board

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/taskboard-api/internal/domain"
)

const maxTitleLen = 100

var hexColor = regexp.MustCompile(`^#([0-9a-f]{3}|[0-9a-f]{6})$`)

type Service interface {
	List(ctx context.Context, userID string) ([]domain.Board, int, error)
	Update(ctx context.Context, userID, boardID string, req domain.UpdateBoardRequest) (*domain.Board, error)
}

type boardStore interface {
	ListByUser(ctx context.Context, userID string) ([]domain.Board, error)
	CountTasks(ctx context.Context, boardID string) (int, error)
	Update(ctx context.Context, userID, boardID string, fields domain.BoardFields) (*domain.Board, error)
}

type ServiceDeps struct {
	BoardRepo boardStore
}

type service struct {
	repo boardStore
}

func NewService(deps ServiceDeps) Service {
	return &service{repo: deps.BoardRepo}
}

// List returns the user's boards with their task counts and the board total.
func (s *service) List(ctx context.Context, userID string) ([]domain.Board, int, error) {
	boards, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	for i := range boards {
		n, err := s.repo.CountTasks(ctx, boards[i].BoardID)
		if err != nil {
			return nil, 0, fmt.Errorf("count tasks of %s: %w", boards[i].BoardID, err)
		}
		boards[i].TaskCount = n
	}
	if boards == nil {
		boards = []domain.Board{}
	}
	return boards, len(boards), nil
}

func (s *service) Update(ctx context.Context, userID, boardID string, req domain.UpdateBoardRequest) (*domain.Board, error) {
	var fields domain.BoardFields
	if req.Title != nil {
		title, err := ValidateTitle(*req.Title)
		if err != nil {
			return nil, err
		}
		fields.Title = &title
	}
	if req.Color != nil {
		color := SanitizeColor(*req.Color)
		if !hexColor.MatchString(color) {
			return nil, fmt.Errorf("color must be a hex value like #a1b2c3: %w", domain.ErrBadRequest)
		}
		fields.Color = &color
	}
	fields.IsPinned = req.IsPinned
	fields.IsFavorite = req.IsFavorite
	if fields.Title == nil && fields.Color == nil && fields.IsPinned == nil && fields.IsFavorite == nil {
		return nil, fmt.Errorf("nothing to update: %w", domain.ErrBadRequest)
	}

	if fields.Title != nil {
		if err := s.checkTitleFree(ctx, userID, boardID, *fields.Title); err != nil {
			return nil, err
		}
	}
	return s.repo.Update(ctx, userID, boardID, fields)
}

// checkTitleFree rejects a title already used by another board of the same user.
func (s *service) checkTitleFree(ctx context.Context, userID, boardID, title string) error {
	boards, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	owned := false
	for _, b := range boards {
		if b.BoardID == boardID {
			owned = true
			continue
		}
		if strings.EqualFold(b.Title, title) {
			return fmt.Errorf("board title in use: %w", &domain.ConflictError{Field: domain.FieldTitle})
		}
	}
	if !owned {
		return fmt.Errorf("board not found: %w", domain.ErrNotFound)
	}
	return nil
}

// ValidateTitle trims a board title and checks its length.
func ValidateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("title must not be empty: %w", domain.ErrBadRequest)
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return "", fmt.Errorf("title must be at most %d characters: %w", maxTitleLen, domain.ErrBadRequest)
	}
	return title, nil
}

// SanitizeColor lower-cases a color and adds the leading '#'.
func SanitizeColor(color string) string {
	color = strings.ToLower(strings.TrimSpace(color))
	if color != "" && !strings.HasPrefix(color, "#") {
		color = "#" + color
	}
	return color
}
