package domain

import "time"

type Board struct {
	BoardID    string    `json:"uuid" dynamodbav:"board_id"`
	UserID     string    `json:"-" dynamodbav:"user_id"`
	Title      string    `json:"title" dynamodbav:"title"`
	Color      string    `json:"color" dynamodbav:"color"`
	IsPinned   bool      `json:"isPinned" dynamodbav:"is_pinned"`
	IsFavorite bool      `json:"isFavorite" dynamodbav:"is_favorite"`
	TaskCount  int       `json:"taskCount" dynamodbav:"-"`
	CreatedAt  time.Time `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" dynamodbav:"updated_at"`
}

// UpdateBoardRequest is a partial board update. Nil fields are left untouched.
type UpdateBoardRequest struct {
	Title      *string `json:"title"`
	Color      *string `json:"color"`
	IsPinned   *bool   `json:"isPinned"`
	IsFavorite *bool   `json:"isFavorite"`
}

// BoardFields is a validated board update ready to be stored.
type BoardFields struct {
	Title      *string
	Color      *string
	IsPinned   *bool
	IsFavorite *bool
}
