package domain

import "time"

type User struct {
	UserID             string     `json:"id" dynamodbav:"user_id"`
	Login              string     `json:"login" dynamodbav:"login"`
	LoginKey           string     `json:"-" dynamodbav:"login_key"` // lower-cased login, GSI key
	Email              string     `json:"email" dynamodbav:"email"`
	PasswordHash       string     `json:"-" dynamodbav:"password_hash"`
	GoogleSub          string     `json:"-" dynamodbav:"google_sub,omitempty"`
	GoogleOAuthEnabled bool       `json:"google_oauth_enabled" dynamodbav:"google_oauth_enabled"`
	TelegramID         int64      `json:"-" dynamodbav:"telegram_id,omitempty"`
	IsDeleted          bool       `json:"-" dynamodbav:"is_deleted"`
	DeletedAt          *time.Time `json:"-" dynamodbav:"deleted_at,omitempty"`
	CreatedAt          time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt          time.Time  `json:"updated" dynamodbav:"updated_at"`
}

// HasGoogle reports whether a Google account is linked.
func (u *User) HasGoogle() bool { return u.GoogleSub != "" }

// UserUpdate lists the mutable fields of a user. Nil fields are left untouched.
type UserUpdate struct {
	Email              *string
	Login              *string
	GoogleSub          *string
	GoogleOAuthEnabled *bool
}

func (u UserUpdate) Empty() bool {
	return u.Email == nil && u.Login == nil && u.GoogleSub == nil && u.GoogleOAuthEnabled == nil
}

// RegistrationRequest is the body of the registration start endpoint.
type RegistrationRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Login    string `json:"login" validate:"required,login"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// EmailChangeRequest is the body of the email/login change start endpoint.
type EmailChangeRequest struct {
	Email *string `json:"email" validate:"omitempty,email,max=254"`
	Login *string `json:"login" validate:"omitempty,login"`
}

// ConfirmationRequest carries the code typed by the user.
type ConfirmationRequest struct {
	ConfirmationCode string `json:"confirmationCode" validate:"required,max=16"`
}
