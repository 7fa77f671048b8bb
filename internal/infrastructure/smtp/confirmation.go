package smtp

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/taskboard-api/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var subjects = map[domain.ActionType]string{
	domain.ActionRegistration:    "Confirm your registration",
	domain.ActionEmailChange:     "Confirm your new email",
	domain.ActionConnectGoogle:   "Confirm linking your Google account",
	domain.ActionDisableGoogle:   "Confirm unlinking your Google account",
	domain.ActionAccountDeletion: "Confirm account deletion",
}

type codeEmail struct {
	Code      string
	ExpiresIn string
}

// ConfirmationSender renders a per-action email around a code and mails it.
type ConfirmationSender struct {
	mailer    Mailer
	templates map[domain.ActionType]*template.Template
	codeTTL   time.Duration
}

func NewConfirmationSender(mailer Mailer, codeTTL time.Duration) (*ConfirmationSender, error) {
	s := &ConfirmationSender{
		mailer:    mailer,
		templates: make(map[domain.ActionType]*template.Template, len(subjects)),
		codeTTL:   codeTTL,
	}
	for action := range subjects {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+string(action)+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", action, err)
		}
		s.templates[action] = t
	}
	return s, nil
}

func (s *ConfirmationSender) SendCode(ctx context.Context, to string, action domain.ActionType, code string) error {
	body, err := s.render(action, code)
	if err != nil {
		return err
	}
	return s.mailer.SendEmail(ctx, to, subjects[action], body)
}

func (s *ConfirmationSender) render(action domain.ActionType, code string) (string, error) {
	t, ok := s.templates[action]
	if !ok {
		return "", fmt.Errorf("no email template for %s", action)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", codeEmail{Code: code, ExpiresIn: s.codeTTL.String()}); err != nil {
		return "", fmt.Errorf("email data injection failed: %w", err)
	}
	return buf.String(), nil
}
