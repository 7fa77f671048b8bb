package smtp

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/taskboard-api/internal/config"
)

// Mailer sends HTML emails.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

type mailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewMailer(cfg config.SMTP) Mailer {
	return &mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// SendEmail gives up when ctx ends. A handshake that completes after ctx ended
// is closed without sending. Once the message transfer has begun it cannot be
// interrupted and finishes in the background.
func (m *mailer) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	done := make(chan error, 1)
	go func() {
		sc, err := m.dialer.Dial()
		if err != nil {
			done <- err
			return
		}
		if ctx.Err() != nil {
			_ = sc.Close()
			done <- ctx.Err()
			return
		}
		err = gomail.Send(sc, msg)
		if cerr := sc.Close(); err == nil {
			err = cerr
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send email: %w", ctx.Err())
	}
}
