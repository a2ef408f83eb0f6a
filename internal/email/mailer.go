package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/storygraph/storygraph/internal/validate"
)

type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Mailer renders the account emails and hands them to a Sender.
type Mailer struct {
	sender   Sender
	siteName string
}

func NewMailer(sender Sender, siteName string) *Mailer {
	return &Mailer{sender: sender, siteName: siteName}
}

func (m *Mailer) SendPasswordReset(ctx context.Context, to, token, url string) error {
	to, err := validate.Email(to)
	if err != nil {
		return err
	}
	link := url
	if token != "" {
		link = fmt.Sprintf("%s?token=%s", url, token)
	}
	site := validate.SanitizeHTML(m.siteName)
	id, err := m.sender.Send(ctx, Message{
		To:      to,
		Subject: fmt.Sprintf("Reset your %s password", m.siteName),
		HTML: fmt.Sprintf(`<p>Someone asked to reset the password for your %s account.</p>`+
			`<p><a href="%s">Choose a new password</a></p>`+
			`<p>If this was not you, ignore this email.</p>`, site, validate.SanitizeHTML(link)),
		Text: fmt.Sprintf("Reset your %s password: %s\n\nIf this was not you, ignore this email.", m.siteName, link),
	})
	if err != nil {
		return err
	}
	slog.Info("password reset email sent", "email_id", id)
	return nil
}

func (m *Mailer) SendVerification(ctx context.Context, to, code string) error {
	to, err := validate.Email(to)
	if err != nil {
		return err
	}
	site := validate.SanitizeHTML(m.siteName)
	id, err := m.sender.Send(ctx, Message{
		To:      to,
		Subject: fmt.Sprintf("Your %s verification code", m.siteName),
		HTML: fmt.Sprintf(`<p>Your %s verification code is</p><h2>%s</h2>`+
			`<p>The code expires in 15 minutes.</p>`, site, validate.SanitizeHTML(code)),
		Text: fmt.Sprintf("Your %s verification code is %s. It expires in 15 minutes.", m.siteName, code),
	})
	if err != nil {
		return err
	}
	slog.Info("verification email sent", "email_id", id)
	return nil
}
