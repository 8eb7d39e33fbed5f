package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.opentelemetry.io/otel/codes"

	"github.com/jordan-wright/email"
)

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"emailAddress"`
	Password     string `json:"password"`
	To           string `json:"to"`
}

type Email struct {
	config SmtpConfig
}

func NewEmail(config SmtpConfig) *Email {
	return &Email{config: config}
}

func (e *Email) Send(ctx context.Context, subject, text string) error {
	_, span := tracer.Start(ctx, "email:Send")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Arbor Watch <%s>", e.config.EmailAddress)
	mail.To = []string{e.config.To}
	mail.Subject = subject
	mail.Text = []byte(text)

	addr := fmt.Sprintf("%s:%d", e.config.Server, e.config.Port)
	err := mail.Send(addr,
		smtp.PlainAuth("", e.config.EmailAddress, e.config.Password, e.config.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return fmt.Errorf("email: %w", err)
	}
	return nil
}
