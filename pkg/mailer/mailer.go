package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/noah-isme/lms-portal-api/pkg/config"
)

// Message describes an outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
	HTML    bool
}

// Mailer delivers messages over SMTP.
type Mailer struct {
	cfg    config.SMTPConfig
	dialer *gomail.Dialer
}

// New constructs a Mailer from SMTP configuration.
func New(cfg config.SMTPConfig) *Mailer {
	return &Mailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// Send delivers a single message. Callers run this from a worker, not the request path.
func (m *Mailer) Send(msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("recipient required")
	}

	mail := gomail.NewMessage()
	mail.SetHeader("From", m.cfg.From)
	mail.SetHeader("To", msg.To)
	mail.SetHeader("Subject", msg.Subject)
	if msg.HTML {
		mail.SetBody("text/html", msg.Body)
	} else {
		mail.SetBody("text/plain", msg.Body)
	}

	if err := m.dialer.DialAndSend(mail); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}
