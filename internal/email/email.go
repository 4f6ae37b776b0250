package email

import (
	"context"
	"errors"
	"log"
)

type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers one rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var ErrNoRecipient = errors.New("email: recipient is required")

// Disabled drops every message. Used when no provider is configured.
type Disabled struct{}

func (Disabled) Send(ctx context.Context, msg Message) error {
	log.Printf("[Email] disabled, skipping to=%s subject=%q", msg.To, msg.Subject)
	return nil
}

// New picks Resend when an API key is set, then SMTP when a host is set,
// and otherwise a sender that drops everything.
func New(resendKey, resendURL, from string, smtpCfg SMTPConfig) Sender {
	switch {
	case resendKey != "":
		return NewResendSender(resendURL, resendKey, from)
	case smtpCfg.Host != "":
		if smtpCfg.From == "" {
			smtpCfg.From = from
		}
		return NewSMTPSender(smtpCfg)
	default:
		return Disabled{}
	}
}
