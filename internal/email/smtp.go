package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// SMTPSender relays HTML mail through an SMTP server.
type SMTPSender struct {
	Cfg SMTPConfig
	// send is swapped in tests
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPSender{Cfg: cfg, send: smtp.SendMail}
}

// envelopeAddr strips a display name: "App <a@b.c>" -> "a@b.c".
func envelopeAddr(from string) string {
	if i := strings.LastIndex(from, "<"); i >= 0 {
		if j := strings.LastIndex(from, ">"); j > i {
			return from[i+1 : j]
		}
	}
	return strings.TrimSpace(from)
}

func buildMIME(from, to, subject, html string, now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	return []byte(b.String())
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.Cfg.User != "" {
		auth = smtp.PlainAuth("", s.Cfg.User, s.Cfg.Pass, s.Cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.Cfg.Host, s.Cfg.Port)
	body := buildMIME(s.Cfg.From, msg.To, msg.Subject, msg.HTML, time.Now())
	return s.send(addr, auth, envelopeAddr(s.Cfg.From), []string{msg.To}, body)
}
