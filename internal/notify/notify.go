// Package notify carries the emails sent after admin actions, either
// directly or through the queue consumed by cmd/worker.
package notify

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/common"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/email"
)

type Message struct {
	ID        string     `json:"id"`
	Kind      email.Kind `json:"kind"`
	To        string     `json:"to"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
}

func NewMessage(kind email.Kind, to, name string) (Message, error) {
	id, err := common.NewULID()
	if err != nil {
		return Message{}, err
	}
	return Message{ID: id, Kind: kind, To: to, Name: name, CreatedAt: time.Now().UTC()}, nil
}

// Notifier hands a message off for delivery.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

var ErrNoAddress = errors.New("notify: recipient has no email address")

// Mailer renders and sends messages in the caller's goroutine.
type Mailer struct {
	Sender  email.Sender
	BaseURL string
}

func NewMailer(sender email.Sender, baseURL string) *Mailer {
	return &Mailer{Sender: sender, BaseURL: baseURL}
}

func (m *Mailer) Notify(ctx context.Context, msg Message) error {
	return m.Deliver(ctx, msg)
}

func (m *Mailer) Deliver(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoAddress
	}
	subject, html, err := email.Render(msg.Kind, msg.Name, m.BaseURL)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := m.Sender.Send(ctx, email.Message{To: msg.To, Subject: subject, HTML: html}); err != nil {
		return err
	}
	log.Printf("[Notify] sent id=%s kind=%s to=%s cost=%s", msg.ID, msg.Kind, msg.To, time.Since(start))
	return nil
}

// Send builds and dispatches one notification, logging any failure. It never
// returns an error: the admin action that triggered it has already succeeded.
func Send(ctx context.Context, n Notifier, kind email.Kind, to, name string) {
	if n == nil {
		return
	}
	msg, err := NewMessage(kind, to, name)
	if err != nil {
		log.Printf("[Notify] build failed kind=%s to=%s err=%v", kind, to, err)
		return
	}
	if err := n.Notify(ctx, msg); err != nil {
		log.Printf("[Notify] failed id=%s kind=%s to=%s err=%v", msg.ID, kind, to, err)
	}
}
