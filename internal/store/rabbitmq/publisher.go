package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/notify"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher enqueues notification emails for cmd/worker.
type Publisher struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := DeclareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Encode is the wire form of a queued notification.
func Encode(msg notify.Message) ([]byte, error) {
	return json.Marshal(msg)
}

func Decode(body []byte) (notify.Message, error) {
	var msg notify.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return notify.Message{}, err
	}
	if msg.ID == "" || msg.Kind == "" || strings.TrimSpace(msg.To) == "" {
		return notify.Message{}, errors.New("rabbitmq: incomplete notification message")
	}
	return msg, nil
}

// Notify publishes msg as a persistent message on the notification queue.
func (p *Publisher) Notify(ctx context.Context, msg notify.Message) error {
	body, err := Encode(msg)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// amqp channels are not safe for concurrent publishes
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Type:         string(msg.Kind),
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}
