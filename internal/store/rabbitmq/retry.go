package rabbitmq

import (
	"context"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AttemptHeader counts how many times a notification has already failed.
const AttemptHeader = "x-attempt"

type channelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Retrier parks failed deliveries on the retry queue. The queue has no
// consumer; once Delay expires the broker dead-letters the message back onto
// the main queue.
type Retrier struct {
	mu    sync.Mutex
	ch    channelPublisher
	queue string
	Delay time.Duration
}

func NewRetrier(ch *amqp.Channel, queue string, delay time.Duration) *Retrier {
	return newRetrier(ch, queue, delay)
}

func newRetrier(ch channelPublisher, queue string, delay time.Duration) *Retrier {
	if delay <= 0 {
		delay = 30 * time.Second
	}
	return &Retrier{ch: ch, queue: queue, Delay: delay}
}

// Attempt reads AttemptHeader; a fresh message is attempt 0.
func Attempt(h amqp.Table) int {
	switch v := h[AttemptHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// Retry republishes d with attempt recorded and a per-message TTL of Delay.
func (r *Retrier) Retry(ctx context.Context, d amqp.Delivery, attempt int) error {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ch.PublishWithContext(cctx, "", RetryQueue(r.queue), false, false, r.publishing(d, attempt))
}

func (r *Retrier) publishing(d amqp.Delivery, attempt int) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Type:         d.Type,
		Body:         d.Body,
		Timestamp:    time.Now(),
		Expiration:   strconv.FormatInt(r.Delay.Milliseconds(), 10),
		Headers:      amqp.Table{AttemptHeader: int32(attempt)},
	}
}
