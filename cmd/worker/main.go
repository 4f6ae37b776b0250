package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/config"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/email"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/notify"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/store/rabbitmq"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}
}

const (
	maxAttempts = 3
	retryDelay  = 30 * time.Second
	sendTimeout = 30 * time.Second
)

type retrier interface {
	Retry(ctx context.Context, d amqp.Delivery, attempt int) error
}

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()
	if cfg.RabbitURL == "" {
		log.Fatalf("RABBIT_URL is required for the worker")
	}

	if !cfg.EmailEnabled() {
		log.Printf("no RESEND_API_KEY or SMTP_HOST, email disabled")
	}
	sender := email.New(cfg.ResendAPIKey, cfg.ResendAPIURL, cfg.EmailFrom, email.SMTPConfig{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.EmailFrom,
	})
	mailer := notify.NewMailer(sender, cfg.AppBaseURL)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	concurrency := workerConcurrency()
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	retries := rabbitmq.NewRetrier(ch, cfg.RabbitQueue, retryDelay)

	log.Printf("worker started, queue=%s concurrency=%d", cfg.RabbitQueue, concurrency)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				handleDelivery(ctx, workerID, mailer, retries, d)
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				close(jobs)
				wg.Wait()
				return
			}
			jobs <- d
		}
	}
}

// handleDelivery sends one queued email. Sends get their own deadline so
// deliveries drained after shutdown still go out. A failure during shutdown
// is requeued; other failures go through the retry queue until maxAttempts,
// then to the DLQ. Undecodable messages go straight to the DLQ.
func handleDelivery(ctx context.Context, workerID int, mailer *notify.Mailer, retries retrier, d amqp.Delivery) {
	msg, err := rabbitmq.Decode(d.Body)
	if err != nil {
		log.Printf("worker=%d bad message: %v", workerID, err)
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	err = mailer.Deliver(sendCtx, msg)
	cancel()
	if err == nil {
		if err := d.Ack(false); err != nil {
			log.Printf("worker=%d ack failed id=%s err=%v", workerID, msg.ID, err)
		}
		return
	}

	log.Printf("worker=%d notification %s failed kind=%s cost=%s err=%v", workerID, msg.ID, msg.Kind, time.Since(start), err)
	if ctx.Err() != nil {
		_ = d.Nack(false, true)
		return
	}

	attempt := rabbitmq.Attempt(d.Headers) + 1
	if retries != nil && attempt < maxAttempts {
		rerr := retries.Retry(ctx, d, attempt)
		if rerr == nil {
			_ = d.Ack(false)
			return
		}
		log.Printf("worker=%d retry publish failed id=%s err=%v", workerID, msg.ID, rerr)
	}
	_ = d.Nack(false, false)
}
