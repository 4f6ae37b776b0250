package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/ai"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/auth"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/chat"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/config"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/db"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/email"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/httpapi"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/httpapi/handlers"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/identity"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/notify"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/store/rabbitmq"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/store/redisstore"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/tracing"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/usage"
	"github.com/joho/godotenv"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}
}

func buildRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()
	for _, ep := range cfg.ModelEndpoints {
		reg.Register(ep.ID, "", ai.NewEndpointProvider(ep.URL, cfg.ChatTimeout))
	}
	if cfg.OllamaBaseURL != "" {
		reg.Register("ollama", "Ollama", ai.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.ChatTimeout))
	}
	if cfg.OpenRouterAPIKey != "" && cfg.OpenRouterModel != "" {
		reg.Register("openrouter", "OpenRouter", ai.NewOpenRouterProvider(
			cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, cfg.OpenRouterModel,
			cfg.OpenRouterSiteURL, cfg.OpenRouterAppName, cfg.ChatTimeout,
		))
	}
	if cfg.DefaultModel != "" {
		if err := reg.SetDefault(cfg.DefaultModel); err != nil {
			log.Printf("CHAT_DEFAULT_MODEL ignored: %v", err)
		}
	}
	return reg
}

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, "chatbot-api", cfg.OTelEndpoint)
	if err != nil {
		log.Printf("tracing disabled: %v", err)
	}

	gdb := db.Connect(cfg.DBDSN)
	usageSvc := usage.NewService(usage.NewRepo(gdb))

	if cfg.ClerkSecretKey == "" {
		log.Printf("CLERK_SECRET_KEY is empty, admin endpoints will fail")
	}
	users := identity.NewClerkClient(cfg.ClerkAPIURL, cfg.ClerkSecretKey)

	verifier, err := auth.NewVerifier(cfg.ClerkJWTKey, cfg.JWTSecret)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	reg := buildRegistry(cfg)
	chatSvc := chat.NewService(reg, cfg.ChatContextWindowSize, chat.Creator{Name: cfg.CreatorName, URL: cfg.CreatorURL})

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
	var notifier notify.Notifier = notify.NewMailer(sender, cfg.AppBaseURL)
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Printf("rabbit unavailable, sending emails inline: %v", err)
		} else {
			defer pub.Close()
			notifier = pub
			log.Printf("emails queued on %s", cfg.RabbitQueue)
		}
	}

	var roles handlers.RoleCache
	if cfg.RedisAddr != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		store, err := redisstore.New(pingCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RoleCacheTTL)
		cancel()
		if err != nil {
			log.Printf("redis unavailable, role cache disabled: %v", err)
		} else {
			defer store.Close()
			roles = store
		}
	}

	h := handlers.NewHandler(usageSvc, users, chatSvc, reg, notifier, roles)
	r := httpapi.NewRouter(cfg, h, verifier)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("listening on %s models=%d default=%s", cfg.HTTPAddr, len(reg.Models()), reg.Default())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("tracing shutdown: %v", err)
	}
}
