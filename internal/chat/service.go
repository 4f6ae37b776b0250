package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/ai"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/format"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrEmptyMessage = errors.New("message is required")

type Request struct {
	Model   string
	Message string
	History []ai.Message
}

type Reply struct {
	Content  string
	HTML     string
	Model    string
	Fallback bool
	Canned   bool
}

// Creator is who the canned "who built you" answer points at.
type Creator struct {
	Name string
	URL  string
}

type Service struct {
	registry          *ai.Registry
	contextWindowSize int
	creator           Creator
}

func NewService(registry *ai.Registry, contextWindowSize int, creator Creator) *Service {
	if contextWindowSize <= 0 || contextWindowSize > 100 {
		contextWindowSize = 20
	}
	return &Service{registry: registry, contextWindowSize: contextWindowSize, creator: creator}
}

var (
	identityKeywords = []string{"who", "person", "name", "developer", "creator", "made", "built", "created", "developed", "founder", "engineer"}
	subjectKeywords  = []string{"you", "this", "chatbot", "ai", "assistant", "bot"}
)

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// AsksAboutCreator reports whether a message asks who built the assistant.
// Matching is by plain substring, so "whole" counts as "who".
func AsksAboutCreator(message string) bool {
	lower := strings.ToLower(message)
	return containsAny(lower, identityKeywords) && containsAny(lower, subjectKeywords)
}

func (s *Service) creatorReply() string {
	name := s.creator.Name
	if name == "" {
		name = "an independent developer"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "I was developed by %s.\n\n", name)
	b.WriteString("This chatbot lets you pick between several language models and chat with them from one place.\n\n")
	if s.creator.URL != "" {
		fmt.Fprintf(&b, "You can explore more of the work and portfolio here: %s", s.creator.URL)
	}
	return strings.TrimSpace(b.String())
}

func fallbackMessage(label string) string {
	return fmt.Sprintf("Sorry, the %s model is not responding right now. Please try again.", label)
}

// window keeps the newest turns with a valid role, leaving room for the
// message being sent.
func (s *Service) window(history []ai.Message, message string) []ai.Message {
	valid := make([]ai.Message, 0, len(history))
	for _, m := range history {
		if (m.Role != ai.RoleUser && m.Role != ai.RoleAssistant) || strings.TrimSpace(m.Content) == "" {
			continue
		}
		valid = append(valid, m)
	}
	if keep := s.contextWindowSize - 1; len(valid) > keep {
		valid = valid[len(valid)-keep:]
	}
	return append(valid, ai.Message{Role: ai.RoleUser, Content: message})
}

func (s *Service) Reply(ctx context.Context, req Request) (Reply, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return Reply{}, ErrEmptyMessage
	}

	if AsksAboutCreator(message) {
		content := s.creatorReply()
		return Reply{Content: content, HTML: format.ToHTML(content), Model: req.Model, Canned: true}, nil
	}

	model, err := s.registry.Get(req.Model)
	if err != nil {
		return Reply{}, err
	}

	ctx, span := otel.Tracer("chat").Start(ctx, "chat.reply")
	defer span.End()
	span.SetAttributes(
		attribute.String("chat.model", model.ID),
		attribute.Int("chat.history_len", len(req.History)),
	)

	content, err := model.Provider.Chat(ctx, s.window(req.History, message))
	if err == nil && strings.TrimSpace(content) == "" {
		err = errors.New("empty reply")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Printf("[ChatReply] provider failed model=%s err=%v", model.ID, err)
		content = fallbackMessage(model.Label)
		return Reply{Content: content, HTML: format.ToHTML(content), Model: model.ID, Fallback: true}, nil
	}

	return Reply{Content: content, HTML: format.ToHTML(content), Model: model.ID}, nil
}
