package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider produces the next assistant turn for a conversation whose last
// message is the user's.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

var ErrEmptyConversation = errors.New("ai: conversation has no user message")

// splitLast separates the newest user message from the turns before it.
func splitLast(messages []Message) (string, []Message, error) {
	if len(messages) == 0 {
		return "", nil, ErrEmptyConversation
	}
	last := messages[len(messages)-1]
	if last.Role != RoleUser || strings.TrimSpace(last.Content) == "" {
		return "", nil, ErrEmptyConversation
	}
	return last.Content, messages[:len(messages)-1], nil
}

// postJSON sends body as JSON and decodes a 2xx reply into out. Non-2xx
// replies become errors carrying up to 4KiB of the body.
func postJSON(ctx context.Context, client *http.Client, name, url string, headers map[string]string, body, out any) error {
	if client == nil {
		return fmt.Errorf("%s: http client is nil", name)
	}

	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return fmt.Errorf("%s: %s", name, msg)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
