package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// EndpointProvider calls a hosted chat endpoint that takes the newest user
// message plus prior turns and answers with a single response string.
type EndpointProvider struct {
	URL    string
	Client *http.Client
}

type endpointReq struct {
	Message string    `json:"message"`
	History []Message `json:"history"`
}

type endpointResp struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

func NewEndpointProvider(url string, timeout time.Duration) *EndpointProvider {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &EndpointProvider{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

func (p *EndpointProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if strings.TrimSpace(p.URL) == "" {
		return "", errors.New("endpoint: url is required")
	}
	msg, history, err := splitLast(messages)
	if err != nil {
		return "", err
	}
	if history == nil {
		history = []Message{}
	}

	var decoded endpointResp
	if err := postJSON(ctx, p.Client, "endpoint", p.URL, nil, endpointReq{Message: msg, History: history}, &decoded); err != nil {
		return "", err
	}
	if decoded.Error != "" {
		return "", errors.New(decoded.Error)
	}
	if strings.TrimSpace(decoded.Response) == "" {
		return "", errors.New("endpoint: empty response")
	}
	return decoded.Response, nil
}
