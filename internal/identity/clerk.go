package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ClerkClient talks to the Clerk Backend API with a secret key.
type ClerkClient struct {
	BaseURL   string
	SecretKey string
	PageSize  int
	Client    *http.Client
}

func NewClerkClient(baseURL, secretKey string) *ClerkClient {
	if baseURL == "" {
		baseURL = "https://api.clerk.com/v1"
	}
	return &ClerkClient{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		SecretKey: secretKey,
		PageSize:  100,
		Client:    &http.Client{Timeout: 15 * time.Second},
	}
}

type clerkEmail struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

type clerkUser struct {
	ID                    string         `json:"id"`
	FirstName             *string        `json:"first_name"`
	LastName              *string        `json:"last_name"`
	ImageURL              string         `json:"image_url"`
	PrimaryEmailAddressID string         `json:"primary_email_address_id"`
	EmailAddresses        []clerkEmail   `json:"email_addresses"`
	PublicMetadata        map[string]any `json:"public_metadata"`
	Banned                bool           `json:"banned"`
	LastActiveAt          *int64         `json:"last_active_at"`
	CreatedAt             int64          `json:"created_at"`
}

type clerkErrorResp struct {
	Errors []struct {
		Message     string `json:"message"`
		LongMessage string `json:"long_message"`
		Code        string `json:"code"`
	} `json:"errors"`
}

func (u clerkUser) toUser() User {
	out := User{
		ID:        u.ID,
		ImageURL:  u.ImageURL,
		Banned:    u.Banned,
		CreatedAt: time.UnixMilli(u.CreatedAt).UTC(),
		Role:      RoleUser,
	}
	if u.FirstName != nil {
		out.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		out.LastName = *u.LastName
	}
	if u.LastActiveAt != nil {
		t := time.UnixMilli(*u.LastActiveAt).UTC()
		out.LastActiveAt = &t
	}
	if role, ok := u.PublicMetadata["role"].(string); ok {
		out.Role = ParseRole(role)
	}
	for _, e := range u.EmailAddresses {
		if e.ID == u.PrimaryEmailAddressID {
			out.Email = e.EmailAddress
			break
		}
	}
	if out.Email == "" && len(u.EmailAddresses) > 0 {
		out.Email = u.EmailAddresses[0].EmailAddress
	}
	return out
}

func (c *ClerkClient) do(ctx context.Context, method, path string, body any, out any) error {
	if c.Client == nil {
		return errors.New("clerk: http client is nil")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("clerk: secret key is required")
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		var decoded clerkErrorResp
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &decoded) == nil && len(decoded.Errors) > 0 {
			msg = decoded.Errors[0].Message
			if decoded.Errors[0].LongMessage != "" {
				msg = decoded.Errors[0].LongMessage
			}
		}
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return fmt.Errorf("clerk: %s %s: %s", method, path, msg)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *ClerkClient) GetUser(ctx context.Context, userID string) (*User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrNotFound
	}
	var u clerkUser
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID), nil, &u); err != nil {
		return nil, err
	}
	out := u.toUser()
	return &out, nil
}

// ListUsers pages through every user, newest first.
func (c *ClerkClient) ListUsers(ctx context.Context) ([]User, error) {
	pageSize := c.PageSize
	if pageSize <= 0 || pageSize > 500 {
		pageSize = 100
	}

	var out []User
	for offset := 0; ; offset += pageSize {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(pageSize))
		q.Set("offset", strconv.Itoa(offset))
		q.Set("order_by", "-created_at")

		var page []clerkUser
		if err := c.do(ctx, http.MethodGet, "/users?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		for _, u := range page {
			out = append(out, u.toUser())
		}
		if len(page) < pageSize {
			return out, nil
		}
	}
}

func (c *ClerkClient) SetRole(ctx context.Context, userID string, role Role) error {
	body := map[string]any{
		"public_metadata": map[string]any{"role": string(role)},
	}
	return c.do(ctx, http.MethodPatch, "/users/"+url.PathEscape(userID)+"/metadata", body, nil)
}

func (c *ClerkClient) DeleteUser(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(userID), nil, nil)
}
