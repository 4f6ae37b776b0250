package usage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidKind = errors.New(`invalid type. Must be "request" or "response"`)
	ErrNoUser      = errors.New("user id is required")
)

type Service struct {
	repo *Repo
}

func NewService(repo *Repo) *Service {
	return &Service{repo: repo}
}

// Track increments the counter named by kind ("request" or "response").
func (s *Service) Track(ctx context.Context, userID string, kind string) (*Counter, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrNoUser
	}
	k := Kind(kind)
	if !k.Valid() {
		return nil, ErrInvalidKind
	}
	c, err := s.repo.Increment(ctx, userID, k)
	if err != nil {
		return nil, fmt.Errorf("increment %s count: %w", k, err)
	}
	return c, nil
}

func (s *Service) Stats(ctx context.Context, userID string) (*Counter, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrNoUser
	}
	return s.repo.Get(ctx, userID)
}

func (s *Service) Reset(ctx context.Context, userID string) (*Counter, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrNoUser
	}
	c, err := s.repo.Reset(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reset counts: %w", err)
	}
	return c, nil
}

func (s *Service) ResetAll(ctx context.Context) (int64, error) {
	n, err := s.repo.ResetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("reset all counts: %w", err)
	}
	return n, nil
}

// CountsFor returns counters for the given users; missing users map to zero.
func (s *Service) CountsFor(ctx context.Context, userIDs []string) (map[string]Counter, error) {
	stored, err := s.repo.ListByUserIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("list counts: %w", err)
	}
	for _, id := range userIDs {
		if _, ok := stored[id]; !ok {
			stored[id] = Counter{UserID: id}
		}
	}
	return stored, nil
}

// Forget drops the counter row of a deleted identity.
func (s *Service) Forget(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrNoUser
	}
	return s.repo.Delete(ctx, userID)
}
