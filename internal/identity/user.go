package identity

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Role is the authorization tag kept in the provider's public metadata.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// ParseRole maps a metadata value to a Role. Anything unknown is a plain user.
func ParseRole(s string) Role {
	switch Role(strings.TrimSpace(s)) {
	case RoleAdmin:
		return RoleAdmin
	case RoleSuperAdmin:
		return RoleSuperAdmin
	default:
		return RoleUser
	}
}

// IsAdmin reports whether the role may use the admin API.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// ActiveWindow is how recently a user must have been seen to count as active.
const ActiveWindow = 7 * 24 * time.Hour

var ErrNotFound = errors.New("identity: user not found")

type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	ImageURL     string
	Role         Role
	Banned       bool
	LastActiveAt *time.Time
	CreatedAt    time.Time
}

// DisplayName is the name shown in the admin user list.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return "Unknown User"
}

// Greeting is the name used to address the user in emails.
func (u User) Greeting() string {
	if u.FirstName == "" {
		return "User"
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IsActive: not banned, and either never tracked or seen within ActiveWindow.
func (u User) IsActive(now time.Time) bool {
	if u.Banned {
		return false
	}
	if u.LastActiveAt == nil {
		return true
	}
	return u.LastActiveAt.After(now.Add(-ActiveWindow))
}

// LastSeen falls back to the sign-up time for users with no activity record.
func (u User) LastSeen() time.Time {
	if u.LastActiveAt != nil {
		return *u.LastActiveAt
	}
	return u.CreatedAt
}

// Provider is the subset of the identity service this app relies on.
type Provider interface {
	GetUser(ctx context.Context, userID string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	SetRole(ctx context.Context, userID string, role Role) error
	DeleteUser(ctx context.Context, userID string) error
}
