package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/common"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/email"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/httpapi/middleware"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/identity"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/notify"
	"github.com/gin-gonic/gin"
)

const CallerRoleKey = "caller_role"

// RequireAdmin lets through callers whose identity-provider role is admin or
// super_admin. Must run after middleware.AuthRequired.
func (h *Handler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := callerID(c)
		if !ok {
			unauthorized(c)
			return
		}
		role, err := h.callerRole(c, uid)
		if err != nil {
			internalError(c, "RequireAdmin", err)
			return
		}
		if !role.IsAdmin() {
			common.Fail(c, http.StatusForbidden, 40300, "Forbidden")
			return
		}
		c.Set(CallerRoleKey, role)
		c.Next()
	}
}

func (h *Handler) callerRole(c *gin.Context, uid string) (identity.Role, error) {
	ctx := c.Request.Context()
	if h.Roles != nil {
		role, ok, err := h.Roles.GetRole(ctx, uid)
		if err != nil {
			log.Printf("[RequireAdmin] role cache read failed uid=%s err=%v", uid, err)
		} else if ok {
			return role, nil
		}
	}

	u, err := h.Users.GetUser(ctx, uid)
	if err != nil {
		return "", err
	}
	if h.Roles != nil {
		if err := h.Roles.SetRole(ctx, uid, u.Role); err != nil {
			log.Printf("[RequireAdmin] role cache write failed uid=%s err=%v", uid, err)
		}
	}
	return u.Role, nil
}

func (h *Handler) forgetRole(c *gin.Context, uid string) {
	if h.Roles == nil {
		return
	}
	if err := h.Roles.DeleteRole(c.Request.Context(), uid); err != nil {
		log.Printf("[RoleCache] invalidate failed uid=%s err=%v", uid, err)
	}
}

// notifyUser emails the user about an admin action. Failures are logged only.
func (h *Handler) notifyUser(c *gin.Context, kind email.Kind, u *identity.User) {
	if u == nil || u.Email == "" {
		log.Printf("[Notify] no email for user kind=%s", kind)
		return
	}
	notify.Send(c.Request.Context(), h.Notifier, kind, u.Email, u.Greeting())
}

type UserData struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Email         string        `json:"email"`
	Avatar        string        `json:"avatar"`
	Role          identity.Role `json:"role"`
	IsActive      bool          `json:"isActive"`
	LastSeen      time.Time     `json:"lastSeen"`
	JoinDate      time.Time     `json:"joinDate"`
	RequestCount  int64         `json:"requestCount"`
	ResponseCount int64         `json:"responseCount"`
}

func (h *Handler) ListUsers(c *gin.Context) {
	ctx := c.Request.Context()
	users, err := h.Users.ListUsers(ctx)
	if err != nil {
		internalError(c, "ListUsers", err)
		return
	}

	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	counts, err := h.Usage.CountsFor(ctx, ids)
	if err != nil {
		internalError(c, "ListUsers", err)
		return
	}

	now := time.Now()
	out := make([]UserData, 0, len(users))
	for _, u := range users {
		mail := u.Email
		if mail == "" {
			mail = "No email"
		}
		cnt := counts[u.ID]
		out = append(out, UserData{
			ID:            u.ID,
			Name:          u.DisplayName(),
			Email:         mail,
			Avatar:        u.ImageURL,
			Role:          u.Role,
			IsActive:      u.IsActive(now),
			LastSeen:      u.LastSeen(),
			JoinDate:      u.CreatedAt,
			RequestCount:  cnt.RequestCount,
			ResponseCount: cnt.ResponseCount,
		})
	}
	common.OK(c, gin.H{"users": out})
}

// Stats summarises the user base for the admin dashboard.
func (h *Handler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	users, err := h.Users.ListUsers(ctx)
	if err != nil {
		internalError(c, "AdminStats", err)
		return
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	counts, err := h.Usage.CountsFor(ctx, ids)
	if err != nil {
		internalError(c, "AdminStats", err)
		return
	}

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var active, admins, newToday int
	var requests, responses int64
	for _, u := range users {
		if u.IsActive(now) {
			active++
		}
		if u.Role.IsAdmin() {
			admins++
		}
		if !u.CreatedAt.Before(today) {
			newToday++
		}
		requests += counts[u.ID].RequestCount
		responses += counts[u.ID].ResponseCount
	}

	common.OK(c, gin.H{
		"totalUsers":     len(users),
		"activeUsers":    active,
		"adminUsers":     admins,
		"newUsersToday":  newToday,
		"totalRequests":  requests,
		"totalResponses": responses,
	})
}

func (h *Handler) PromoteUser(c *gin.Context) {
	h.changeRole(c, identity.RoleAdmin, email.KindPromote)
}

func (h *Handler) DemoteUser(c *gin.Context) {
	h.changeRole(c, identity.RoleUser, email.KindDemote)
}

func (h *Handler) changeRole(c *gin.Context, role identity.Role, kind email.Kind) {
	ctx := c.Request.Context()
	target := c.Param("userId")

	if err := h.Users.SetRole(ctx, target, role); err != nil {
		internalError(c, "ChangeRole", err)
		return
	}
	h.forgetRole(c, target)
	log.Printf("[ChangeRole] uid=%s role=%s by=%s", target, role, c.GetString(middleware.UserIDKey))

	u, err := h.Users.GetUser(ctx, target)
	if err != nil {
		log.Printf("[ChangeRole] lookup for email failed uid=%s err=%v", target, err)
	} else {
		h.notifyUser(c, kind, u)
	}
	common.OK(c, gin.H{"success": true})
}

func (h *Handler) DeleteUser(c *gin.Context) {
	ctx := c.Request.Context()
	target := c.Param("userId")

	// read first: the address is gone once the account is
	u, err := h.Users.GetUser(ctx, target)
	if err != nil {
		internalError(c, "DeleteUser", err)
		return
	}
	if err := h.Users.DeleteUser(ctx, target); err != nil {
		internalError(c, "DeleteUser", err)
		return
	}
	h.forgetRole(c, target)
	if err := h.Usage.Forget(ctx, target); err != nil {
		log.Printf("[DeleteUser] counter cleanup failed uid=%s err=%v", target, err)
	}
	log.Printf("[DeleteUser] uid=%s by=%s", target, c.GetString(middleware.UserIDKey))

	h.notifyUser(c, email.KindDelete, u)
	common.OK(c, gin.H{"success": true})
}

func (h *Handler) ResetUserCounts(c *gin.Context) {
	ctx := c.Request.Context()
	target := c.Param("userId")

	u, err := h.Users.GetUser(ctx, target)
	if err != nil {
		internalError(c, "ResetUserCounts", err)
		return
	}
	cnt, err := h.Usage.Reset(ctx, target)
	if err != nil {
		internalError(c, "ResetUserCounts", err)
		return
	}

	h.notifyUser(c, email.KindResetCounts, u)
	common.OK(c, gin.H{
		"success":       true,
		"message":       "User counts reset successfully",
		"requestCount":  cnt.RequestCount,
		"responseCount": cnt.ResponseCount,
	})
}

func (h *Handler) ResetAllCounts(c *gin.Context) {
	n, err := h.Usage.ResetAll(c.Request.Context())
	if err != nil {
		internalError(c, "ResetAllCounts", err)
		return
	}
	log.Printf("[ResetAllCounts] affected=%d by=%s", n, c.GetString(middleware.UserIDKey))
	common.OK(c, gin.H{
		"success":  true,
		"message":  "All user counts reset successfully",
		"affected": n,
	})
}
