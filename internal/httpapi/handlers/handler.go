package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/ai"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/chat"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/common"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/httpapi/middleware"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/identity"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/notify"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/usage"
	"github.com/gin-gonic/gin"
)

// RoleCache remembers caller roles between requests. Optional.
type RoleCache interface {
	GetRole(ctx context.Context, userID string) (identity.Role, bool, error)
	SetRole(ctx context.Context, userID string, role identity.Role) error
	DeleteRole(ctx context.Context, userID string) error
}

type Handler struct {
	Usage    *usage.Service
	Users    identity.Provider
	Chat     *chat.Service
	Models   *ai.Registry
	Notifier notify.Notifier
	Roles    RoleCache
}

func NewHandler(usageSvc *usage.Service, users identity.Provider, chatSvc *chat.Service, models *ai.Registry, n notify.Notifier, roles RoleCache) *Handler {
	return &Handler{
		Usage:    usageSvc,
		Users:    users,
		Chat:     chatSvc,
		Models:   models,
		Notifier: n,
		Roles:    roles,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"message": "pong"})
}

func callerID(c *gin.Context) (string, bool) {
	return middleware.UserID(c)
}

func unauthorized(c *gin.Context) {
	common.Fail(c, http.StatusUnauthorized, 40100, "Unauthorized")
}

// internalError logs the cause and answers with the generic 500.
func internalError(c *gin.Context, where string, err error) {
	log.Printf("[%s] request_id=%s err=%v", where, c.GetString(middleware.RequestIDKey), err)
	common.Fail(c, http.StatusInternalServerError, 50000, "Internal server error")
}
