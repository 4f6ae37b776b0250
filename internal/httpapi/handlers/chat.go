package handlers

import (
	"errors"
	"net/http"

	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/ai"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/chat"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/common"
	"github.com/gin-gonic/gin"
)

type modelItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

func (h *Handler) ListModels(c *gin.Context) {
	models := h.Models.Models()
	out := make([]modelItem, 0, len(models))
	for _, m := range models {
		out = append(out, modelItem{ID: m.ID, Label: m.Label})
	}
	common.OK(c, gin.H{"models": out, "default": h.Models.Default()})
}

type chatReq struct {
	Model   string       `json:"model"`
	Message string       `json:"message" binding:"required"`
	History []ai.Message `json:"history" binding:"max=200"`
}

func (h *Handler) SendChat(c *gin.Context) {
	if _, ok := callerID(c); !ok {
		unauthorized(c)
		return
	}

	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 40002, "message is required")
		return
	}

	reply, err := h.Chat.Reply(c.Request.Context(), chat.Request{
		Model:   req.Model,
		Message: req.Message,
		History: req.History,
	})
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			common.Fail(c, http.StatusBadRequest, 40002, "message is required")
		case errors.Is(err, ai.ErrUnknownModel):
			common.Fail(c, http.StatusBadRequest, 40003, "unknown model")
		default:
			internalError(c, "SendChat", err)
		}
		return
	}

	common.OK(c, gin.H{
		"response": reply.Content,
		"html":     reply.HTML,
		"model":    reply.Model,
		"fallback": reply.Fallback,
	})
}
