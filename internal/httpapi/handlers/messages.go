package handlers

import (
	"errors"
	"net/http"

	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/common"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/usage"
	"github.com/gin-gonic/gin"
)

const invalidTypeMsg = `Invalid type. Must be "request" or "response"`

type trackReq struct {
	Type string `json:"type" binding:"required"`
}

func (h *Handler) TrackMessage(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		unauthorized(c)
		return
	}

	var req trackReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 40001, invalidTypeMsg)
		return
	}

	cnt, err := h.Usage.Track(c.Request.Context(), uid, req.Type)
	if err != nil {
		if errors.Is(err, usage.ErrInvalidKind) {
			common.Fail(c, http.StatusBadRequest, 40001, invalidTypeMsg)
			return
		}
		internalError(c, "TrackMessage", err)
		return
	}

	common.OK(c, gin.H{
		"success":       true,
		"requestCount":  cnt.RequestCount,
		"responseCount": cnt.ResponseCount,
	})
}

// MessageStats returns the caller's own counters; absent records read as zero.
func (h *Handler) MessageStats(c *gin.Context) {
	uid, ok := callerID(c)
	if !ok {
		unauthorized(c)
		return
	}

	cnt, err := h.Usage.Stats(c.Request.Context(), uid)
	if err != nil {
		internalError(c, "MessageStats", err)
		return
	}

	resp := gin.H{
		"requestCount":  cnt.RequestCount,
		"responseCount": cnt.ResponseCount,
	}
	if cnt.Exists() {
		resp["createdAt"] = cnt.CreatedAt
		resp["updatedAt"] = cnt.UpdatedAt
	}
	common.OK(c, resp)
}
