package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/common"
	"github.com/gin-gonic/gin"
)

// Recovery turns a panic into the JSON 500 response.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("[Recovery] panic request_id=%s path=%s err=%v\n%s",
					c.GetString(RequestIDKey), c.Request.URL.Path, rec, debug.Stack())
				common.Fail(c, http.StatusInternalServerError, 50000, "Internal server error")
			}
		}()
		c.Next()
	}
}
