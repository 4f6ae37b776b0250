package middleware

import (
	"log"
	"net/http"

	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/auth"
	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/common"
	"github.com/gin-gonic/gin"
)

const UserIDKey = "user_id"

// AuthRequired resolves the caller from the session token and stores the
// identity user id under UserIDKey.
func AuthRequired(v *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.TokenFromRequest(c.Request)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40100, "Unauthorized")
			return
		}
		sub, err := v.Verify(token)
		if err != nil {
			log.Printf("[AuthRequired] rejected token request_id=%s err=%v", c.GetString(RequestIDKey), err)
			common.Fail(c, http.StatusUnauthorized, 40101, "Unauthorized")
			return
		}
		c.Set(UserIDKey, sub)
		c.Next()
	}
}

func UserID(c *gin.Context) (string, bool) {
	id := c.GetString(UserIDKey)
	return id, id != ""
}
